// Package errors provides structured errors for the filter service.
//
// Every error carries a registered code that maps to a category, a short
// message and a longer explanation. The store itself never fails; these
// errors come from the layers around it: snapshot storage, the HTTP API,
// list requests, configuration and the CLI.
//
// # Error Codes
//
//   - S0xx: storage (snapshot persistence backends)
//   - A0xx: api (HTTP surface, websocket stream)
//   - L0xx: client (list requests against the REST backend)
//   - C0xx: config
//   - X0xx: cli
//
// # Usage
//
//	err := errors.New("S004").
//	    WithDetail("bucket filters-prod").
//	    Wrap(cause)
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR S004: Snapshot write failed
//	//
//	//   bucket filters-prod
//	//
//	//   Caused by: access denied
package errors
