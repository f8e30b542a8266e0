// Package api exposes a filters.Store over HTTP.
//
// Routes:
//
//	GET    /filters                        keys with an entry
//	GET    /filters/{key}                  state of key (empty when absent)
//	PUT    /filters/{key}/values           merge a JSON object into the values
//	PUT    /filters/{key}/values/{field}   set one field to a JSON value
//	POST   /filters/{key}/apply            apply the staged values
//	DELETE /filters/{key}                  remove the entry
//	GET    /filters/{key}/stream           WebSocket feed of changes to key
//	GET    /metrics                        when a metrics handler is configured
//
// Both PUT routes accept ?commit=false to stage without applying. The
// default is to commit, like a binding with commit-on-change.
//
// Errors are answered with {"error": {...}} carrying an internal/errors code.
package api
