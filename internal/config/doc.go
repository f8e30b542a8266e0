// Package config loads filterctl configuration.
//
// Values come, lowest priority first, from built-in defaults, an optional
// YAML file and FILTERCTL_* environment variables (FILTERCTL_SERVER_ADDR
// sets server.addr).
//
// Example filterctl.yaml:
//
//	server:
//	  addr: ":8080"
//	log:
//	  level: debug
//	persist:
//	  backend: sqlite
//	  keys: [admin-users, admin-experiences]
//	  sqlite:
//	    path: /var/lib/filterctl/filters.db
package config
