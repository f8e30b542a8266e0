package errors

import "net/http"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
	Status     int
}

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Storage Errors (S001-S099)
	// ============================================

	"S001": {
		Category:   CategoryStorage,
		Message:    "Snapshot storage is closed",
		Detail:     "An operation was attempted after the storage backend was closed.",
		Suggestion: "Close storage only after the last Persister.Save has returned.",
		Status:     http.StatusServiceUnavailable,
	},
	"S002": {
		Category: CategoryStorage,
		Message:  "Snapshot encode failed",
		Detail:   "A filter entry could not be serialized. Filter values must be JSON-encodable to be persisted.",
	},
	"S003": {
		Category: CategoryStorage,
		Message:  "Snapshot decode failed",
		Detail:   "A stored snapshot is not a valid filter record.",
	},
	"S004": {
		Category: CategoryStorage,
		Message:  "Snapshot write failed",
	},
	"S005": {
		Category: CategoryStorage,
		Message:  "Snapshot read failed",
	},
	"S006": {
		Category: CategoryStorage,
		Message:  "Snapshot delete failed",
	},
	"S007": {
		Category:   CategoryStorage,
		Message:    "Unsupported snapshot version",
		Detail:     "The stored record was written by a newer release.",
		Suggestion: "Upgrade filterctl or delete the stale record.",
	},

	// ============================================
	// API Errors (A001-A099)
	// ============================================

	"A001": {
		Category: CategoryAPI,
		Message:  "Invalid request body",
		Detail:   "The request body must be JSON.",
	},
	"A002": {
		Category: CategoryAPI,
		Message:  "Invalid query parameter",
	},
	"A003": {
		Category: CategoryAPI,
		Message:  "WebSocket upgrade failed",
	},

	// ============================================
	// Client Errors (L001-L099)
	// ============================================

	"L001": {
		Category: CategoryClient,
		Message:  "List request failed",
		Detail:   "The backend could not be reached.",
	},
	"L002": {
		Category: CategoryClient,
		Message:  "Unexpected response status",
	},
	"L003": {
		Category: CategoryClient,
		Message:  "Response decode failed",
		Detail:   "The backend answered with a body that is not a paginated list.",
	},

	// ============================================
	// Config Errors (C001-C099)
	// ============================================

	"C001": {
		Category:   CategoryConfig,
		Message:    "Config file unreadable",
		Suggestion: "Check the path passed with --config.",
	},
	"C002": {
		Category: CategoryConfig,
		Message:  "Invalid configuration",
	},

	// ============================================
	// CLI Errors (X001-X099)
	// ============================================

	"X001": {
		Category:   CategoryCLI,
		Message:    "Invalid filter argument",
		Suggestion: "Pass filters as --set key=value.",
	},
	"X002": {
		Category: CategoryCLI,
		Message:  "Filter file unreadable",
		Detail:   "The filter file must be a YAML mapping of field names to scalar or list values.",
	},
	"X003": {
		Category:   CategoryCLI,
		Message:    "Invalid flag value",
		Suggestion: "Run filterctl --help for the accepted values.",
	},
}

// Lookup returns the template for a registered code.
func Lookup(code string) (ErrorTemplate, bool) {
	t, ok := registry[code]
	return t, ok
}
