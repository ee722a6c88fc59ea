package errors

import "sort"

// Template defines a registered error type.
type Template struct {
	Category   Category
	Message    string
	Detail     string
	Suggestion string
}

// Config errors.
const (
	ConfigNotFound       = "P101"
	ConfigInvalidJSON    = "P102"
	ConfigInvalidValue   = "P103"
	ConfigInvalidAddress = "P104"
	ConfigInvalidBackend = "P105"
	ConfigInvalidLog     = "P106"
	ConfigReadFailed     = "P107"
)

// Server errors.
const (
	ServerListenFailed   = "P201"
	ServerShutdownFailed = "P202"
	ServerStorageFailed  = "P203"
)

// Client and CLI errors.
const (
	ClientDialFailed    = "P301"
	ClientCallFailed    = "P302"
	ClientCallFaulted   = "P303"
	CLIInvalidArgument  = "P304"
	CLIInvalidReturnTag = "P305"
)

var registry = map[string]Template{
	// ============================================
	// Config Errors (P100-P199)
	// ============================================

	ConfigNotFound: {
		Category:   CategoryConfig,
		Message:    "Configuration file not found",
		Detail:     "No photon.json was found at the given path.",
		Suggestion: "Create photon.json or pass --config with the right path",
	},
	ConfigInvalidJSON: {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "photon.json could not be parsed as JSON.",
	},
	ConfigInvalidValue: {
		Category: CategoryConfig,
		Message:  "Invalid configuration value",
	},
	ConfigInvalidAddress: {
		Category:   CategoryConfig,
		Message:    "Invalid listen address",
		Detail:     "Listen addresses use the host:port form accepted by net.Listen.",
		Suggestion: `Use an address such as ":6666" or "127.0.0.1:6666"`,
	},
	ConfigInvalidBackend: {
		Category:   CategoryConfig,
		Message:    "Invalid blob backend",
		Suggestion: `Set blob.backend to "memory" or "s3"`,
	},
	ConfigInvalidLog: {
		Category:   CategoryConfig,
		Message:    "Invalid log setting",
		Suggestion: `Use level debug, info, warn or error and format text or json`,
	},
	ConfigReadFailed: {
		Category: CategoryConfig,
		Message:  "Could not read configuration file",
	},

	// ============================================
	// Server Errors (P200-P299)
	// ============================================

	ServerListenFailed: {
		Category:   CategoryServer,
		Message:    "Failed to listen",
		Detail:     "The server could not bind its TCP or HTTP address.",
		Suggestion: "Check that the port is free or choose another with --addr",
	},
	ServerShutdownFailed: {
		Category: CategoryServer,
		Message:  "Shutdown did not complete",
		Detail:   "Connections were still open when the shutdown timeout expired.",
	},
	ServerStorageFailed: {
		Category: CategoryStorage,
		Message:  "Blob storage unavailable",
		Detail:   "The configured blob backend could not be initialized.",
	},

	// ============================================
	// Client and CLI Errors (P300-P399)
	// ============================================

	ClientDialFailed: {
		Category:   CategoryClient,
		Message:    "Could not connect to server",
		Suggestion: "Check that photon serve is running and the address is correct",
	},
	ClientCallFailed: {
		Category: CategoryClient,
		Message:  "Remote call failed",
	},
	ClientCallFaulted: {
		Category: CategoryClient,
		Message:  "Remote method raised a fault",
	},
	CLIInvalidArgument: {
		Category:   CategoryCLI,
		Message:    "Invalid argument literal",
		Detail:     "Arguments are Variant literals such as u32:7, hex:00ff or null. Text without a known prefix is a String.",
		Suggestion: "Try: photon call echo s:hello",
	},
	CLIInvalidReturnTag: {
		Category:   CategoryCLI,
		Message:    "Invalid return type",
		Suggestion: "Use a type name such as Void, String, Uint32 or Array",
	},
}

// Codes returns all registered error codes in ascending order.
func Codes() []string {
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Lookup returns the template for an error code.
func Lookup(code string) (Template, bool) {
	t, ok := registry[code]
	return t, ok
}
