// Package errors provides structured, actionable error messages for the
// photon command line.
//
// Each error has a unique code that maps to a short message, an optional
// explanation and a hint:
//   - P1xx: configuration (photon.json loading and validation)
//   - P2xx: server startup and shutdown
//   - P3xx: client calls and CLI arguments
//
// # Usage
//
//	err := errors.New(errors.ConfigInvalidAddress).
//	    WithField("server.address").
//	    WithDetailf("%q has no port", addr)
//
//	errors.Print(os.Stderr, err)
//	// Output:
//	// ERROR P104: Invalid listen address
//	//
//	//   server.address
//	//
//	//   ":x" has no port
//	//
//	//   Hint: Use an address such as ":6666" or "127.0.0.1:6666"
//
// Library packages under pkg/ return plain errors; this package is for the
// configuration layer and cmd/photon.
package errors
