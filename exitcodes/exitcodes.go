// Package exitcodes defines the standard exit codes used by tester.
package exitcodes

// Exit code constants used by tester
// These constants define the exit codes that the application uses to indicate
// various states when it exits:
//
// * Success (0): Used when every test item builds, runs, and parses cleanly
// * TestFailure (1): Used when one or more test items fail
// * RuntimeErr (2): Used for runtime errors such as panics, configuration
//   problems or missing capabilities
const (
	Success     = 0 // All test items pass
	TestFailure = 1 // Test item failures
	RuntimeErr  = 2 // Runtime errors or misconfiguration
)
