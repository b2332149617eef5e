// Package plugin defines the four capability contracts a tester plugin can
// provide: Verifier (build/verify), TestExecutor (run), TestParser
// (interpret output), and CodeCoverageValidator (threshold comparison).
//
// Plugins are contributed by other repositories through the registry's
// indirection file and loaded at startup; nothing in this package depends on
// how a plugin was obtained. Each contract ships a Base* adapter supplying
// the no-op defaults so that a plugin only overrides what it needs.
package plugin

import (
	"fmt"
)

// CapabilitiesSymbol is the exported symbol a loadable plugin module must
// provide. Its value must be of type Capabilities.
const CapabilitiesSymbol = "TesterCapabilities"

// Capabilities is the set of capability implementations a single plugin
// module contributes. Any field may be empty.
type Capabilities struct {
	Verifiers  []Verifier
	Executors  []TestExecutor
	Parsers    []TestParser
	Validators []CodeCoverageValidator
}

// ProgressFunc reports a monotonically increasing, zero-based step index and
// a human-readable status. Returning false requests cooperative cancellation,
// honored at the next step boundary.
type ProgressFunc func(step int, status string) bool

// OptionKind describes the expected type of a capability command-line option.
type OptionKind int

const (
	OptionString OptionKind = iota
	OptionBool
	OptionInt
	OptionFloat
)

// OptionSpec declares one command-line option a capability needs. The CLI
// layer merges these into the orchestrator's invocation surface; parsed
// values arrive back through the Context.
type OptionSpec struct {
	Name  string
	Kind  OptionKind
	Usage string
}

// Context is the untyped string-keyed mapping handed from a Verifier to the
// downstream capabilities. It carries at minimum a single-input or
// atomic-inputs marker plus whatever the verifier chooses to record.
type Context map[string]any

// Context keys populated during context creation.
const (
	ContextKeySingleInput  = "input"
	ContextKeyAtomicInputs = "inputs"
)

// SingleInput returns the single-input marker, if present.
func (c Context) SingleInput() (string, bool) {
	value, ok := c[ContextKeySingleInput].(string)
	return value, ok
}

// AtomicInputs returns the multi-input marker, if present.
func (c Context) AtomicInputs() ([]string, bool) {
	value, ok := c[ContextKeyAtomicInputs].([]string)
	return value, ok
}

// String returns a string-typed context value, or the empty string.
func (c Context) String(key string) string {
	value, _ := c[key].(string)
	return value
}

// Bool returns a bool-typed context value, or false.
func (c Context) Bool(key string) bool {
	value, _ := c[key].(bool)
	return value
}

// UnknownInputError indicates that a test parser's default command-line
// construction found no recognized input marker in the context. Fatal for the
// test item that produced it.
type UnknownInputError struct {
	ParserName string
}

func (e *UnknownInputError) Error() string {
	return fmt.Sprintf("test parser '%s' found no input in the context", e.ParserName)
}

// base carries the name/description pair shared by every capability kind.
type base struct {
	name        string
	description string
}

func (b base) Name() string        { return b.name }
func (b base) Description() string { return b.description }

// ValidateEnvironment reports no incompatibility by default.
func (b base) ValidateEnvironment() string { return "" }

// CommandLineOptions declares no options by default.
func (b base) CommandLineOptions() []OptionSpec { return nil }
