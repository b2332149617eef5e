package registry

import (
	"fmt"
	"sort"

	capability "github.com/devkit-infra/tester/plugin"
)

// CapabilitySet is a typed lookup table of capability implementations, keyed
// by name within each kind. Names must be unique per kind.
type CapabilitySet struct {
	verifiers  map[string]capability.Verifier
	executors  map[string]capability.TestExecutor
	parsers    map[string]capability.TestParser
	validators map[string]capability.CodeCoverageValidator
}

// NewCapabilitySet creates an empty capability set.
func NewCapabilitySet() *CapabilitySet {
	return &CapabilitySet{
		verifiers:  make(map[string]capability.Verifier),
		executors:  make(map[string]capability.TestExecutor),
		parsers:    make(map[string]capability.TestParser),
		validators: make(map[string]capability.CodeCoverageValidator),
	}
}

// Add merges a plugin's capabilities into the set.
func (s *CapabilitySet) Add(capabilities capability.Capabilities) error {
	for _, verifier := range capabilities.Verifiers {
		if _, exists := s.verifiers[verifier.Name()]; exists {
			return fmt.Errorf("duplicate verifier '%s'", verifier.Name())
		}
		s.verifiers[verifier.Name()] = verifier
	}

	for _, executor := range capabilities.Executors {
		if _, exists := s.executors[executor.Name()]; exists {
			return fmt.Errorf("duplicate test executor '%s'", executor.Name())
		}
		s.executors[executor.Name()] = executor
	}

	for _, parser := range capabilities.Parsers {
		if _, exists := s.parsers[parser.Name()]; exists {
			return fmt.Errorf("duplicate test parser '%s'", parser.Name())
		}
		s.parsers[parser.Name()] = parser
	}

	for _, validator := range capabilities.Validators {
		if _, exists := s.validators[validator.Name()]; exists {
			return fmt.Errorf("duplicate code coverage validator '%s'", validator.Name())
		}
		s.validators[validator.Name()] = validator
	}

	return nil
}

// AddPlugins merges every loaded plugin's capabilities into the set.
func (s *CapabilitySet) AddPlugins(plugins []*LoadedPlugin) error {
	for _, loaded := range plugins {
		if err := s.Add(loaded.Capabilities); err != nil {
			return fmt.Errorf("plugin '%s': %w", loaded.Path, err)
		}
	}
	return nil
}

// Verifier looks up a verifier by name.
func (s *CapabilitySet) Verifier(name string) (capability.Verifier, bool) {
	verifier, ok := s.verifiers[name]
	return verifier, ok
}

// Executor looks up a test executor by name.
func (s *CapabilitySet) Executor(name string) (capability.TestExecutor, bool) {
	executor, ok := s.executors[name]
	return executor, ok
}

// Parser looks up a test parser by name.
func (s *CapabilitySet) Parser(name string) (capability.TestParser, bool) {
	parser, ok := s.parsers[name]
	return parser, ok
}

// Validator looks up a code coverage validator by name.
func (s *CapabilitySet) Validator(name string) (capability.CodeCoverageValidator, bool) {
	validator, ok := s.validators[name]
	return validator, ok
}

// Verifiers returns all verifiers, ordered by name for determinism.
func (s *CapabilitySet) Verifiers() []capability.Verifier {
	names := sortedKeys(s.verifiers)
	verifiers := make([]capability.Verifier, 0, len(names))
	for _, name := range names {
		verifiers = append(verifiers, s.verifiers[name])
	}
	return verifiers
}

// Executors returns all test executors, ordered by name.
func (s *CapabilitySet) Executors() []capability.TestExecutor {
	names := sortedKeys(s.executors)
	executors := make([]capability.TestExecutor, 0, len(names))
	for _, name := range names {
		executors = append(executors, s.executors[name])
	}
	return executors
}

// Parsers returns all test parsers, ordered by name.
func (s *CapabilitySet) Parsers() []capability.TestParser {
	names := sortedKeys(s.parsers)
	parsers := make([]capability.TestParser, 0, len(names))
	for _, name := range names {
		parsers = append(parsers, s.parsers[name])
	}
	return parsers
}

// Validators returns all code coverage validators, ordered by name.
func (s *CapabilitySet) Validators() []capability.CodeCoverageValidator {
	names := sortedKeys(s.validators)
	validators := make([]capability.CodeCoverageValidator, 0, len(names))
	for _, name := range names {
		validators = append(validators, s.validators[name])
	}
	return validators
}

// CommandLineOptions collects the command-line options declared by every
// capability in the set, deduplicated by option name and ordered by the
// first declaration encountered.
func (s *CapabilitySet) CommandLineOptions() []capability.OptionSpec {
	seen := make(map[string]struct{})
	var specs []capability.OptionSpec

	collect := func(options []capability.OptionSpec) {
		for _, spec := range options {
			if _, exists := seen[spec.Name]; exists {
				continue
			}
			seen[spec.Name] = struct{}{}
			specs = append(specs, spec)
		}
	}

	for _, verifier := range s.Verifiers() {
		collect(verifier.CommandLineOptions())
	}
	for _, executor := range s.Executors() {
		collect(executor.CommandLineOptions())
	}
	for _, parser := range s.Parsers() {
		collect(parser.CommandLineOptions())
	}
	for _, validator := range s.Validators() {
		collect(validator.CommandLineOptions())
	}

	return specs
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for key := range m {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
