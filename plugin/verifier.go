package plugin

import (
	"io"
)

// Verifier recognizes test items and builds (or verifies) them for a
// configuration. It is the only capability permitted to write build
// artifacts.
type Verifier interface {
	Name() string
	Description() string

	// ValidateEnvironment returns a reason the verifier cannot run in the
	// current environment, or "" when it can.
	ValidateEnvironment() string

	// CommandLineOptions declares extra CLI options this verifier needs.
	CommandLineOptions() []OptionSpec

	// IsSupported reports whether the verifier can process the file or
	// directory at path.
	IsSupported(path string) bool

	// IsSupportedTestItem reports whether path looks like a test item this
	// verifier should build.
	IsSupportedTestItem(path string) bool

	// SupportsTestItemMatching reports whether "no tests found for an item
	// this verifier claims" should be treated as an error. Catch-all
	// verifiers must opt out.
	SupportsTestItemMatching() bool

	// IsCompiler reports whether invocation produces a binary artifact, as
	// opposed to verifying the item in place.
	IsCompiler() bool

	// CreateContext builds the context handed to downstream capabilities.
	// Metadata carries orchestrator-supplied values (output dir, debug flag,
	// parsed capability options).
	CreateContext(path string, metadata Context) (Context, error)

	// GetNumSteps returns the number of build steps for progress sizing, or
	// 0 when unknown.
	GetNumSteps(ctx Context) int

	// Invoke performs the build/verify, writing its log output to w. It
	// returns a result (negative error, zero success, positive warning) and
	// an optional short description.
	Invoke(ctx Context, w io.Writer, progress ProgressFunc) (int, string)
}

// BaseVerifier supplies the defaults for the optional Verifier methods.
// Embed it and override what the plugin actually needs.
type BaseVerifier struct {
	base
}

// NewBaseVerifier returns the embeddable defaults for a verifier.
func NewBaseVerifier(name string, description string) BaseVerifier {
	return BaseVerifier{base{name: name, description: description}}
}

func (BaseVerifier) SupportsTestItemMatching() bool { return true }

func (BaseVerifier) IsCompiler() bool { return false }

func (BaseVerifier) IsSupportedTestItem(path string) bool { return true }

func (BaseVerifier) GetNumSteps(ctx Context) int { return 0 }

// CreateContext records the item as the single input by default.
func (BaseVerifier) CreateContext(path string, metadata Context) (Context, error) {
	ctx := Context{}
	for key, value := range metadata {
		ctx[key] = value
	}
	ctx[ContextKeySingleInput] = path
	return ctx, nil
}
