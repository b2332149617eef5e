package plugin

// FindResult pairs a discovered test item with the capabilities that claimed
// it. It is the handoff artifact from discovery to orchestration.
type FindResult struct {
	Verifier       Verifier
	TestParser     TestParser
	Configurations []string
	TestType       string

	Path string

	IsEnabled bool
}
