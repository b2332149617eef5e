package reporting

import (
	"encoding/xml"
	"fmt"
	"os"
	"time"

	"github.com/devkit-infra/tester/types"
)

type junitTestSuites struct {
	XMLName xml.Name         `xml:"testsuites"`
	Suites  []junitTestSuite `xml:"testsuite"`
}

type junitTestSuite struct {
	ID        int             `xml:"id,attr"`
	Hostname  string          `xml:"hostname,attr"`
	Timestamp string          `xml:"timestamp,attr"`
	Name      string          `xml:"name,attr"`
	TestCases []junitTestCase `xml:"testcase"`
}

type junitTestCase struct {
	Name     string         `xml:"name,attr"`
	Time     string         `xml:"time,attr"`
	Failures []junitFailure `xml:"failure,omitempty"`
}

type junitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Text    string `xml:",chardata"`
}

// WriteJUnitXML writes one testsuite per test item and one testcase per
// configuration that was actually tested. Failing subtests of the first
// iteration become failure elements.
func WriteJUnitXML(filename string, results []types.Result, hostname string, timestamp time.Time) error {
	names := displayNames(results)

	document := junitTestSuites{}

	for i := range results {
		result := &results[i]

		suite := junitTestSuite{
			ID:        i,
			Hostname:  hostname,
			Timestamp: timestamp.Format(time.RFC3339),
			Name:      names[i],
		}

		for _, configResult := range []*types.ConfigurationResult{result.Debug, result.Release} {
			if configResult == nil || configResult.TestResult == nil {
				continue
			}

			testCase := junitTestCase{
				Name: configResult.Configuration,
				Time: fmt.Sprintf("%f", configResult.ExecutionTime.Seconds()),
			}

			parseResult := configResult.TestResult.Iterations[0].ParseResult
			for name, subtest := range parseResult.Subtests {
				// Warnings (skipped subtests) are not CI failures.
				if subtest.Result >= 0 {
					continue
				}

				message := fmt.Sprintf("%s (%d, %s)", name, subtest.Result, subtest.ExecutionTime)
				testCase.Failures = append(testCase.Failures, junitFailure{
					Message: message,
					Type:    "Subtest failure",
					Text:    message,
				})
			}

			suite.TestCases = append(suite.TestCases, testCase)
		}

		document.Suites = append(document.Suites, suite)
	}

	data, err := xml.MarshalIndent(document, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JUnit results: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write JUnit results %s: %w", filename, err)
	}
	return nil
}
