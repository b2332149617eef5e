// Package logging lays out the on-disk structure of a test run: one
// testrun-<runID> directory holding a per-item, per-configuration subtree of
// build and execution logs, plus a YAML manifest summarizing the run.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	RunDirectoryPrefix = "testrun-" // Standardized prefix for run directories
	BuildLogFilename   = "build.log"
	TestLogFilename    = "test.log"
	ManifestFilename   = "run.yaml"
)

// FileLogger owns the log directory of a single run and hands out the file
// paths the orchestrator writes build and execution output to.
type FileLogger struct {
	baseDir string
	logDir  string
	runID   string
	mu      sync.Mutex // Protects the manifest file
}

// NewFileLogger creates the run directory under baseDir.
func NewFileLogger(baseDir string, runID string) (*FileLogger, error) {
	if runID == "" {
		return nil, fmt.Errorf("runID cannot be empty")
	}
	if baseDir == "" {
		return nil, fmt.Errorf("baseDir cannot be empty")
	}

	logDir := filepath.Join(baseDir, RunDirectoryPrefix+runID)
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory %s: %w", logDir, err)
	}

	return &FileLogger{
		baseDir: baseDir,
		logDir:  logDir,
		runID:   runID,
	}, nil
}

// RunID returns the run identifier this logger was created for.
func (l *FileLogger) RunID() string {
	return l.runID
}

// LogDir returns the root directory of this run's logs.
func (l *FileLogger) LogDir() string {
	return l.logDir
}

// ConfigurationDir creates and returns the directory holding logs for one
// test item and configuration.
func (l *FileLogger) ConfigurationDir(itemName string, configuration string) (string, error) {
	dir := filepath.Join(l.logDir, SanitizeFilename(itemName), configuration)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return dir, nil
}

// BuildLogPath returns the build log path within a configuration directory.
func BuildLogPath(dir string) string {
	return filepath.Join(dir, BuildLogFilename)
}

// TestLogPath returns the test log path within a configuration directory.
func TestLogPath(dir string) string {
	return filepath.Join(dir, TestLogFilename)
}

// ExecutionLogPath returns the per-iteration execution log path. A single
// iteration drops the index from the name.
func ExecutionLogPath(dir string, iteration int, numIterations int) string {
	if numIterations == 1 {
		return filepath.Join(dir, "test_execution.log")
	}
	return filepath.Join(dir, fmt.Sprintf("test_execution.%06d.log", iteration+1))
}

// SanitizeFilename replaces path separators and characters that are unsafe in
// directory names.
func SanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch r {
		case '/', '\\', ':', '*', '?', '"', '<', '>', '|', ' ':
			b.WriteRune('-')
		default:
			b.WriteRune(r)
		}
	}
	return strings.Trim(b.String(), "-")
}

// RunManifest summarizes one run for later inspection.
type RunManifest struct {
	RunID       string         `yaml:"run_id"`
	StartedAt   time.Time      `yaml:"started_at"`
	CompletedAt time.Time      `yaml:"completed_at"`
	Items       []ManifestItem `yaml:"items"`
}

// ManifestItem is the manifest entry for one test item.
type ManifestItem struct {
	Path           string                  `yaml:"path"`
	Result         int                     `yaml:"result"`
	ShortDesc      string                  `yaml:"short_desc,omitempty"`
	Configurations []ManifestConfiguration `yaml:"configurations,omitempty"`
}

// ManifestConfiguration is the manifest entry for one configuration of a
// test item.
type ManifestConfiguration struct {
	Name          string `yaml:"name"`
	Result        int    `yaml:"result"`
	ShortDesc     string `yaml:"short_desc,omitempty"`
	ExecutionTime string `yaml:"execution_time,omitempty"`
}

// WriteManifest writes the run manifest into the run directory, replacing any
// previous manifest.
func (l *FileLogger) WriteManifest(manifest RunManifest) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	data, err := yaml.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("failed to marshal run manifest: %w", err)
	}

	path := filepath.Join(l.logDir, ManifestFilename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run manifest %s: %w", path, err)
	}
	return nil
}
