package config

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestLog(t *testing.T) {
	// Just verify it doesn't panic
	s := &Settings{
		BusinessAreas: []string{"pharmacy"},
		Search: SearchSettings{
			TopK:        5,
			RRFConstant: 60,
		},
	}
	Log(s) // Should not panic
}

func TestLogWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := &Settings{
		BusinessAreas: []string{"pharmacy", "claims"},
		Search: SearchSettings{
			TopK:        5,
			RRFConstant: 60,
		},
		Vector: VectorSettings{Host: "localhost:8080"},
		Graph:  GraphSettings{URL: "http://localhost:8529"},
	}

	LogWithLogger(s, logger)

	output := buf.String()
	if !strings.Contains(output, "business_areas") {
		t.Error("Expected 'business_areas' in log output")
	}
	if !strings.Contains(output, "vector.host") {
		t.Error("Expected 'vector.host' in log output")
	}
	// CodeQL is disabled, its details should not be logged
	if strings.Contains(output, "cli_path") {
		t.Error("Expected no 'cli_path' in log output when codeql is disabled")
	}
}

func TestLogWithLogger_CodeQLEnabled(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := &Settings{
		CodeQL: CodeQLSettings{
			Enabled:      true,
			CLIPath:      "/usr/local/bin/codeql",
			DatabaseDir:  "/var/lib/codeql",
			BuildTimeout: 30 * time.Minute,
		},
	}

	LogWithLogger(s, logger)

	output := buf.String()
	if !strings.Contains(output, "cli_path") {
		t.Error("Expected 'cli_path' in log output when codeql is enabled")
	}
	if !strings.Contains(output, "database_dir") {
		t.Error("Expected 'database_dir' in log output when codeql is enabled")
	}
}

func TestVectorSettingsLogValue(t *testing.T) {
	s := VectorSettings{
		Scheme: "http",
		Host:   "localhost:8080",
		APIKey: "secret-key",
	}

	val := VectorSettingsLogValue(s)
	if val.Kind() != slog.KindGroup {
		t.Errorf("Expected group kind, got %v", val.Kind())
	}

	text := val.String()
	if strings.Contains(text, "secret-key") {
		t.Error("API key should be masked, not shown in plain text")
	}
	if !strings.Contains(text, "****") {
		t.Error("Expected masked API key in log value")
	}
}

func TestVectorSettingsLogValue_EmptyKey(t *testing.T) {
	val := VectorSettingsLogValue(VectorSettings{Host: "localhost:8080"})

	if strings.Contains(val.String(), "****") {
		t.Error("Expected no mask when no API key is configured")
	}
}

func TestGraphSettingsLogValue(t *testing.T) {
	s := GraphSettings{
		URL:      "http://localhost:8529",
		Username: "root",
		Password: "secret",
		Database: "knowledge",
	}

	val := GraphSettingsLogValue(s)
	if val.Kind() != slog.KindGroup {
		t.Errorf("Expected group kind, got %v", val.Kind())
	}

	text := val.String()
	if strings.Contains(text, "secret") {
		t.Error("Password should be masked, not shown in plain text")
	}
	if !strings.Contains(text, "root") {
		t.Error("Expected username in log value")
	}
}

func TestSettingsLogValue(t *testing.T) {
	s := Settings{
		BusinessAreas: []string{"pharmacy"},
		Vector:        VectorSettings{Host: "localhost:8080", APIKey: "key"},
		Graph:         GraphSettings{URL: "http://localhost:8529", Password: "pw"},
	}

	val := SettingsLogValue(s)
	if val.Kind() != slog.KindGroup {
		t.Errorf("Expected group kind, got %v", val.Kind())
	}
}
