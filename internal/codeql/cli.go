package codeql

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/ekap-project/knowledge-core/internal/config"
)

// ErrTimeout indicates a CLI invocation exceeded its deadline.
var ErrTimeout = errors.New("static analysis command timed out")

// CommandExecutor abstracts external command execution for testing.
type CommandExecutor interface {
	// Run executes a command and returns its stdout.
	Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error)
}

// DefaultExecutor executes commands using os/exec.
type DefaultExecutor struct{}

// Run executes a command and returns its stdout.
func (e *DefaultExecutor) Run(ctx context.Context, dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if dir != "" {
		cmd.Dir = dir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if stderr.Len() > 0 {
			return nil, fmt.Errorf("%w: %s", err, strings.TrimSpace(stderr.String()))
		}
		return nil, err
	}

	return stdout.Bytes(), nil
}

// CLI wraps the CodeQL command-line tool. Every invocation carries its own
// timeout: builds run long, queries run minutes, version lookups seconds.
type CLI struct {
	executor CommandExecutor
	cfg      config.CodeQLSettings
}

// NewCLI creates a CLI adapter with the default command executor.
func NewCLI(cfg config.CodeQLSettings) *CLI {
	return NewCLIWithExecutor(cfg, &DefaultExecutor{})
}

// NewCLIWithExecutor creates a CLI adapter with a custom executor (for testing).
func NewCLIWithExecutor(cfg config.CodeQLSettings, executor CommandExecutor) *CLI {
	return &CLI{executor: executor, cfg: cfg}
}

// Version returns the CLI version string, verifying the tool is runnable.
func (c *CLI) Version(ctx context.Context) (string, error) {
	output, err := c.run(ctx, c.cfg.VersionTimeout, "", "version", "--format=terse")
	if err != nil {
		return "", fmt.Errorf("codeql version failed: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

// DatabaseCreate builds a queryable code database for one language.
// The database directory is replaced if it already exists.
func (c *CLI) DatabaseCreate(ctx context.Context, dbPath, sourcePath, language string) error {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}

	_, err := c.run(ctx, c.cfg.BuildTimeout, "",
		"database", "create", dbPath,
		"--language="+language,
		"--source-root="+sourcePath,
		"--overwrite",
	)
	if err != nil {
		return fmt.Errorf("codeql database create failed for %s: %w", language, err)
	}
	return nil
}

// QueryRun executes one query file against a database and returns the
// decoded result rows.
func (c *CLI) QueryRun(ctx context.Context, dbPath, queryFile string) ([][]string, error) {
	resultsPath := filepath.Join(dbPath, "results.bqrs")

	_, err := c.run(ctx, c.cfg.QueryTimeout, "",
		"query", "run", queryFile,
		"--database="+dbPath,
		"--output="+resultsPath,
	)
	if err != nil {
		return nil, fmt.Errorf("codeql query run failed: %w", err)
	}
	defer func() { _ = os.Remove(resultsPath) }()

	output, err := c.run(ctx, c.cfg.QueryTimeout, "",
		"bqrs", "decode", resultsPath,
		"--format=json",
	)
	if err != nil {
		return nil, fmt.Errorf("codeql bqrs decode failed: %w", err)
	}

	return decodeRows(output)
}

// CurrentRevision returns the HEAD commit of the checked-out source path.
func (c *CLI) CurrentRevision(ctx context.Context, sourcePath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.VersionTimeout)
	defer cancel()

	output, err := c.executor.Run(ctx, sourcePath, "git", "rev-parse", "HEAD")
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w: git rev-parse", ErrTimeout)
		}
		return "", fmt.Errorf("git rev-parse failed: %w", err)
	}
	return strings.TrimSpace(string(output)), nil
}

func (c *CLI) run(ctx context.Context, timeout time.Duration, dir string, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	output, err := c.executor.Run(ctx, dir, c.cfg.CLIPath, args...)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: codeql %s", ErrTimeout, strings.Join(args[:min(2, len(args))], " "))
		}
		return nil, err
	}
	return output, nil
}

// decodeRows extracts the tuple rows from bqrs JSON output. Every cell is
// flattened to its string form; entity cells use their label.
func decodeRows(data []byte) ([][]string, error) {
	var decoded struct {
		Select struct {
			Tuples [][]any `json:"tuples"`
		} `json:"#select"`
	}
	if err := json.Unmarshal(data, &decoded); err != nil {
		return nil, fmt.Errorf("failed to parse query results: %w", err)
	}

	rows := make([][]string, 0, len(decoded.Select.Tuples))
	for _, tuple := range decoded.Select.Tuples {
		row := make([]string, len(tuple))
		for i, cell := range tuple {
			row[i] = cellString(cell)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func cellString(cell any) string {
	switch v := cell.(type) {
	case string:
		return v
	case map[string]any:
		if label, ok := v["label"].(string); ok {
			return label
		}
	}
	return fmt.Sprintf("%v", cell)
}
