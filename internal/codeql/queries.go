package codeql

import (
	"context"
	"log/slog"
	"path/filepath"
)

// Analysis names. Each maps to a query file under the queries directory,
// laid out as {queries_dir}/{language}/{analysis}.ql.
const (
	AnalysisCallGraph       = "call_graph"
	AnalysisSubprocessCalls = "subprocess_calls"
	AnalysisImports         = "imports"
)

// LanguageBattery is the fixed set of analyses run per language.
var LanguageBattery = map[string][]string{
	"python": {AnalysisCallGraph, AnalysisSubprocessCalls, AnalysisImports},
	"java":   {AnalysisCallGraph},
}

// QueryExecutor runs the language battery against a built database.
type QueryExecutor struct {
	cli        *CLI
	queriesDir string
}

func NewQueryExecutor(cli *CLI, queriesDir string) *QueryExecutor {
	return &QueryExecutor{cli: cli, queriesDir: queriesDir}
}

// RunBattery executes every analysis configured for the language. Analyses
// are independent: a failing one yields an empty row list for its name and
// the rest still run.
func (e *QueryExecutor) RunBattery(ctx context.Context, dbPath, language string) map[string][][]string {
	results := make(map[string][][]string)

	for _, analysis := range LanguageBattery[language] {
		queryFile := filepath.Join(e.queriesDir, language, analysis+".ql")

		rows, err := e.cli.QueryRun(ctx, dbPath, queryFile)
		if err != nil {
			slog.Warn("Analysis query failed",
				"analysis", analysis, "language", language, "database", dbPath, "error", err)
			results[analysis] = nil
			continue
		}
		results[analysis] = rows
		slog.Debug("Analysis query completed",
			"analysis", analysis, "language", language, "rows", len(rows))
	}

	return results
}
