package config

import (
	"context"
	"log/slog"
)

// Log logs the resolved settings in a granular way, skipping irrelevant ones
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: business_areas", "value", s.BusinessAreas)
	logger.InfoContext(ctx, "Config: search.top_k", "value", s.Search.TopK)
	logger.InfoContext(ctx, "Config: search.rrf_constant", "value", s.Search.RRFConstant)
	logger.InfoContext(ctx, "Config: vector.host", "value", s.Vector.Host)
	logger.InfoContext(ctx, "Config: graph.url", "value", s.Graph.URL)

	logger.InfoContext(ctx, "Config: codeql.enabled", "value", s.CodeQL.Enabled)
	if s.CodeQL.Enabled {
		logger.InfoContext(ctx, "Config: codeql.cli_path", "value", s.CodeQL.CLIPath)
		logger.InfoContext(ctx, "Config: codeql.database_dir", "value", s.CodeQL.DatabaseDir)
		logger.InfoContext(ctx, "Config: codeql.build_timeout", "value", s.CodeQL.BuildTimeout)
	}
}

// VectorSettingsLogValue returns a slog.Value for VectorSettings with masked data
func VectorSettingsLogValue(s VectorSettings) slog.Value {
	key := ""
	if s.APIKey != "" {
		key = "****"
	}
	return slog.GroupValue(
		slog.String("scheme", s.Scheme),
		slog.String("host", s.Host),
		slog.String("api_key", key),
		slog.String("class_name", s.ClassName),
	)
}

// GraphSettingsLogValue returns a slog.Value for GraphSettings with masked data
func GraphSettingsLogValue(s GraphSettings) slog.Value {
	return slog.GroupValue(
		slog.String("url", s.URL),
		slog.String("username", s.Username),
		slog.String("password", "****"),
		slog.String("database", s.Database),
	)
}

// SettingsLogValue returns a slog.Value for Settings with masked data
func SettingsLogValue(s Settings) slog.Value {
	return slog.GroupValue(
		slog.Any("business_areas", s.BusinessAreas),
		slog.Any("vector", VectorSettingsLogValue(s.Vector)),
		slog.Any("graph", GraphSettingsLogValue(s.Graph)),
		slog.Bool("codeql_enabled", s.CodeQL.Enabled),
	)
}
