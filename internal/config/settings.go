package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Retrieval limit bounds enforced on caller-supplied plans.
const (
	MinRetrievalLimit     = 1
	MaxRetrievalLimit     = 50
	DefaultRetrievalLimit = 5
)

// SearchSettings configuration for the hybrid search engine
type SearchSettings struct {
	TopK           int `mapstructure:"top_k"`
	CandidateDepth int `mapstructure:"candidate_depth"` // multiplier applied to top_k before fusion
	RRFConstant    int `mapstructure:"rrf_constant"`
}

// VectorSettings configuration for the external dense vector index
type VectorSettings struct {
	Scheme    string `mapstructure:"scheme"`
	Host      string `mapstructure:"host"`
	APIKey    string `mapstructure:"api_key"`
	ClassName string `mapstructure:"class_name"`
}

// EmbeddingSettings configuration for the embedding/generation capability
type EmbeddingSettings struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	ChatModel      string `mapstructure:"chat_model"`
}

// GraphSettings configuration for the graph store
type GraphSettings struct {
	URL      string `mapstructure:"url"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// CodeQLSettings configuration for the code graph build pipeline
type CodeQLSettings struct {
	Enabled        bool          `mapstructure:"enabled"`
	CLIPath        string        `mapstructure:"cli_path"`
	DatabaseDir    string        `mapstructure:"database_dir"`
	RegistryPath   string        `mapstructure:"registry_path"`
	QueriesDir     string        `mapstructure:"queries_dir"`
	BuildTimeout   time.Duration `mapstructure:"build_timeout"`
	QueryTimeout   time.Duration `mapstructure:"query_timeout"`
	VersionTimeout time.Duration `mapstructure:"version_timeout"`
}

// IngestSettings configuration for ingestion bookkeeping
type IngestSettings struct {
	MetadataPath string `mapstructure:"metadata_path"`
}

// Settings application settings
type Settings struct {
	BusinessAreas      []string          `mapstructure:"business_areas"`
	SourcesConfig      string            `mapstructure:"sources_config"`
	RetrieverOverrides string            `mapstructure:"retriever_overrides"`
	Search             SearchSettings    `mapstructure:"search"`
	Vector             VectorSettings    `mapstructure:"vector"`
	Embedding          EmbeddingSettings `mapstructure:"embedding"`
	Graph              GraphSettings     `mapstructure:"graph"`
	CodeQL             CodeQLSettings    `mapstructure:"codeql"`
	Ingest             IngestSettings    `mapstructure:"ingest"`
}

// LoadSettings loads settings from environment variables and defaults
func LoadSettings() (*Settings, error) {
	return LoadSettingsWithFlags(nil)
}

// LoadSettingsWithFlags loads settings with optional CLI flag overrides.
// Priority: CLI flags > environment variables > defaults.
// If flags is nil, only env vars and defaults are used.
func LoadSettingsWithFlags(flags *pflag.FlagSet) (*Settings, error) {
	v := viper.New()

	// Default values
	v.SetDefault("business_areas", []string{})
	v.SetDefault("sources_config", "")
	v.SetDefault("retriever_overrides", "")

	v.SetDefault("search.top_k", DefaultRetrievalLimit)
	v.SetDefault("search.candidate_depth", 2)
	v.SetDefault("search.rrf_constant", 60)

	v.SetDefault("vector.scheme", "http")
	v.SetDefault("vector.host", "localhost:8080")
	v.SetDefault("vector.class_name", "KnowledgeChunk")

	v.SetDefault("embedding.embedding_model", "text-embedding-3-small")
	v.SetDefault("embedding.chat_model", "gpt-4o-mini")

	v.SetDefault("graph.url", "http://localhost:8529")
	v.SetDefault("graph.username", "root")
	v.SetDefault("graph.database", "code_graph")

	v.SetDefault("codeql.enabled", false)
	v.SetDefault("codeql.cli_path", "codeql")
	v.SetDefault("codeql.database_dir", defaultDataPath("codeql-databases"))
	v.SetDefault("codeql.registry_path", defaultDataPath("code_source_registry.json"))
	v.SetDefault("codeql.queries_dir", defaultDataPath("queries"))
	v.SetDefault("codeql.build_timeout", time.Hour)
	v.SetDefault("codeql.query_timeout", 5*time.Minute)
	v.SetDefault("codeql.version_timeout", 10*time.Second)

	v.SetDefault("ingest.metadata_path", defaultDataPath("ingestion_metadata.json"))

	// Environment variables
	v.SetEnvPrefix("KNOWLEDGE_CORE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific env vars for nested config
	_ = v.BindEnv("business_areas", "KNOWLEDGE_CORE_BUSINESS_AREAS")
	_ = v.BindEnv("sources_config", "KNOWLEDGE_CORE_SOURCES_CONFIG")
	_ = v.BindEnv("retriever_overrides", "KNOWLEDGE_CORE_RETRIEVER_OVERRIDES")
	_ = v.BindEnv("vector.host", "KNOWLEDGE_CORE_VECTOR_HOST")
	_ = v.BindEnv("vector.api_key", "KNOWLEDGE_CORE_VECTOR_API_KEY")
	_ = v.BindEnv("embedding.api_key", "KNOWLEDGE_CORE_EMBEDDING_API_KEY")
	_ = v.BindEnv("graph.url", "KNOWLEDGE_CORE_GRAPH_URL")
	_ = v.BindEnv("graph.username", "KNOWLEDGE_CORE_GRAPH_USERNAME")
	_ = v.BindEnv("graph.password", "KNOWLEDGE_CORE_GRAPH_PASSWORD")
	_ = v.BindEnv("codeql.enabled", "KNOWLEDGE_CORE_CODEQL_ENABLED")
	_ = v.BindEnv("codeql.cli_path", "KNOWLEDGE_CORE_CODEQL_CLI_PATH")
	_ = v.BindEnv("codeql.database_dir", "KNOWLEDGE_CORE_CODEQL_DATABASE_DIR")
	_ = v.BindEnv("codeql.registry_path", "KNOWLEDGE_CORE_CODEQL_REGISTRY_PATH")

	// Bind CLI flags if provided (highest priority)
	if flags != nil {
		bindFlag(v, flags, "business_areas", "business-areas")
		bindFlag(v, flags, "sources_config", "sources-config")
		bindFlag(v, flags, "retriever_overrides", "retriever-overrides")
		bindFlag(v, flags, "search.top_k", "top-k")
		bindFlag(v, flags, "vector.host", "vector-host")
		bindFlag(v, flags, "graph.url", "graph-url")
		bindFlag(v, flags, "codeql.enabled", "codeql-enabled")
		bindFlag(v, flags, "codeql.cli_path", "codeql-cli-path")
		bindFlag(v, flags, "codeql.database_dir", "codeql-database-dir")
		bindFlag(v, flags, "codeql.registry_path", "codeql-registry-path")
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return nil, err
	}

	normalizeAreas(&settings)

	return &settings, nil
}

// bindFlag binds a viper key to a pflag only when the flag was actually set,
// so unset flags do not shadow env vars with zero values.
func bindFlag(v *viper.Viper, flags *pflag.FlagSet, key, flagName string) {
	if f := flags.Lookup(flagName); f != nil && f.Changed {
		_ = v.BindPFlag(key, f)
	}
}

// normalizeAreas trims whitespace and drops empty business area entries.
// Viper may hand us a single comma-joined string from the environment.
func normalizeAreas(s *Settings) {
	var areas []string
	for _, raw := range s.BusinessAreas {
		for _, area := range strings.Split(raw, ",") {
			area = strings.TrimSpace(area)
			if area != "" {
				areas = append(areas, area)
			}
		}
	}
	s.BusinessAreas = areas
}

// ValidateSettings checks for invalid or conflicting configuration
func ValidateSettings(s *Settings) error {
	if s.Search.TopK < MinRetrievalLimit || s.Search.TopK > MaxRetrievalLimit {
		return errors.New("search.top_k must be between 1 and 50")
	}
	if s.Search.CandidateDepth < 1 {
		return errors.New("search.candidate_depth must be at least 1")
	}
	if s.Search.RRFConstant < 1 {
		return errors.New("search.rrf_constant must be positive")
	}
	if s.CodeQL.Enabled {
		if s.CodeQL.DatabaseDir == "" {
			return errors.New("codeql.database_dir is required when codeql is enabled")
		}
		if s.CodeQL.RegistryPath == "" {
			return errors.New("codeql.registry_path is required when codeql is enabled")
		}
		if s.CodeQL.BuildTimeout <= s.CodeQL.QueryTimeout {
			return errors.New("codeql.build_timeout must exceed codeql.query_timeout")
		}
	}
	return nil
}

// IsKnownArea reports whether the business area is configured.
func (s *Settings) IsKnownArea(area string) bool {
	for _, a := range s.BusinessAreas {
		if a == area {
			return true
		}
	}
	return false
}

func defaultDataPath(name string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join("data", name)
	}
	return filepath.Join(home, ".knowledge-core", name)
}
