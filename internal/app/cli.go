package app

import "github.com/spf13/pflag"

// RegisterFlags registers settings-override flags on the given FlagSet
func RegisterFlags(flags *pflag.FlagSet) {
	flags.StringSliceP("business-areas", "b", nil, "Business areas (comma-separated)")
	flags.String("sources-config", "", "Per-area source configuration entries")
	flags.String("retriever-overrides", "", "Per-source retriever override entries")
	flags.IntP("top-k", "k", 0, "Default number of results per source")
	flags.String("vector-host", "", "Vector index host")
	flags.String("graph-url", "", "Graph store URL")
	flags.Bool("codeql-enabled", false, "Enable the code analysis pipeline")
	flags.String("codeql-cli-path", "", "Path to the codeql binary")
	flags.String("codeql-database-dir", "", "Directory for built databases")
	flags.String("codeql-registry-path", "", "Path to the code source registry file")
}
