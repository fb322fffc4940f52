package main

import (
	"os"

	"github.com/ekap-project/knowledge-core/internal/app"
	"github.com/spf13/cobra"
)

var (
	// Version is injected at build time
	Version = "dev"
	// Build is injected at build time
	Build = "unknown"
	// ProgramName is injected at build time
	ProgramName = "knowledge-core"
)

func main() {
	runMain(os.Args, os.Exit)
}

func runMain(args []string, exit func(int)) {
	if err := Execute(Version, Build, ProgramName, args[1:]); err != nil {
		exit(1)
	}
}

// Execute is the entry point for the CLI, extracted for testing
func Execute(version, build, programName string, args []string) error {
	rootCmd := &cobra.Command{
		Use:           programName,
		Short:         "Knowledge retrieval core",
		Long:          "Per-tenant knowledge retrieval over documentation, code, lineage, and a derived code graph",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.SetVersionTemplate(`{{.Version}}
`)
	app.RegisterFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(
		newSearchCmd(version),
		newSourcesCmd(version),
		newAnalyzeCmd(version),
		newChangesCmd(version),
	)

	rootCmd.SetArgs(args)
	return rootCmd.Execute()
}

func setup(cmd *cobra.Command, version string) (*app.App, error) {
	return app.Setup(cmd.Context(), cmd.Flags(), version)
}

func newSearchCmd(version string) *cobra.Command {
	var (
		area    string
		sources []string
		limit   int
		filters []string
	)

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Retrieve knowledge for a business area",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, version)
			if err != nil {
				return err
			}
			defer a.Close()

			return app.RunSearch(cmd.Context(), a, cmd.OutOrStdout(), args[0], area, app.SearchOptions{
				Sources: sources,
				Limit:   limit,
				Filters: filters,
			})
		},
	}
	cmd.Flags().StringVarP(&area, "area", "A", "", "Business area (required)")
	cmd.Flags().StringSliceVarP(&sources, "sources", "s", nil, "Restrict to these sources")
	cmd.Flags().IntVarP(&limit, "limit", "l", 0, "Results per source")
	cmd.Flags().StringArrayVarP(&filters, "filter", "f", nil, "Metadata filter (key=value, repeatable)")
	_ = cmd.MarkFlagRequired("area")
	return cmd
}

func newSourcesCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sources",
		Short: "Manage registered code sources",
	}
	cmd.AddCommand(
		newSourcesRegisterCmd(version),
		newSourcesListCmd(version),
		newSourcesRemoveCmd(version),
	)
	return cmd
}

func newSourcesRegisterCmd(version string) *cobra.Command {
	var (
		area       string
		sourceType string
		languages  []string
		name       string
		disabled   bool
	)

	cmd := &cobra.Command{
		Use:   "register <path>",
		Short: "Register a code source for analysis",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, version)
			if err != nil {
				return err
			}
			defer a.Close()

			return app.RunSourcesRegister(a, cmd.OutOrStdout(), area, args[0], app.RegisterSourceOptions{
				SourceType: sourceType,
				Languages:  languages,
				Name:       name,
				Disabled:   disabled,
			})
		},
	}
	cmd.Flags().StringVarP(&area, "area", "A", "", "Business area (required)")
	cmd.Flags().StringVarP(&sourceType, "type", "t", "", "Source type (default gitlab)")
	cmd.Flags().StringSliceVarP(&languages, "languages", "l", nil, "Languages to analyze")
	cmd.Flags().StringVarP(&name, "name", "n", "", "Display name (defaults to path)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Register without enabling analysis")
	_ = cmd.MarkFlagRequired("area")
	return cmd
}

func newSourcesListCmd(version string) *cobra.Command {
	var area string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List registered code sources",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, version)
			if err != nil {
				return err
			}
			defer a.Close()

			return app.RunSourcesList(a, cmd.OutOrStdout(), area)
		},
	}
	cmd.Flags().StringVarP(&area, "area", "A", "", "Business area (required)")
	_ = cmd.MarkFlagRequired("area")
	return cmd
}

func newSourcesRemoveCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <source-id>",
		Short: "Remove a registered code source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, version)
			if err != nil {
				return err
			}
			defer a.Close()

			return app.RunSourcesRemove(a, cmd.OutOrStdout(), args[0])
		},
	}
	return cmd
}

func newAnalyzeCmd(version string) *cobra.Command {
	var (
		sourceID   string
		area       string
		fromConfig bool
	)

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run code analysis for a source or a business area",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, version)
			if err != nil {
				return err
			}
			defer a.Close()

			return app.RunAnalyze(cmd.Context(), a, cmd.OutOrStdout(), app.AnalyzeOptions{
				SourceID:   sourceID,
				Area:       area,
				FromConfig: fromConfig,
			})
		},
	}
	cmd.Flags().StringVarP(&sourceID, "source-id", "s", "", "Analyze a single registered source")
	cmd.Flags().StringVarP(&area, "area", "A", "", "Analyze every enabled source in a business area")
	cmd.Flags().BoolVar(&fromConfig, "from-config", false, "Register the area's configured repositories first")
	return cmd
}

func newChangesCmd(version string) *cobra.Command {
	var (
		area   string
		source string
	)

	cmd := &cobra.Command{
		Use:   "changes <document-id>...",
		Short: "Compare document ids against the last recorded sync",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := setup(cmd, version)
			if err != nil {
				return err
			}
			defer a.Close()

			return app.RunChanges(a, cmd.OutOrStdout(), area, source, args)
		},
	}
	cmd.Flags().StringVarP(&area, "area", "A", "", "Business area (required)")
	cmd.Flags().StringVarP(&source, "source", "s", "", "Source name (required)")
	_ = cmd.MarkFlagRequired("area")
	_ = cmd.MarkFlagRequired("source")
	return cmd
}
