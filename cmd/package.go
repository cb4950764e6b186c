package cmd

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/conneroisu/playpack/internal/export"
	"github.com/conneroisu/playpack/internal/manifest"
	"github.com/conneroisu/playpack/internal/project"
)

var (
	packageOut    string
	packageMinify bool
	packageFormat = formatValue("text")
)

var packageCmd = &cobra.Command{
	Use:     "package <target> [project-file]",
	Aliases: []string{"pkg"},
	Short:   "Export the project for a packaged target",
	Long: `Package exports the project as a complete bundle for one of the
packaged targets:

  mobile    Hybrid-mobile shell (Cordova-style config.xml)
  desktop   Desktop shell (package.json plus bootstrap script)
  social    Social-platform shell (fbapp-config.json)

With --minify, adjacent mergeable modules are combined into numbered
bundles and run through the configured minifier.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runPackage,
}

func init() {
	rootCmd.AddCommand(packageCmd)

	packageCmd.Flags().StringVarP(&packageOut, "out", "o", "", "output directory (default: the target name)")
	packageCmd.Flags().BoolVar(&packageMinify, "minify", false, "merge and minify mergeable modules")
	packageCmd.Flags().VarP(&packageFormat, "format", "f", "result output format (text, json, yaml)")
}

func runPackage(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}

	target, err := manifest.ParseTarget(args[0])
	if err != nil {
		return err
	}

	projectPath := "game.json"
	if len(args) > 1 {
		projectPath = args[1]
	}

	out := packageOut
	if out == "" {
		out = target.String()
	}

	fs := afero.NewOsFs()
	p, err := project.Load(fs, projectPath)
	if err != nil {
		return err
	}

	exporter := export.New(fs, cfg, logger, nil, nil, logProgress{log: logger})
	result, err := exporter.ExportForPackagedTarget(cmd.Context(), target, p, out, packageMinify)
	if err != nil {
		return err
	}

	return printResult(cmd.OutOrStdout(), result, string(packageFormat))
}
