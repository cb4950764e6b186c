package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/conneroisu/playpack/internal/export"
	"github.com/conneroisu/playpack/internal/project"
)

var dataRuntimeSpec string

var dataCmd = &cobra.Command{
	Use:     "data [project-file] [destination]",
	Aliases: []string{"d"},
	Short:   "Export project data without code generation",
	Long: `Data serializes the project configuration into a single script file,
without generating any scene code. Useful for hot-reloading project
settings into an already-running preview.

The optional runtime spec is injected alongside the data. Pass it
inline as JSON, or prefix with @ to read it from a file:

  playpack data game.json data.js --runtime-spec '{"initialScene":"Menu"}'
  playpack data game.json data.js --runtime-spec @spec.json`,
	Args: cobra.MaximumNArgs(2),
	RunE: runData,
}

func init() {
	rootCmd.AddCommand(dataCmd)

	dataCmd.Flags().StringVar(&dataRuntimeSpec, "runtime-spec", "", "runtime specification as JSON, or @file")
}

func runData(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}

	projectPath := "game.json"
	if len(args) > 0 {
		projectPath = args[0]
	}
	destPath := "data.js"
	if len(args) > 1 {
		destPath = args[1]
	}

	fs := afero.NewOsFs()

	spec := dataRuntimeSpec
	if strings.HasPrefix(spec, "@") {
		raw, err := afero.ReadFile(fs, spec[1:])
		if err != nil {
			return fmt.Errorf("cannot read runtime spec file: %w", err)
		}
		spec = string(raw)
	}

	p, err := project.Load(fs, projectPath)
	if err != nil {
		return err
	}

	exporter := export.New(fs, cfg, logger, nil, nil, nil)
	if err := exporter.ExportProjectData(cmd.Context(), p, destPath, spec); err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Project data written to %s\n", destPath)

	return nil
}
