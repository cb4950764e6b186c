package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/conneroisu/playpack/internal/export"
	"github.com/conneroisu/playpack/internal/project"
	"github.com/conneroisu/playpack/internal/server"
	"github.com/conneroisu/playpack/internal/watcher"
)

var (
	previewOut            string
	previewScene          string
	previewExternalLayout string
	previewDebugger       string
	previewDataOnly       bool
	previewFullRebuild    bool
	previewWatch          bool
	previewServe          bool
	previewFormat         = formatValue("text")
)

var previewCmd = &cobra.Command{
	Use:     "preview [project-file]",
	Aliases: []string{"p"},
	Short:   "Export a browser preview of the project",
	Long: `Preview exports the project as a browsable bundle into the output
directory. Repeated previews of the same project are incremental:
unchanged scene code is reused from the previous run.

With --watch the export re-runs whenever the project file or the
runtime distribution changes. With --serve the output directory is
served over HTTP with live reload pushed to connected browsers.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPreview,
}

func init() {
	rootCmd.AddCommand(previewCmd)

	previewCmd.Flags().StringVarP(&previewOut, "out", "o", "preview", "output directory for the preview bundle")
	previewCmd.Flags().StringVar(&previewScene, "scene", "", "scene to run first (default: the project's first scene)")
	previewCmd.Flags().StringVar(&previewExternalLayout, "external-layout", "", "external layout instantiated at startup")
	previewCmd.Flags().StringVar(&previewDebugger, "debugger", "", "debugger server address as host:port; enables the debugger client")
	previewCmd.Flags().BoolVar(&previewDataOnly, "data-only", false, "rewrite project data only, skipping code generation")
	previewCmd.Flags().BoolVar(&previewFullRebuild, "full-rebuild", false, "regenerate everything, ignoring cached fingerprints")
	previewCmd.Flags().BoolVarP(&previewWatch, "watch", "w", false, "re-export when the project or runtime changes")
	previewCmd.Flags().BoolVarP(&previewServe, "serve", "s", false, "serve the preview over HTTP with live reload")
	previewCmd.Flags().VarP(&previewFormat, "format", "f", "result output format (text, json, yaml)")
}

func runPreview(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}

	projectPath := "game.json"
	if len(args) > 0 {
		projectPath = args[0]
	}

	debuggerHost, debuggerPort := "", ""
	if previewDebugger != "" {
		debuggerHost, debuggerPort, err = net.SplitHostPort(previewDebugger)
		if err != nil {
			return fmt.Errorf("invalid --debugger address %q: %w", previewDebugger, err)
		}
	}

	fs := afero.NewOsFs()
	exporter := export.New(fs, cfg, logger, nil, nil, logProgress{log: logger})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	doExport := func(ctx context.Context, fullRebuild bool) (*export.Result, error) {
		p, err := project.Load(fs, projectPath)
		if err != nil {
			return nil, err
		}

		result, err := exporter.ExportForPreview(ctx, export.PreviewOptions{
			Project:               p,
			OutputPath:            previewOut,
			DebuggerHost:          debuggerHost,
			DebuggerPort:          debuggerPort,
			InitialScene:          previewScene,
			InitialExternalLayout: previewExternalLayout,
			PriorModuleHashes:     loadHashes(fs, previewOut),
			FullRebuild:           fullRebuild,
			DataOnly:              previewDataOnly,
		})
		if err != nil {
			return nil, err
		}
		if err := saveHashes(fs, previewOut, result.UpdatedHashes); err != nil {
			logger.Warn(ctx, err, "cannot persist module fingerprints", "output", previewOut)
		}

		return result, nil
	}

	result, err := doExport(ctx, previewFullRebuild)
	if err != nil {
		return err
	}
	if err := printResult(cmd.OutOrStdout(), result, string(previewFormat)); err != nil {
		return err
	}

	if !previewWatch && !previewServe {
		return nil
	}

	var srv *server.PreviewServer
	if previewServe {
		srv = server.New(cfg.Preview.Host, cfg.Preview.Port, previewOut, logger)
		go func() {
			if err := srv.Start(ctx); err != nil {
				logger.Error(ctx, err, "preview server stopped")
				stop()
			}
		}()
		fmt.Fprintf(cmd.OutOrStdout(), "Serving preview at %s\n", srv.URL())
	}

	if previewWatch {
		fw, err := watcher.New(time.Duration(cfg.Preview.DebounceMillis)*time.Millisecond, logger)
		if err != nil {
			return err
		}
		defer fw.Stop()

		fw.AddFilter(watcher.JSFilter)
		fw.AddHandler(func(events []watcher.ChangeEvent) error {
			logger.Info(ctx, "change detected, re-exporting", "events", len(events))
			if _, err := doExport(ctx, false); err != nil {
				logger.Error(ctx, err, "re-export failed")

				return nil
			}
			if srv != nil {
				srv.NotifyReload(ctx)
			}

			return nil
		})

		if err := fw.AddPath(projectPath); err != nil {
			return err
		}
		if err := fw.AddRecursive(cfg.Runtime.Root); err != nil {
			logger.Warn(ctx, err, "cannot watch runtime root", "root", cfg.Runtime.Root)
		}

		fw.Start(ctx)
		fmt.Fprintln(cmd.OutOrStdout(), "Watching for changes. Press Ctrl+C to stop.")
	}

	<-ctx.Done()

	return nil
}
