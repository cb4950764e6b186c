package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/conneroisu/playpack/internal/server"
	"github.com/conneroisu/playpack/internal/watcher"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:     "serve [directory]",
	Aliases: []string{"s"},
	Short:   "Serve an exported bundle with live reload",
	Long: `Serve hosts an exported bundle over HTTP. HTML pages get a live-reload
script injected; when files in the served directory change, connected
browsers reload automatically.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "host to bind (default: from config)")
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "port to bind (default: from config)")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadConfigAndLogger()
	if err != nil {
		return err
	}

	root := "preview"
	if len(args) > 0 {
		root = args[0]
	}
	host := cfg.Preview.Host
	if serveHost != "" {
		host = serveHost
	}
	port := cfg.Preview.Port
	if servePort != 0 {
		port = servePort
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	srv := server.New(host, port, root, logger)

	fw, err := watcher.New(time.Duration(cfg.Preview.DebounceMillis)*time.Millisecond, logger)
	if err != nil {
		return err
	}
	defer fw.Stop()

	fw.AddHandler(func(events []watcher.ChangeEvent) error {
		srv.NotifyReload(ctx)

		return nil
	})
	if err := fw.AddRecursive(root); err != nil {
		return err
	}
	fw.Start(ctx)

	fmt.Fprintf(cmd.OutOrStdout(), "Serving %s at %s\n", root, srv.URL())

	return srv.Start(ctx)
}
