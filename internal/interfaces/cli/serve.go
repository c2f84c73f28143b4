package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/loicbachelot/cross-section-digitizer/internal/infrastructure/server"
	"github.com/loicbachelot/cross-section-digitizer/internal/infrastructure/storage"
	"github.com/spf13/cobra"
)

const serveShutdownTimeout = 5 * time.Second

// ServeFlags holds the command-line flags for the serve command
type ServeFlags struct {
	Addr    string
	AuthKey string
}

// NewServeCommand creates the serve command
func NewServeCommand(container *CLIContainer) *cobra.Command {
	flags := &ServeFlags{}

	cmd := &cobra.Command{
		Use:   "serve <dir>",
		Short: "Serve a repository directory over HTTP",
		Long: `Serve a QGIS plugin repository directory over HTTP.

The directory holds plugins.xml and the package zips, as written by
'csd publish' or 'csd index'. Responses carry ETags so the QGIS plugin
manager can poll cheaply. With --auth-key every request must carry the
key in the X-API-KEY header.

Examples:
  csd serve ./repo
  csd serve ./repo --addr :8080
  csd serve ./repo --auth-key secret`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), container, args[0], flags)
		},
	}

	cmd.Flags().StringVar(&flags.Addr, "addr", "", "Listen address (default 127.0.0.1:8808)")
	cmd.Flags().StringVar(&flags.AuthKey, "auth-key", "", "Require this X-API-KEY header value")

	return cmd
}

// runServe blocks serving the repository until the context is cancelled
func runServe(ctx context.Context, container *CLIContainer, dir string, flags *ServeFlags) error {
	cfg := loadConfiguration(container)

	addr := flags.Addr
	if addr == "" {
		addr = cfg.ServeAddr
	}
	authKey := flags.AuthKey
	if authKey == "" {
		authKey = cfg.RepositoryAuthKey
	}

	target, err := storage.NewLocalTarget(dir)
	if err != nil {
		return fmt.Errorf("failed to open repository directory: %w", err)
	}

	srv := server.NewServer(target, authKey, container.Logger)

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serveShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			container.Logger.LogError(err, "Server shutdown failed", nil)
		}
	}()

	fmt.Printf("Serving %s on http://%s\n", dir, addr)
	if authKey != "" {
		fmt.Println("Requests must send the X-API-KEY header")
	}
	fmt.Println("Press Ctrl+C to stop")

	return srv.Start(addr)
}
