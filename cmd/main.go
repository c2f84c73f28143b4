package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/loicbachelot/cross-section-digitizer/internal/application/ports"
	"github.com/loicbachelot/cross-section-digitizer/internal/interfaces/cli"
	"github.com/loicbachelot/cross-section-digitizer/internal/interfaces/di"
)

func main() {
	container, err := di.NewContainer()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize application: %v\n", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		container.Logger.Log(ports.LogLevelInfo, "Received shutdown signal, shutting down gracefully", nil)
		cancel()

		// A second signal skips the graceful path.
		<-sigChan
		os.Exit(1)
	}()

	cli.Execute(ctx, container.GetCLIContainer())

	if err := container.Shutdown(context.Background()); err != nil {
		container.Logger.LogError(err, "Error during shutdown", nil)
	}
}
