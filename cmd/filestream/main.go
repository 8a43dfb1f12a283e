// Command filestream lists, reads and streams files from local disk, object
// stores and HTTP, printing each item as a JSON line. With a checkpoint key
// it records its progress and resumes where the previous run stopped.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/kbukum/filestream/logger"

	// Storage backends register themselves with the storage factory.
	_ "github.com/kbukum/filestream/storage/gcs"
	_ "github.com/kbukum/filestream/storage/httpfs"
	_ "github.com/kbukum/filestream/storage/local"
	_ "github.com/kbukum/filestream/storage/memory"
	_ "github.com/kbukum/filestream/storage/s3"
)

func main() {
	// Until the configuration is loaded, log according to LOG_* variables.
	log := logger.NewFromEnv(appName)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case sig := <-sigCh:
			log.Info("received signal, stopping", logger.Fields("signal", sig.String()))
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		log.Error("command failed", logger.Fields(logger.FieldError, err.Error()))
		os.Exit(1)
	}
}
