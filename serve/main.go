// Command ghostlined is the ghostline daemon.
// It listens on a Unix domain socket for completion requests from editors,
// gathers context, and streams AI-generated completions back as events.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	ghostline "github.com/Paranoid-AF/ghostline"
	"github.com/Paranoid-AF/ghostline/logger"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	showVersion := flag.Bool("version", false, "print version and exit")
	verbose := flag.Bool("verbose", false, "log every request and event")
	jsonLogs := flag.Bool("json", false, "log as JSON")
	pretty := flag.Bool("pretty", false, "colorized terminal logs")
	source := flag.Bool("source", false, "include source locations in logs")
	flag.Parse()

	if *showVersion {
		fmt.Println("ghostlined", Version)
		os.Exit(0)
	}

	log := logger.New(
		logger.WithDebug(*verbose),
		logger.WithJSON(*jsonLogs),
		logger.WithPretty(*pretty),
		logger.WithSource(*source),
	)
	slog.SetDefault(log)

	socketPath := ghostline.SocketPath()

	log.Info("starting", "socket", socketPath, "version", Version)

	srv, err := NewServer(socketPath, log)
	if err != nil {
		log.Error("failed to start server", "error", err)
		os.Exit(1)
	}
	defer srv.Close()

	// Handle graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("shutting down", "signal", sig.String())
		srv.Close()
	}()

	log.Info("ready")
	if err := srv.Serve(); err != nil && !isClosed(err) {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
