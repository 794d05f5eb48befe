package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/WKowalczykDev/EntranceControl/internal/web"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	Long: `Start the Entrance Control HTTP API.
Gates submit verification attempts to /api/v1/verify; operators enroll
reference photos, rebuild embeddings and browse the attempt history.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().Int("port", 0, "Port to listen on (default WEB_PORT or 8080)")
	serveCmd.Flags().String("host", "", "Host to bind to (default WEB_HOST or 0.0.0.0)")
}

// resolveServeHostPort prefers flags over the configured WEB_PORT and WEB_HOST.
func resolveServeHostPort(cmd *cobra.Command, port int, host string) (int, string) {
	if p := mustGetInt(cmd, "port"); p > 0 {
		port = p
	}
	if h := mustGetString(cmd, "host"); h != "" {
		host = h
	}
	return port, host
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	if err := a.startAudit(ctx); err != nil {
		a.close(ctx)
		return err
	}

	port, host := resolveServeHostPort(cmd, a.cfg.Web.Port, a.cfg.Web.Host)
	server := web.NewServer(a.cfg, web.Services{
		Engine:       a.engine(),
		Persons:      a.directory,
		Gates:        a.directory,
		Attempts:     a.attempts,
		Images:       a.images,
		ImageRecords: a.directory,
		Embeddings:   a.store,
		Encoder:      a.encoder,
	}, port, host, a.logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-sigChan
		fmt.Println("\nShutting down...")

		shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
		defer shutdownCancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			fmt.Printf("Error during shutdown: %v\n", err)
		}
	}()

	fmt.Printf("Starting Entrance Control API on http://%s:%d\n", host, port)
	fmt.Println("Press Ctrl+C to stop")

	if err := server.Start(); err != nil {
		a.close(ctx)
		return err
	}
	<-shutdownDone

	// In-flight attempts have been answered; flush their audit records.
	closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer closeCancel()
	a.close(closeCtx)
	return nil
}
