package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"

	"outlookmcp/internal/server"
	"outlookmcp/pkg/logging"
)

var (
	serveHost string
	servePort int
)

// serveCmd starts the authentication HTTP server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the authentication server",
	Long: `Starts the HTTP server that sends users to Microsoft for sign-in and
receives the OAuth callback.

Routes:
  /                 instructions
  /auth?user_id=ID  start sign-in for an identity
  /auth/callback    provider redirect target (must match MS_REDIRECT_URI)
  /healthz          liveness probe

The server runs until it receives SIGINT or SIGTERM. Under systemd it reports
READY=1 once listening and STOPPING=1 on shutdown.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadedConfig
	if cmd.Flags().Changed("host") {
		cfg.Server.Host = serveHost
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port = servePort
	}

	c, err := newComponents(cfg)
	if err != nil {
		return err
	}
	srv, err := server.New(cfg, c.flow, c.cipher)
	if err != nil {
		return err
	}

	ln, err := net.Listen("tcp", cfg.Server.Addr())
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", cfg.Server.Addr(), err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)
	go func() {
		select {
		case sig := <-sigChan:
			logging.Info("Server", "Received %s", sig)
			notifySystemd(daemon.SdNotifyStopping)
			cancel()
		case <-ctx.Done():
		}
	}()

	notifySystemd(daemon.SdNotifyReady)
	return srv.Serve(ctx, ln)
}

// notifySystemd sends state to systemd when running as a notify service.
func notifySystemd(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		logging.Warn("Server", "systemd notification %q failed: %v", state, err)
		return
	}
	if sent {
		logging.Debug("Server", "Sent systemd notification %q", state)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (overrides server.host)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides server.port)")
}
