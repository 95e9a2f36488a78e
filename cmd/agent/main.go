package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/persys-dev/persys-agent/pkg/apiserver"
	"github.com/persys-dev/persys-agent/pkg/auth"
	"github.com/persys-dev/persys-agent/pkg/composectl"
	"github.com/persys-dev/persys-agent/pkg/config"
	"github.com/persys-dev/persys-agent/pkg/cronsurface"
	"github.com/persys-dev/persys-agent/pkg/dispatcher"
	"github.com/persys-dev/persys-agent/pkg/heartbeat"
	"github.com/persys-dev/persys-agent/pkg/hostprobe"
	"github.com/persys-dev/persys-agent/pkg/identity"
	"github.com/persys-dev/persys-agent/pkg/log"
	"github.com/persys-dev/persys-agent/pkg/reconciler"
	"github.com/persys-dev/persys-agent/pkg/registrar"
	"github.com/persys-dev/persys-agent/pkg/runtime"
	"github.com/persys-dev/persys-agent/pkg/swarmctl"
)

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

const (
	registrationAttempts = 3
	registrationBackoff  = 30 * time.Second
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "agent",
	Short:   "persys-agent - node agent for the persys cluster fabric",
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"persys-agent version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().String("log-level", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "Output logs in JSON format")
	rootCmd.PersistentFlags().String("identity-dir", ".", "Directory holding node_id.txt and trusted_key.txt")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(runCmd)
}

func initLogging() {
	logLevel, _ := rootCmd.PersistentFlags().GetString("log-level")
	logJSON, _ := rootCmd.PersistentFlags().GetBool("log-json")

	log.Init(log.Config{
		Level:      log.Level(logLevel),
		JSONOutput: logJSON,
	})
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Register with the scheduler and start serving the agent HTTP API",
	RunE:  runAgent,
}

func runAgent(cmd *cobra.Command, args []string) error {
	identityDir, _ := cmd.Flags().GetString("identity-dir")

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	color.Cyan("persys-agent starting")
	fmt.Printf("  Central URL: %s\n", cfg.CentralURL)
	fmt.Printf("  Agent Port:  %d\n", cfg.AgentPort)
	fmt.Println()

	idStore := identity.NewStore(identityDir)
	prober, err := hostprobe.NewProber()
	if err != nil {
		return fmt.Errorf("open host probe: %w", err)
	}
	rt := runtime.NewAdapter("")
	disp := dispatcher.New(rt)
	recon := reconciler.New(rt, disp)

	nodeID, err := idStore.LoadOrCreateNodeID()
	if err != nil {
		return fmt.Errorf("load node id: %w", err)
	}
	agentLog := log.WithNodeID(nodeID)

	reg := registrar.New(cfg.CentralURL, cfg.AgentPort, cfg.AgentSecret, idStore, prober)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ready, err := registerWithRetry(ctx, agentLog, reg)
	if err != nil {
		return fmt.Errorf("registration failed after %d attempts: %w", registrationAttempts, err)
	}
	if ready {
		agentLog.Info().Msg("agent: registered with scheduler, node is active")
		color.Green("✓ Registered with scheduler, node is active")
	} else {
		agentLog.Info().Msg("agent: registered with scheduler, node reports busy")
		color.Yellow("✓ Registered with scheduler, node reports busy")
	}

	authMiddleware := auth.New(idStore, cfg.AgentSecret, nil)

	server := &apiserver.Server{
		NodeID:     nodeID,
		Identity:   idStore,
		Prober:     prober,
		Runtime:    rt,
		Dispatcher: disp,
		Reconciler: recon,
		Compose:    composectl.New(""),
		Cron:       cronsurface.New(),
		Swarm:      swarmctl.New(rt),
		Auth:       authMiddleware,
	}

	addr := fmt.Sprintf(":%d", cfg.AgentPort)
	httpServer := &http.Server{
		Addr:    addr,
		Handler: server.Handler(),
	}

	httpLog := log.WithComponent("apiserver")
	errCh := make(chan error, 1)
	go func() {
		httpLog.Info().Str("addr", addr).Msg("agent: starting HTTP server")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()
	color.Green("✓ HTTP API listening on %s", addr)

	hb := heartbeat.New(cfg.CentralURL, nodeID, prober)
	go hb.Run(ctx)
	color.Green("✓ Heartbeat loop started")

	fmt.Println()
	fmt.Println("Agent is running. Press Ctrl+C to stop.")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigCh:
		fmt.Println("\nShutting down...")
	case err := <-errCh:
		fmt.Fprintf(os.Stderr, "\nHTTP server error: %v\n", err)
	}

	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown HTTP server: %w", err)
	}

	agentLog.Info().Msg("agent: shutdown complete")
	fmt.Println("✓ Shutdown complete")
	return nil
}

// registerWithRetry attempts registration up to registrationAttempts times,
// waiting registrationBackoff between attempts, per the startup contract:
// the agent refuses to run unregistered.
func registerWithRetry(ctx context.Context, logger zerolog.Logger, reg *registrar.Registrar) (ready bool, err error) {
	for attempt := 1; attempt <= registrationAttempts; attempt++ {
		ready, err = reg.Register(ctx)
		if err == nil {
			return ready, nil
		}

		logger.Warn().Err(err).Int("attempt", attempt).Msg("agent: registration attempt failed")
		if attempt < registrationAttempts {
			time.Sleep(registrationBackoff)
		}
	}
	return false, err
}
