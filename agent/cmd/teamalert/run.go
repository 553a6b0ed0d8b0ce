package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teamalert/teamalert/agent/internal/api"
	"github.com/teamalert/teamalert/agent/internal/auth"
	"github.com/teamalert/teamalert/agent/internal/config"
	"github.com/teamalert/teamalert/agent/internal/history"
	"github.com/teamalert/teamalert/agent/internal/notifier"
	"github.com/teamalert/teamalert/agent/internal/runner"
	"github.com/teamalert/teamalert/agent/internal/store"
	"github.com/teamalert/teamalert/agent/internal/ws"
)

var runConfig string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daemon: poll jobs and drive the lights",
	RunE:  runDaemon,
}

func init() {
	runCmd.Flags().StringVar(&runConfig, "config", "teamalert.yaml", "Path to config file")
}

// runDaemon wires the status surface and the notifiers around a Runner.
// Status, notify and history settings are read once at start; alerts,
// lights and jobs follow every reload.
func runDaemon(cmd *cobra.Command, args []string) error {
	slog.Info("teamalert starting", "version", version, "config", runConfig)

	cfg, err := config.Load(runConfig)
	if err != nil {
		return err
	}
	slog.Info("config loaded",
		"jenkins", len(cfg.Jenkins),
		"alerts", len(cfg.Alerts),
		"poll_interval", cfg.PollInterval,
		"reload_interval", cfg.ReloadInterval,
		"status_addr", cfg.Status.ListenAddr,
	)

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Status store with background TTL eviction; alerts dropped by a reload
	// age out.
	st := store.New(cfg.Status.TTL)
	go st.Run(ctx)

	fanout := notifier.NewFanout()
	for _, wh := range cfg.Notify.Webhooks {
		fanout.Add(notifier.NewWebhook(wh, nil))
	}
	if cfg.Notify.NATS.URL != "" {
		nc, err := notifier.Connect(cfg.Notify.NATS.URL)
		if err != nil {
			return err
		}
		defer nc.Drain() //nolint:errcheck
		fanout.Add(notifier.NewNATS(nc, cfg.Notify.NATS.Subject))
	}
	if cfg.History.Path != "" {
		j, err := history.Open(cfg.History.Path)
		if err != nil {
			return err
		}
		defer j.Close()
		fanout.Add(notifier.Journal(j))
	}

	var httpSrv *http.Server
	if cfg.Status.ListenAddr != "" {
		hub := ws.New(st, cfg.Status.BroadcastInterval)
		go hub.Run(ctx)
		fanout.Add(notifier.FromObserver("ws", hub))

		mux := http.NewServeMux()
		apiHandler := api.New(st)
		mux.Handle("/api/", apiHandler)
		mux.Handle("/metrics", apiHandler)
		mux.Handle("/ws/stream", hub)

		sa := cfg.Status.Auth
		if sa.Mode == "apikey" && sa.Key() == "" {
			slog.Warn("status auth mode is apikey but no key is set; endpoints are open", "key_env", sa.KeyEnv)
		}
		httpSrv = &http.Server{
			Addr:              cfg.Status.ListenAddr,
			Handler:           auth.APIKey(sa.Mode, sa.EffectiveHeader(), sa.Key())(mux),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			slog.Info("status server listening", "addr", cfg.Status.ListenAddr)
			if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				slog.Error("status server stopped", "err", err)
			}
		}()
	}
	slog.Info("notifiers configured", "sinks", fanout.Len())

	r := runner.New(runConfig,
		runner.WithStore(st),
		runner.WithObserver(fanout),
		runner.WithVirtualOutput(os.Stdout),
	)

	go func() {
		if err := config.Watch(ctx, runConfig, func(*config.Config) {
			r.RequestReload()
		}); err != nil {
			slog.Error("config watcher stopped", "err", err)
		}
	}()

	runErr := r.Run(ctx)

	slog.Info("teamalert shutting down")
	if httpSrv != nil {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		httpSrv.Shutdown(shutdownCtx) //nolint:errcheck
	}
	if runErr != nil {
		return fmt.Errorf("run: %w", runErr)
	}
	return nil
}
