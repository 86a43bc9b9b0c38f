package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"TradeVision/internal/notifier"
	"TradeVision/internal/scheduler"
	"TradeVision/internal/server"
	"TradeVision/internal/watcher"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard API, websocket feed and Telegram bot",
	Long: `Loads the dataset, then runs until interrupted:
  - HTTP API and websocket feed on http.addr
  - cron reloads (schedule.reload_cron) and forecast pushes (schedule.forecast_cron)
  - file watcher on data.csv_path when data.watch is set
  - Telegram command polling when bot credentials are configured`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()
	cfg := a.cfg

	hub := server.NewHub(a.metrics, logger)
	a.collector.OnLoaded(hub.PublishDataset)
	a.collector.Reload(ctx)

	var (
		srvAnalyst   server.Analyst
		schedAnalyst scheduler.Analyst
		sender       scheduler.Sender
		tn           *notifier.TelegramNotifier
	)
	if a.analyst != nil {
		srvAnalyst, schedAnalyst = a.analyst, a.analyst
	}
	if cfg.TelegramEnabled() {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, logger)
		sender = tn
	}

	srv := server.New(a.collector, server.Options{
		Symbol:      cfg.Data.Symbol,
		CORSOrigins: cfg.HTTP.CORSOrigins,
		Analyst:     srvAnalyst,
		Recorder:    a.recorder,
		Metrics:     a.metrics,
		Hub:         hub,
		Logger:      logger,
	})

	sched := scheduler.NewScheduler(ctx, a.collector, schedAnalyst, sender, logger)
	if err := sched.RegisterAll(cfg.Schedule.ReloadCron, cfg.Schedule.ForecastCron); err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Run(gctx, cfg.HTTP.Addr) })
	g.Go(func() error { return hub.Run(gctx) })
	g.Go(func() error {
		sched.Start()
		<-gctx.Done()
		sched.Stop()
		return nil
	})
	if cfg.Data.Watch && cfg.Data.CSVURL == "" {
		w := watcher.New(cfg.Data.CSVPath, cfg.WatchDebounce(), func(ctx context.Context) {
			a.collector.Reload(ctx)
		}, logger)
		g.Go(func() error { return w.Run(gctx) })
	}
	if tn != nil {
		g.Go(func() error {
			tn.StartPolling(gctx, sched.HandleCommand)
			return nil
		})
		logger.Info("telegram polling started")
	}

	logger.Info("tradevision is running", zap.String("addr", cfg.HTTP.Addr))
	err = g.Wait()
	logger.Info("tradevision stopped")
	return err
}
