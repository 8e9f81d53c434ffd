package cmd

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bnema/pttsync/internal/adapters/backend"
	metricsadapter "github.com/bnema/pttsync/internal/adapters/metrics"
	historyrender "github.com/bnema/pttsync/internal/adapters/render/history"
	"github.com/bnema/pttsync/internal/adapters/stream"
	"github.com/bnema/pttsync/internal/application"
	"github.com/bnema/pttsync/internal/domain"
	"github.com/bnema/pttsync/internal/ports"
	"github.com/spf13/cobra"
)

type listenOptions struct {
	topics       []string
	metricsAddr  string
	syncInterval time.Duration
}

func newListenCmd(app *app) *cobra.Command {
	var opts listenOptions

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Stream alarm and channel events until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return runListen(ctx, cmd.OutOrStdout(), app, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.topics, "topic", []string{"alarm", "channel"}, "Topics to subscribe to (alarm, channel)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9464)")
	cmd.Flags().DurationVar(&opts.syncInterval, "sync-interval", 0, "Also sync the history cache from the backend at this interval (0 disables)")

	return cmd
}

func runListen(ctx context.Context, out io.Writer, app *app, opts listenOptions) error {
	baseURL, err := app.cfg.BaseURL()
	if err != nil {
		return err
	}
	creds, err := app.credentials(ctx)
	if err != nil {
		return err
	}

	var metrics ports.StreamMetrics = ports.NopStreamMetrics{}
	if opts.metricsAddr != "" {
		exporter := metricsadapter.NewStream()
		metrics = exporter
		go func() {
			if err := exporter.Serve(ctx, opts.metricsAddr, app.logger); err != nil {
				app.logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	dispatcher := stream.NewDispatcher()
	defer dispatcher.Close()

	subscriber := &printingSubscriber{out: out, logger: app.logger}
	conns := make([]*stream.Connection, 0, len(opts.topics))
	for _, name := range opts.topics {
		topic, err := app.topic(name)
		if err != nil {
			return err
		}

		conn, err := stream.NewConnection(stream.ConnectionConfig{
			BaseURL:        baseURL,
			Topic:          topic,
			Credentials:    creds,
			Router:         stream.NewRouter(topic, subscriber, dispatcher, metrics, app.logger),
			HTTPClient:     app.httpClient,
			Clock:          app.clock,
			Metrics:        metrics,
			Logger:         app.logger,
			RequestTimeout: app.cfg.Stream.RequestTimeout,
			MaxBufferBytes: app.cfg.Stream.MaxBufferBytes,
		})
		if err != nil {
			return fmt.Errorf("configure %s stream: %w", topic.Name, err)
		}
		conns = append(conns, conn)
	}

	if opts.syncInterval > 0 {
		client, err := backend.NewClient(baseURL, creds, backend.WithClock(app.clock), backend.WithLogger(app.logger))
		if err != nil {
			return err
		}
		cache, release, err := app.openHistoryCache(ctx)
		if err != nil {
			return err
		}
		defer release()

		go syncHistoryEvery(ctx, app.logger, client, cache, opts.syncInterval)
	}

	group := stream.NewGroup(conns...)
	group.Start()

	<-ctx.Done()
	app.logger.Info("shutting down", "reason", context.Cause(ctx))
	group.Stop()

	// Queued behind the final disconnect callbacks so output stays ordered.
	states := group.States()
	dispatcher.Post(context.Background(), func() {
		if _, err := fmt.Fprintln(out, historyrender.RenderConnections(states)); err != nil {
			app.logger.Warn("writing connection summary failed", "error", err)
		}
	})
	return nil
}

// topic applies the configured retry policy to a preset topic.
func (a *app) topic(name string) (stream.Topic, error) {
	topic, ok := stream.TopicByName(name)
	if !ok {
		return stream.Topic{}, fmt.Errorf("unknown topic %q (want alarm or channel)", name)
	}

	switch topic.Name {
	case stream.AlarmTopicName:
		topic.MaxRetries = a.cfg.Topics.Alarm.MaxRetries
		topic.RetryDelay = a.cfg.Topics.Alarm.RetryDelay
	case stream.ChannelTopicName:
		topic.MaxRetries = a.cfg.Topics.Channel.MaxRetries
		topic.RetryDelay = a.cfg.Topics.Channel.RetryDelay
	}
	return topic, nil
}

func syncHistoryEvery(ctx context.Context, logger *slog.Logger, client *backend.Client, cache *application.HistoryCache, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		items, err := client.FetchHistory(ctx)
		if err != nil {
			logger.Warn("history sync failed", "error", err)
		} else if err := cache.SyncWithBackend(items); err != nil {
			logger.Warn("history merge rejected", "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// printingSubscriber writes one line per event. The dispatcher serialises
// calls, so it needs no locking.
type printingSubscriber struct {
	out    io.Writer
	logger *slog.Logger
}

var _ ports.EventSubscriber = (*printingSubscriber)(nil)

func (s *printingSubscriber) OnEvent(topic string, event domain.Event) {
	if _, err := fmt.Fprintln(s.out, historyrender.FormatEvent(topic, event)); err != nil {
		s.logger.Warn("writing event failed", "error", err)
	}
}

func (s *printingSubscriber) OnConnectionChange(topic string, connected bool) {
	state := "disconnected"
	if connected {
		state = "connected"
	}
	if _, err := fmt.Fprintf(s.out, "[%s] %s\n", topic, state); err != nil {
		s.logger.Warn("writing connection change failed", "error", err)
	}
}
