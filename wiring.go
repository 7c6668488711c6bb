package main

import (
	"context"
	"fmt"
	"log"

	"billing-relay/internal/billing/application"
	"billing-relay/internal/billing/infrastructure/httpfetch"
	"billing-relay/internal/billing/infrastructure/memory"
	"billing-relay/internal/billing/infrastructure/pdf"
	"billing-relay/internal/billing/infrastructure/ratelimit"
	redislock "billing-relay/internal/billing/infrastructure/redis"
	"billing-relay/internal/billing/infrastructure/xlsx"
	"billing-relay/internal/billing/metrics"
	"billing-relay/internal/billing/notify"
	"billing-relay/internal/config"
	"billing-relay/internal/mailer"
	"billing-relay/internal/stripeadapter"
)

// runtime holds the wired run service and the resources it owns.
type runtime struct {
	service *application.RunService
	closers []func() error
}

func (r *runtime) Close() {
	for i := len(r.closers) - 1; i >= 0; i-- {
		_ = r.closers[i]()
	}
}

func buildRuntime(ctx context.Context, cfg config.Config, logger *log.Logger, m *metrics.Metrics) (*runtime, error) {
	rt := &runtime{}

	sources, err := cfg.Sources()
	if err != nil {
		return nil, err
	}
	for _, src := range sources {
		if !src.HasCredential() {
			logger.Printf("config warning: account %s has no credential, it will be skipped", src.Key)
		}
	}

	stripe, err := stripeadapter.NewClient(cfg.Stripe.BaseURL, cfg.Stripe.Timeout)
	if err != nil {
		return nil, err
	}
	lister, err := application.NewRecordLister(stripe, cfg.Stripe.PageSize)
	if err != nil {
		return nil, err
	}

	limited, err := ratelimit.NewLimitedFetcher(httpfetch.NewFetcher(cfg.Download.Timeout), cfg.Download.Rate, cfg.Download.Burst)
	if err != nil {
		return nil, err
	}
	downloader, err := application.NewDownloader(limited,
		application.WithRetryPolicy(application.RetryPolicy[[]byte]{MaxAttempts: cfg.Download.Attempts}),
		application.WithDownloadObserver(m),
	)
	if err != nil {
		return nil, err
	}

	dispatcher := mailer.NewDispatcher(mailer.Config{
		Host:     cfg.Mail.Host,
		Port:     cfg.Mail.Port,
		Username: cfg.Mail.Username,
		Password: cfg.Mail.Password,
		From:     cfg.Mail.From,
		Insecure: cfg.Mail.Insecure,
	})
	if err := dispatcher.Ready(); err != nil {
		logger.Printf("config warning: %v", err)
	}

	opts := []application.PipelineOption{
		application.WithRunObserver(m),
		application.WithLogger(logger),
	}
	if cfg.SummaryAttachment {
		opts = append(opts, application.WithSummaryRenderer(xlsx.NewSummaryRenderer()))
	}
	pipeline, err := application.NewPipeline(sources, lister, downloader, pdf.NewMerger(), dispatcher,
		application.PipelineConfig{
			From:          cfg.Mail.From,
			SubjectPrefix: cfg.Mail.SubjectPrefix,
			Workers:       cfg.Download.Workers,
		}, opts...)
	if err != nil {
		return nil, err
	}

	policy, err := application.ParseWindowPolicy(cfg.Schedule.WindowPolicy)
	if err != nil {
		return nil, err
	}
	serviceOpts := []application.ServiceOption{
		application.WithLocation(cfg.Location()),
		application.WithServiceLogger(logger),
	}

	lock, closeLock, err := buildRunLock(ctx, cfg.RedisURL, logger)
	if err != nil {
		return nil, err
	}
	if closeLock != nil {
		rt.closers = append(rt.closers, closeLock)
	}
	serviceOpts = append(serviceOpts, application.WithRunLock(lock, 0))

	if cfg.WebhookURL != "" {
		var notifier notify.Notifier = notify.NewWebhookNotifier(cfg.WebhookURL)
		serviceOpts = append(serviceOpts, application.WithNotifier(notifier))
	}

	rt.service, err = application.NewRunService(pipeline, policy, serviceOpts...)
	if err != nil {
		return nil, err
	}
	return rt, nil
}

func buildRunLock(ctx context.Context, redisURL string, logger *log.Logger) (application.RunLock, func() error, error) {
	if redisURL == "" {
		return memory.NewLock(), nil, nil
	}
	client, err := redislock.NewClient(ctx, redisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	lock, err := redislock.NewLock(client)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	logger.Printf("run lock: redis")
	return lock, client.Close, nil
}
