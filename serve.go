package main

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"billing-relay/internal/audit"
	"billing-relay/internal/auth"
	"billing-relay/internal/billing/application"
	"billing-relay/internal/billing/interfaces"
	"billing-relay/internal/billing/metrics"
	"billing-relay/internal/config"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP trigger and the scheduler",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides HTTP_ADDR)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if serveAddr != "" {
		cfg.HTTPAddr = serveAddr
	}
	logger := log.New(os.Stdout, "", log.LstdFlags)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	rt, err := buildRuntime(ctx, cfg, logger, m)
	if err != nil {
		return err
	}
	defer rt.Close()

	var auditLogger audit.Logger
	if cfg.DatabaseURL != "" {
		db, err := openAuditDB(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer db.Close()
		repo := audit.NewRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			return err
		}
		auditLogger = repo
	}

	runHandler, err := interfaces.NewRunHandler(rt.service, auditLogger, logger)
	if err != nil {
		return err
	}

	if cfg.JWTSecret == "" {
		logger.Printf("config warning: AUTH_JWT_SECRET unset, trigger endpoints are unauthenticated")
	}
	authMiddleware := auth.NewMiddleware([]byte(cfg.JWTSecret), auth.NewDefaultPolicy("/healthz", "/metrics"), logger)

	mux := http.NewServeMux()
	mux.Handle("/api/v1/runs", runHandler)
	mux.Handle("/api/v1/runs/scheduled", runHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	scheduler := application.NewScheduler(rt.service, cfg.Schedule.DailyAt, cfg.Schedule.DayOfMonth, cfg.Location(), logger)
	go scheduler.Start(ctx)
	if cfg.Schedule.DailyAt != "" {
		logger.Printf("billing schedule: daily_at=%s day_of_month=%d policy=%s tz=%s",
			cfg.Schedule.DailyAt, cfg.Schedule.DayOfMonth, cfg.Schedule.WindowPolicy, cfg.Schedule.Timezone)
	}

	server := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           loggingMiddleware(authMiddleware.Wrap(mux), logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Printf("http listening on %s", cfg.HTTPAddr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	logger.Printf("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

func openAuditDB(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func loggingMiddleware(next http.Handler, logger *log.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		resp := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(resp, r)
		logger.Printf("http %s %s %d %s", r.Method, r.URL.Path, resp.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(status int) {
	w.status = status
	w.ResponseWriter.WriteHeader(status)
}
