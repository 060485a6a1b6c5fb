// Package main is the entry point for the delegation oracle REST API,
// exposing eligibility scans, criteria drift, vulnerability analysis,
// and optimization over HTTP.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/yourorg/delegation-oracle/internal/alert"
	"github.com/yourorg/delegation-oracle/internal/config"
	"github.com/yourorg/delegation-oracle/internal/history"
	"github.com/yourorg/delegation-oracle/internal/otel"
	"github.com/yourorg/delegation-oracle/internal/programs"
	"github.com/yourorg/delegation-oracle/internal/scan"
	"github.com/yourorg/delegation-oracle/internal/security"
)

const version = "0.2.0"

// startTime records when the service was initialized for uptime reporting
var startTime = time.Now()

// Server holds the API's long-lived dependencies
type Server struct {
	cfg     config.Config
	service *scan.Service
	store   *history.Store
	signer  *security.ReportSigner
	limiter *rate.Limiter
	metrics *serverMetrics
	server  *http.Server
}

// serverMetrics holds Prometheus metrics for the server
type serverMetrics struct {
	requestCounter   *prometheus.CounterVec
	requestDuration  *prometheus.HistogramVec
	eligiblePrograms prometheus.Gauge
	scanErrors       prometheus.Counter
}

// registerMetrics sets up Prometheus metrics collection
func registerMetrics() *serverMetrics {
	m := &serverMetrics{
		requestCounter: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "oracle_requests_total",
				Help: "Total number of API requests processed",
			},
			[]string{"endpoint", "status"},
		),
		requestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "oracle_request_duration_seconds",
				Help:    "API request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"endpoint"},
		),
		eligiblePrograms: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "oracle_eligible_programs",
				Help: "Number of programs the tracked validator qualifies for in the last scan",
			},
		),
		scanErrors: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "oracle_scan_errors_total",
				Help: "Total number of failed scan operations",
			},
		),
	}

	prometheus.MustRegister(
		m.requestCounter,
		m.requestDuration,
		m.eligiblePrograms,
		m.scanErrors,
	)

	return m
}

func main() {
	setupLogging()

	cfg, err := config.Load(config.GetEnvOrDefault("CONFIG_PATH", ""))
	if err != nil {
		logrus.Fatalf("Error loading configuration: %v", err)
	}

	shutdownTracing := otel.InitTracer(cfg.Server.OtelEndpoint)
	defer shutdownTracing()

	store, err := history.Open(cfg.ResolvedDBPath())
	if err != nil {
		logrus.Fatalf("Error opening history store: %v", err)
	}
	defer store.Close()

	server, err := NewServer(cfg, store)
	if err != nil {
		logrus.Fatalf("Error initializing server: %v", err)
	}
	server.Start()
}

// setupLogging configures the logging for the application
func setupLogging() {
	logFormat := strings.ToLower(os.Getenv("LOG_FORMAT"))
	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))

	switch logFormat {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	default:
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	switch logLevel {
	case "debug":
		logrus.SetLevel(logrus.DebugLevel)
	case "info":
		logrus.SetLevel(logrus.InfoLevel)
	case "warn", "warning":
		logrus.SetLevel(logrus.WarnLevel)
	case "error":
		logrus.SetLevel(logrus.ErrorLevel)
	default:
		logrus.SetLevel(logrus.InfoLevel)
	}
}

// NewServer creates a server instance wired to the scan service
func NewServer(cfg config.Config, store *history.Store) (*Server, error) {
	registry := programs.NewRegistry()
	service := scan.NewService(cfg, registry, store)

	var sinks []alert.Sink
	if cfg.Alerts.EnableStdout {
		sinks = append(sinks, &alert.StdoutSink{})
	}
	if cfg.Alerts.WebhookURL != "" {
		sinks = append(sinks, alert.NewWebhookSink(cfg.Alerts.WebhookURL))
	}
	service.WithSinks(sinks...)

	var signer *security.ReportSigner
	if cfg.Server.SignReports {
		var err error
		signer, err = security.NewReportSigner(security.SigningOptions{
			Enabled:  true,
			Validity: cfg.Server.SignatureValidity,
		})
		if err != nil {
			return nil, err
		}
	}

	server := &Server{
		cfg:     cfg,
		service: service,
		store:   store,
		signer:  signer,
		limiter: rate.NewLimiter(rate.Limit(cfg.Server.RateLimitPerSec), cfg.Server.RateLimitBurst),
		metrics: registerMetrics(),
	}

	logrus.WithFields(logrus.Fields{
		"port":          cfg.Server.Port,
		"programs":      cfg.Programs.Enabled,
		"rate_limit":    cfg.Server.RateLimitPerSec,
		"sign_reports":  cfg.Server.SignReports,
		"alert_sinks":   len(sinks),
	}).Info("Server initialized")

	return server, nil
}

// Start begins the HTTP server and sets up graceful shutdown
func (s *Server) Start() {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/programs", s.instrument("programs", s.handlePrograms))
	mux.HandleFunc("/api/scan", s.instrument("scan", s.handleScan))
	mux.HandleFunc("/api/gaps", s.instrument("gaps", s.handleGaps))
	mux.HandleFunc("/api/arbitrage", s.instrument("arbitrage", s.handleArbitrage))
	mux.HandleFunc("/api/whatif", s.instrument("whatif", s.handleWhatIf))
	mux.HandleFunc("/api/vulnerabilities", s.instrument("vulnerabilities", s.handleVulnerabilities))
	mux.HandleFunc("/api/drift", s.instrument("drift", s.handleDrift))
	mux.HandleFunc("/api/history", s.instrument("history", s.handleHistory))
	mux.HandleFunc("/api/recommendations", s.instrument("recommendations", s.handleRecommendations))
	mux.HandleFunc("/api/conflicts", s.instrument("conflicts", s.handleConflicts))
	mux.HandleFunc("/api/threats", s.instrument("threats", s.handleThreats))
	mux.HandleFunc("/api/opportunities", s.instrument("opportunities", s.handleOpportunities))
	mux.HandleFunc("/api/queue", s.instrument("queue", s.handleQueue))
	mux.HandleFunc("/api/cohorts", s.instrument("cohorts", s.handleCohorts))
	mux.HandleFunc("/metrics", promhttp.Handler().ServeHTTP)
	mux.HandleFunc("/status", s.handleStatus)

	s.server = &http.Server{
		Addr:         ":" + s.cfg.Server.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logrus.Infof("Server starting on port %s", s.cfg.Server.Port)
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Error starting server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logrus.Info("Server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.server.Shutdown(ctx); err != nil {
		logrus.Fatalf("Server shutdown failed: %v", err)
	}

	logrus.Info("Server stopped")
}
