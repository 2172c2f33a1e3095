package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/takenaka/sekimori/internal/infrastructure/config"
	"github.com/takenaka/sekimori/internal/infrastructure/metrics"
	"github.com/takenaka/sekimori/internal/proxy"
	"github.com/takenaka/sekimori/internal/repositories/docstore"
	"github.com/takenaka/sekimori/internal/services"
)

const defaultEnv = "dev"

func main() {
	// Get environment from ENV variable or use default
	env := os.Getenv("ENV")
	if env == "" {
		env = defaultEnv
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	// Initialize configuration
	if err := config.InitConfig(env); err != nil {
		logger.Error("failed to initialize config", "error", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	upstream, err := url.Parse(cfg.Upstream.URL)
	if err != nil {
		logger.Error("invalid upstream URL", "url", cfg.Upstream.URL, "error", err)
		os.Exit(1)
	}

	// Initialize the policy repository against the protected store
	store, err := docstore.New(cfg.Upstream.URL, cfg.Security.PolicyIndex, cfg.Upstream.Timeout())
	if err != nil {
		logger.Error("failed to create document store client", "error", err)
		os.Exit(1)
	}

	policies := services.NewPolicyService(store)

	// Initialize metrics
	collector := metrics.NewCollector()
	exporter := metrics.NewPrometheusExporter(collector)

	// Initialize the reverse-DNS resolver for hostname rules
	var resolver proxy.HostResolver
	if cfg.Security.ResolveHosts {
		dns := proxy.NewDNSResolver(time.Duration(cfg.Security.DNSCacheTTL) * time.Second)
		collector.SetDNSCache(dns.Cache())
		resolver = dns
	} else {
		resolver = proxy.NewNoResolver()
	}

	var forward *proxy.ForwardConfig
	if cfg.Security.ForwardHeader != "" {
		forward = &proxy.ForwardConfig{
			Header:         cfg.Security.ForwardHeader,
			TrustedProxies: cfg.Security.TrustedProxies,
			Enforce:        cfg.Security.EnforceForward,
		}
	}

	var identity *proxy.IdentityConfig
	if cfg.Security.IdentitySecret != "" {
		identity = &proxy.IdentityConfig{
			Secret:    cfg.Security.IdentitySecret,
			UserClaim: cfg.Security.UserClaim,
		}
	}

	handler := proxy.NewHandler(&proxy.Config{
		Upstream:    upstream,
		PolicyIndex: cfg.Security.PolicyIndex,
		Strict:      cfg.Security.Strict,
		Forward:     forward,
		Identity:    identity,
		Policies:    policies,
		Resolver:    resolver,
		Logger:      logger,
		Collector:   collector,
		Exporter:    exporter,
	})

	server := &http.Server{
		Addr:    cfg.Server.ListenAddr(),
		Handler: metrics.Middleware(collector, exporter)(handler),
	}

	metricsMux := http.NewServeMux()
	metricsMux.Handle("/metrics", promhttp.Handler())
	metricsServer := &http.Server{
		Addr:    cfg.Server.MetricsAddr(),
		Handler: metricsMux,
	}

	// Refresh gauge metrics periodically
	updateDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				exporter.Update()
			case <-updateDone:
				return
			}
		}
	}()

	serverErrors := make(chan error, 2)
	go func() {
		logger.Info("proxy listening", "addr", cfg.Server.ListenAddr(), "upstream", cfg.Upstream.URL, "strict", cfg.Security.Strict)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("proxy server error: %w", err)
		}
	}()
	go func() {
		logger.Info("metrics listening", "addr", cfg.Server.MetricsAddr())
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrors <- fmt.Errorf("metrics server error: %w", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGINT)

	// Wait for shutdown signal or server error
	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-sigChan:
		logger.Info("received signal, shutting down", "signal", sig.String())

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		close(updateDone)

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn("proxy shutdown forced", "error", err)
		}
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics shutdown forced", "error", err)
		}

		logger.Info("shutdown complete")
	}
}
