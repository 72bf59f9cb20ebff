package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"narrative-safety/internal/archive"
	"narrative-safety/internal/config"
	"narrative-safety/internal/database"
	"narrative-safety/internal/llm"
	"narrative-safety/internal/metrics"
	"narrative-safety/internal/repository"
	"narrative-safety/internal/service"
	"narrative-safety/internal/vault"
)

func getContext(timeout time.Duration) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), timeout)
}

// stores groups the persistence backends selected by configuration
type stores struct {
	reviews  service.ReviewStore
	receipts service.ReceiptLog
	audit    auditStore
}

func newStores(cfg *config.Config, db *database.Database) stores {
	var s stores

	if cfg.Review.Store == "postgres" {
		s.reviews = repository.NewReviewRepository(db.DB)
	} else {
		s.reviews = repository.NewMemoryReviewRepository()
	}

	if cfg.Receipts.Backend == "postgres" {
		s.receipts = repository.NewReceiptRepository(db.DB)
	} else {
		s.receipts = service.NewMemoryReceiptLog()
	}

	// Audit entries go to Postgres whenever a connection exists
	auditBackend := "memory"
	if db != nil {
		s.audit = repository.NewAuditRepository(db.DB)
		auditBackend = "postgres"
	} else {
		s.audit = repository.NewMemoryAuditRepository()
	}

	slog.Info("Storage configured",
		"review_store", cfg.Review.Store,
		"receipts_backend", cfg.Receipts.Backend,
		"audit_store", auditBackend)
	return s
}

func newHarmJudge(cfg *config.JudgeConfig, m *metrics.Pipeline) (*service.HarmJudge, error) {
	client, err := llm.NewClient(llm.Config{
		Provider: cfg.Provider,
		APIKey:   cfg.APIKey,
		Model:    cfg.Model,
		BaseURL:  cfg.BaseURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create judge client: %w", err)
	}

	if client == nil {
		slog.Warn("Harm judge disabled, every report will be held for human review")
	} else {
		slog.Info("Harm judge configured", "provider", cfg.Provider, "model", client.Model())
	}

	return service.NewHarmJudge(client, service.HarmJudgeConfig{
		Timeout:      cfg.Timeout,
		ExcerptChars: cfg.ExcerptChars,
		Metrics:      m,
	}), nil
}

func newReceiptSigner(ctx context.Context, cfg *config.VaultConfig) (*vault.ReceiptSigner, error) {
	client, err := vault.NewClient(&vault.Config{
		Address:      cfg.Address,
		Token:        cfg.Token,
		TransitMount: cfg.TransitMount,
	})
	if err != nil {
		return nil, err
	}
	return vault.NewReceiptSigner(ctx, client, cfg.SigningKey)
}

// newArchiveSinks returns the export destinations and a cleanup func for the ones holding connections
func newArchiveSinks(ctx context.Context, cfg *config.ReceiptsConfig) ([]archive.Sink, func(), error) {
	var sinks []archive.Sink
	cleanup := func() {}

	if cfg.ExportDir != "" {
		fileSink, err := archive.NewFileSink(cfg.ExportDir)
		if err != nil {
			return nil, cleanup, err
		}
		sinks = append(sinks, fileSink)
	}

	if cfg.GCSBucket != "" {
		gcsSink, err := archive.NewGCSSink(ctx, cfg.GCSBucket, cfg.GCSPrefix, cfg.GCSCredentials)
		if err != nil {
			return nil, cleanup, err
		}
		sinks = append(sinks, gcsSink)
		cleanup = func() {
			if err := gcsSink.Close(); err != nil {
				slog.Warn("Failed to close GCS client", "error", err)
			}
		}
	}

	return sinks, cleanup, nil
}
