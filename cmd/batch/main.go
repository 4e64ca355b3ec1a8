// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// FPS — Extraction Batch Runner
//
// One invocation processes one batch. It:
//  1. Loads configuration from the environment
//  2. Opens Firestore and Cloud Storage handles
//  3. Takes the Redis run lock (when configured) so cron overlaps no-op
//  4. Pre-flights the adapter's /health endpoint
//  5. Stages pending attachments into the bucket
//  6. Sends the batch to /extract, normalizes, and persists the results
//  7. Flips per-email statuses last, so an interrupted run is retried
//
// Exit code 0 means the queue was empty or at least one email landed.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/redis/go-redis/v9"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/rhea-ops/fps/internal/blob"
	"github.com/rhea-ops/fps/internal/config"
	"github.com/rhea-ops/fps/internal/extraction"
	"github.com/rhea-ops/fps/internal/models"
	"github.com/rhea-ops/fps/internal/normalize"
	"github.com/rhea-ops/fps/internal/persist"
	"github.com/rhea-ops/fps/internal/runlock"
	"github.com/rhea-ops/fps/internal/store"
)

func main() {
	os.Exit(run())
}

func run() int {
	// Structured JSON logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		return 1
	}

	// Reconfigure with the configured verbosity.
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	})))

	slog.Info("starting extraction batch run",
		"adapter", cfg.AdapterURL,
		"project", cfg.ProjectID,
		"bucket", cfg.Bucket,
		"max_batch", cfg.MaxBatchSize,
		"environment", cfg.Environment,
	)

	// A termination signal cancels in-flight work; emails not yet flipped
	// stay Scheduled and are picked up by the next invocation.
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	// --- Document store ---
	st, err := store.Open(ctx, cfg.ProjectID)
	if err != nil {
		slog.Error("failed to connect to Firestore", "error", err)
		return 1
	}
	defer st.Close()

	// --- Blob store ---
	gcs, err := storage.NewClient(ctx)
	if err != nil {
		slog.Error("failed to create storage client", "error", err)
		return 1
	}
	defer gcs.Close()

	uploader := blob.NewUploader(gcs, cfg.Bucket)
	if err := uploader.CheckBucket(ctx); err != nil {
		slog.Error("failed to connect to Cloud Storage", "error", err)
		return 1
	}

	// --- Run lock (optional) ---
	if cfg.RedisURL != "" {
		opt, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			slog.Error("invalid REDIS_URL", "error", err)
			return 1
		}
		rdb := redis.NewClient(opt)
		defer rdb.Close()

		lock := runlock.New(rdb, "extraction-batch", cfg.RunLockTTL)
		acquired, err := lock.Acquire(ctx)
		if err != nil {
			slog.Error("failed to acquire run lock", "error", err)
			return 1
		}
		if !acquired {
			slog.Info("another batch run holds the lock, nothing to do")
			return 0
		}
		defer func() {
			if err := lock.Release(context.Background()); err != nil {
				slog.Warn("failed to release run lock", "error", err)
			}
		}()
	}

	// --- Adapter client ---
	var httpClient *http.Client
	if cfg.AdapterAuthEnabled() {
		creds := &clientcredentials.Config{
			ClientID:     cfg.AdapterClientID,
			ClientSecret: cfg.AdapterClientSecret,
			TokenURL:     cfg.AdapterTokenURL,
		}
		httpClient = creds.Client(ctx)
	}
	client := extraction.NewClient(cfg.AdapterURL, cfg.AdapterTimeout, httpClient)

	health, err := client.Health(ctx)
	if err != nil {
		slog.Error("adapter health check failed, aborting before any uploads", "error", err)
		return 1
	}
	slog.Info("adapter healthy",
		"service", health.Service,
		"version", health.Version,
		"openai_configured", health.OpenAIConfigured,
	)

	// --- Fetch pending batch ---
	emails, err := st.PendingEmails(ctx, cfg.MaxBatchSize)
	if err != nil {
		slog.Error("failed to fetch pending emails", "error", err)
		return 1
	}
	if len(emails) == 0 {
		slog.Info("no emails scheduled for extraction")
		return 0
	}
	slog.Info("fetched pending emails", "count", len(emails))

	// --- Stage attachments ---
	stager := blob.NewStager(uploader, st)
	staged, stageFailed := stager.Stage(ctx, emails)
	if len(stageFailed) > 0 {
		slog.Warn("emails excluded after staging failures", "count", len(stageFailed))
	}
	if len(staged) == 0 {
		slog.Error("no emails left to process after staging")
		return 1
	}

	// --- Call adapter ---
	req := extraction.BuildRequest(staged, time.Now())
	slog.Info("calling adapter service", "emails", req.TotalEmails)

	writer := persist.NewWriter(st)

	resp, err := client.Extract(ctx, req)
	if err != nil {
		switch {
		case extraction.IsRemote(err):
			// The adapter processed the call and reported a structured
			// failure: the whole batch is terminally failed.
			slog.Error("adapter returned structured error", "error", err)
			writer.MarkAllFailed(ctx, emailIDs(staged))
		case extraction.IsDecode(err):
			slog.Error("adapter response did not parse, leaving batch for retry", "error", err)
		default:
			slog.Error("adapter unreachable, leaving batch for retry", "error", err)
		}
		return 1
	}

	// --- Normalize and persist ---
	batch := normalize.Normalize(resp.Results, time.Now())
	outcomes := writer.Commit(ctx, batch)

	var extracted, failed, retry int
	for _, oc := range outcomes {
		switch {
		case oc.Extracted:
			extracted++
		case oc.Failed:
			failed++
		default:
			retry++
		}
	}
	// Emails sent but absent from the response stay Scheduled.
	missing := len(staged) - len(outcomes)

	slog.Info("batch run complete",
		"total", len(emails),
		"extracted", extracted,
		"failed", failed,
		"left_for_retry", retry+missing,
		"calendar_events", len(batch.CalendarEvents),
	)

	if extracted == 0 {
		return 1
	}
	return 0
}

func emailIDs(emails []models.Email) []string {
	ids := make([]string, 0, len(emails))
	for i := range emails {
		ids = append(ids, emails[i].ID)
	}
	return ids
}
