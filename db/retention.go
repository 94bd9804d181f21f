package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"
)

// RetentionPolicy defines which chat messages are eligible for cleanup.
type RetentionPolicy struct {
	// KeepLastNDays: messages older than this many days are eligible for cleanup (0 = disabled)
	KeepLastNDays int
	// KeepLastNMessages: keep only the N most recent messages (0 = disabled)
	KeepLastNMessages int
	// DryRun: when true, log what would be deleted but don't touch the table
	DryRun bool
	// Interval: how often to run the cleanup job
	Interval time.Duration
}

// LoadRetentionPolicy loads retention policy configuration from environment variables.
func LoadRetentionPolicy() RetentionPolicy {
	policy := RetentionPolicy{
		Interval: 6 * time.Hour,
	}
	if s := os.Getenv("RETENTION_KEEP_DAYS"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			policy.KeepLastNDays = n
		}
	}
	if s := os.Getenv("RETENTION_KEEP_COUNT"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n >= 0 {
			policy.KeepLastNMessages = n
		}
	}
	if os.Getenv("RETENTION_DRY_RUN") == "1" {
		policy.DryRun = true
	}
	if s := os.Getenv("RETENTION_INTERVAL"); s != "" {
		if d, err := time.ParseDuration(s); err == nil && d > 0 {
			policy.Interval = d
		}
	}
	return policy
}

// StartRetentionJob runs a background job that periodically trims old chat
// messages according to the configured retention policy. Blocks until ctx
// is done; run it on its own goroutine.
func StartRetentionJob(ctx context.Context, dbc *sql.DB) {
	policy := LoadRetentionPolicy()

	if policy.KeepLastNDays == 0 && policy.KeepLastNMessages == 0 {
		slog.Info("retention job disabled (no policy configured)")
		return
	}

	slog.Info("retention job starting",
		slog.Int("keep_days", policy.KeepLastNDays),
		slog.Int("keep_count", policy.KeepLastNMessages),
		slog.Bool("dry_run", policy.DryRun),
		slog.Duration("interval", policy.Interval))

	// Run immediately on start
	if err := runRetentionCleanup(ctx, dbc, policy); err != nil {
		slog.Warn("retention cleanup failed", slog.Any("err", err))
	}

	ticker := time.NewTicker(policy.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("retention job stopped")
			return
		case <-ticker.C:
			if err := runRetentionCleanup(ctx, dbc, policy); err != nil {
				slog.Warn("retention cleanup failed", slog.Any("err", err))
			}
		}
	}
}

// runRetentionCleanup performs a single cleanup cycle. A message survives if
// ANY active policy wants to keep it, so deletion only happens below the
// strictest cutoff.
func runRetentionCleanup(ctx context.Context, dbc *sql.DB, policy RetentionPolicy) error {
	logger := slog.Default().With(
		slog.String("component", "retention_cleanup"),
		slog.Bool("dry_run", policy.DryRun),
	)

	// Resolve the highest id that must be deleted under each policy; 0 means
	// the policy keeps everything.
	var cutoffID int64

	if policy.KeepLastNDays > 0 {
		cutoff := time.Now().Add(-time.Duration(policy.KeepLastNDays) * 24 * time.Hour)
		var id sql.NullInt64
		err := dbc.QueryRowContext(ctx,
			`SELECT MAX(id) FROM chat_messages WHERE created_at < $1`, cutoff).Scan(&id)
		if err != nil {
			return fmt.Errorf("resolve date cutoff: %w", err)
		}
		if id.Valid {
			cutoffID = id.Int64
		}
	}

	if policy.KeepLastNMessages > 0 {
		var id sql.NullInt64
		err := dbc.QueryRowContext(ctx,
			`SELECT MIN(id) FROM (
				SELECT id FROM chat_messages ORDER BY id DESC LIMIT $1
			 ) keep`, policy.KeepLastNMessages).Scan(&id)
		if err != nil {
			return fmt.Errorf("resolve count cutoff: %w", err)
		}
		if id.Valid {
			countCutoff := id.Int64 - 1
			if policy.KeepLastNDays > 0 {
				// Both policies active: keep the union, delete below the min.
				if countCutoff < cutoffID {
					cutoffID = countCutoff
				}
			} else {
				cutoffID = countCutoff
			}
		} else if policy.KeepLastNDays == 0 {
			cutoffID = 0
		}
	}

	if cutoffID <= 0 {
		logger.Debug("nothing eligible for cleanup")
		return nil
	}

	if policy.DryRun {
		var n int64
		if err := dbc.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM chat_messages WHERE id <= $1`, cutoffID).Scan(&n); err != nil {
			return fmt.Errorf("count eligible rows: %w", err)
		}
		logger.Info("dry run: would delete messages", slog.Int64("count", n), slog.Int64("through_id", cutoffID))
		return nil
	}

	res, err := dbc.ExecContext(ctx, `DELETE FROM chat_messages WHERE id <= $1`, cutoffID)
	if err != nil {
		return fmt.Errorf("delete old messages: %w", err)
	}
	deleted, _ := res.RowsAffected()
	if deleted > 0 {
		logger.Info("retention cleanup complete", slog.Int64("deleted", deleted), slog.Int64("through_id", cutoffID))
	}

	_, _ = dbc.ExecContext(ctx, `INSERT INTO kv (key,value,updated_at) VALUES ('job_retention_last', to_char(NOW() AT TIME ZONE 'UTC','YYYY-MM-DD"T"HH24:MI:SS.MS"Z"'), NOW())
		ON CONFLICT(key) DO UPDATE SET value=EXCLUDED.value, updated_at=NOW()`)
	return nil
}
