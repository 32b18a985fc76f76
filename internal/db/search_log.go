package db

import (
	"context"
	"fmt"
)

// RecordSearch inserts a search entry and fills in its ID and CreatedAt.
func (db *DB) RecordSearch(ctx context.Context, entry *SearchEntry) error {
	err := db.pool.QueryRow(ctx,
		`INSERT INTO search_log (source, query, payload, requested_count, result_count, outcome, error_message, duration_ms)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 RETURNING id, created_at`,
		entry.Source, entry.Query, nullJSON(entry.Payload), entry.RequestedCount, entry.ResultCount,
		entry.Outcome, entry.ErrorMessage, entry.DurationMs,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record search: %w", err)
	}
	return nil
}

// ListSearches returns the most recent entries, newest first, optionally
// filtered by source.
func (db *DB) ListSearches(ctx context.Context, source *string, limit int) ([]SearchEntry, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT id, source, query, payload, requested_count, result_count, outcome,
	                 error_message, duration_ms, created_at
	          FROM search_log`
	args := []any{}
	argPos := 1

	if source != nil {
		query += fmt.Sprintf(" WHERE source = $%d", argPos)
		args = append(args, *source)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", argPos)
	args = append(args, limit)

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list searches: %w", err)
	}
	defer rows.Close()

	entries := []SearchEntry{}
	for rows.Next() {
		var e SearchEntry
		var payload []byte
		if err := rows.Scan(&e.ID, &e.Source, &e.Query, &payload, &e.RequestedCount, &e.ResultCount,
			&e.Outcome, &e.ErrorMessage, &e.DurationMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan search entry: %w", err)
		}
		if len(payload) > 0 {
			e.Payload = payload
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list searches: %w", err)
	}

	return entries, nil
}

func nullJSON(b []byte) any {
	if len(b) == 0 {
		return nil
	}
	return string(b)
}
