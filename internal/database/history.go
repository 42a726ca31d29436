package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// AppendHistory stores a completed conversion and returns its id.
func (d *Database) AppendHistory(ctx context.Context, rec HistoryRecord) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("history_append", start, err) }()

	if rec.UserID == "" {
		err = errors.New("history record requires a user id")
		return 0, err
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var result sql.Result
	result, err = d.db.ExecContext(ctx, `
		INSERT INTO conversions (user_id, file_name, source_format, target_format, size, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.UserID, rec.FileName, rec.SourceFormat, rec.TargetFormat, rec.Size, rec.CreatedAt.UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("insert conversion: %w", err)
	}
	return result.LastInsertId()
}

// ListHistory returns conversions newest first.
func (d *Database) ListHistory(ctx context.Context, q HistoryQuery) ([]HistoryRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("history_list", start, err) }()

	limit := q.Limit
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `
	SELECT id, user_id, file_name, source_format, target_format, size, created_at
	FROM conversions`
	args := []any{}
	if q.UserID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, q.UserID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	var rows *sql.Rows
	rows, err = d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]HistoryRecord, 0)
	for rows.Next() {
		var rec HistoryRecord
		var createdAt int64
		if err = rows.Scan(&rec.ID, &rec.UserID, &rec.FileName, &rec.SourceFormat,
			&rec.TargetFormat, &rec.Size, &createdAt); err != nil {
			return nil, err
		}
		rec.CreatedAt = time.UnixMilli(createdAt)
		records = append(records, rec)
	}
	err = rows.Err()
	return records, err
}

// CountHistory returns the number of conversions recorded for userID, or
// for every user when userID is empty.
func (d *Database) CountHistory(ctx context.Context, userID string) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("history_count", start, err) }()

	d.mu.RLock()
	defer d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := `SELECT COUNT(*) FROM conversions`
	args := []any{}
	if userID != "" {
		query += ` WHERE user_id = ?`
		args = append(args, userID)
	}

	var count int64
	err = d.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count, err
}
