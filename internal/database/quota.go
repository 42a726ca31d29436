package database

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"media-converter/internal/identity"
	"media-converter/internal/quota"
)

// QuotaStore persists quota records in the quota_usage table.
type QuotaStore struct {
	d *Database
}

var _ quota.Store = (*QuotaStore)(nil)

// QuotaStore returns a quota.Store backed by this database.
func (d *Database) QuotaStore() *QuotaStore {
	return &QuotaStore{d: d}
}

// Charge implements quota.Store. The read, ceiling check and write run in a
// single immediate transaction under the write lock.
func (s *QuotaStore) Charge(ctx context.Context, key string, tier identity.Tier, bytes, ceiling int64, now time.Time, window time.Duration) (quota.Record, bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("quota_charge", start, err) }()

	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rec quota.Record
	var admitted bool

	err = s.d.withTx(ctx, func(tx *sql.Tx) error {
		existing, found, err := scanQuota(tx.QueryRowContext(ctx,
			`SELECT key, tier, used, window_start FROM quota_usage WHERE key = ?`, key))
		if err != nil {
			return err
		}

		rec = existing
		if !found || rec.Expired(now, window) {
			rec = quota.Record{Key: key, Tier: tier, WindowStart: now}
		}

		if ceiling != quota.Unlimited && rec.Used+bytes > ceiling {
			return nil
		}

		rec.Used += bytes
		rec.Tier = tier
		admitted = true

		_, err = tx.ExecContext(ctx, `
			INSERT INTO quota_usage (key, tier, used, window_start) VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET
				tier = excluded.tier,
				used = excluded.used,
				window_start = excluded.window_start
		`, rec.Key, string(rec.Tier), rec.Used, rec.WindowStart.UnixMilli())
		return err
	})
	if err != nil {
		return quota.Record{}, false, err
	}
	return rec, admitted, nil
}

// Get implements quota.Store.
func (s *QuotaStore) Get(ctx context.Context, key string, now time.Time, window time.Duration) (quota.Record, bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("quota_get", start, err) }()

	s.d.mu.RLock()
	defer s.d.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var rec quota.Record
	var found bool
	rec, found, err = scanQuota(s.d.db.QueryRowContext(ctx,
		`SELECT key, tier, used, window_start FROM quota_usage WHERE key = ?`, key))
	if err != nil || !found || rec.Expired(now, window) {
		return quota.Record{}, false, err
	}
	return rec, true, nil
}

// Purge implements quota.Store.
func (s *QuotaStore) Purge(ctx context.Context, cutoff time.Time) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("quota_purge", start, err) }()

	s.d.mu.Lock()
	defer s.d.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var result sql.Result
	result, err = s.d.db.ExecContext(ctx, `DELETE FROM quota_usage WHERE window_start < ?`, cutoff.UnixMilli())
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanQuota(row *sql.Row) (quota.Record, bool, error) {
	var rec quota.Record
	var tier string
	var windowStart int64

	err := row.Scan(&rec.Key, &tier, &rec.Used, &windowStart)
	if errors.Is(err, sql.ErrNoRows) {
		return quota.Record{}, false, nil
	}
	if err != nil {
		return quota.Record{}, false, err
	}

	rec.Tier = identity.Tier(tier)
	rec.WindowStart = time.UnixMilli(windowStart)
	return rec, true, nil
}
