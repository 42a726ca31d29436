package quota

import (
	"context"
	"fmt"
	"time"

	"media-converter/internal/identity"
	"media-converter/internal/logging"
	"media-converter/internal/metrics"

	"github.com/dustin/go-humanize"
)

// Unlimited marks a tier without a byte ceiling.
const Unlimited int64 = -1

// DefaultWindow is the rolling admission window.
const DefaultWindow = 24 * time.Hour

// Limits holds the per-tier byte ceilings. Admin is always unlimited.
type Limits struct {
	Guest int64
	User  int64
}

// DefaultLimits returns guest 100 MB and user 800 MB.
func DefaultLimits() Limits {
	return Limits{
		Guest: 100 * 1024 * 1024,
		User:  800 * 1024 * 1024,
	}
}

// Ceiling returns the byte ceiling for tier, or Unlimited.
func (l Limits) Ceiling(tier identity.Tier) int64 {
	switch tier {
	case identity.TierAdmin:
		return Unlimited
	case identity.TierUser:
		return l.User
	default:
		return l.Guest
	}
}

// Record is the usage of one identity key in its current window.
type Record struct {
	Key         string        `json:"-"`
	Tier        identity.Tier `json:"tier"`
	Used        int64         `json:"used"`
	WindowStart time.Time     `json:"windowStart"`
}

// Expired reports whether the record's window has elapsed at now.
func (r Record) Expired(now time.Time, window time.Duration) bool {
	return !now.Before(r.WindowStart.Add(window))
}

// Store persists quota records.
type Store interface {
	// Charge loads the record for key, treating absent or expired records as
	// a fresh zero-usage record for tier starting at now. If ceiling is not
	// Unlimited and used+bytes exceeds it, the record is returned unchanged
	// with admitted=false. Otherwise usage is incremented and persisted.
	// The whole step is atomic per key.
	Charge(ctx context.Context, key string, tier identity.Tier, bytes, ceiling int64, now time.Time, window time.Duration) (rec Record, admitted bool, err error)

	// Get returns the live record for key, or false if absent or expired.
	Get(ctx context.Context, key string, now time.Time, window time.Duration) (Record, bool, error)

	// Purge deletes records whose window started before cutoff.
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// Decision is the outcome of an admission.
type Decision struct {
	Admitted bool
	// Limit is the tier ceiling, or Unlimited.
	Limit  int64
	Record Record
}

// Ledger grants or denies admission against cumulative usage.
type Ledger struct {
	store  Store
	limits Limits
	window time.Duration
	now    func() time.Time
}

// NewLedger creates a Ledger. A non-positive window falls back to DefaultWindow.
func NewLedger(store Store, limits Limits, window time.Duration) *Ledger {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Ledger{
		store:  store,
		limits: limits,
		window: window,
		now:    time.Now,
	}
}

// Window returns the rolling admission window.
func (l *Ledger) Window() time.Duration {
	return l.window
}

// Ceiling returns the byte ceiling for tier.
func (l *Ledger) Ceiling(tier identity.Tier) int64 {
	return l.limits.Ceiling(tier)
}

// Admit charges proposed bytes to key if they fit under the tier ceiling.
func (l *Ledger) Admit(ctx context.Context, key string, tier identity.Tier, proposed int64) (Decision, error) {
	if proposed < 0 {
		return Decision{}, fmt.Errorf("negative admission size %d", proposed)
	}

	ceiling := l.limits.Ceiling(tier)
	rec, admitted, err := l.store.Charge(ctx, key, tier, proposed, ceiling, l.now(), l.window)
	if err != nil {
		metrics.QuotaAdmissionsTotal.WithLabelValues(string(tier), "error").Inc()
		return Decision{}, fmt.Errorf("quota charge for %s: %w", key, err)
	}

	if !admitted {
		metrics.QuotaAdmissionsTotal.WithLabelValues(string(tier), "denied").Inc()
		logging.Info("Quota denied for %s (%s): used %s + %s exceeds %s",
			key, tier, humanize.IBytes(uint64(rec.Used)), humanize.IBytes(uint64(proposed)), humanize.IBytes(uint64(ceiling)))
		return Decision{Admitted: false, Limit: ceiling, Record: rec}, nil
	}

	metrics.QuotaAdmissionsTotal.WithLabelValues(string(tier), "admitted").Inc()
	logging.Debug("Quota admitted for %s (%s): now %s used", key, tier, humanize.IBytes(uint64(rec.Used)))
	return Decision{Admitted: true, Limit: ceiling, Record: rec}, nil
}

// Usage returns the current record for key, or a zero record for tier.
func (l *Ledger) Usage(ctx context.Context, key string, tier identity.Tier) (Record, error) {
	now := l.now()
	rec, ok, err := l.store.Get(ctx, key, now, l.window)
	if err != nil {
		return Record{}, err
	}
	if !ok {
		return Record{Key: key, Tier: tier, WindowStart: now}, nil
	}
	return rec, nil
}

// PurgeExpired removes records whose window has elapsed.
func (l *Ledger) PurgeExpired(ctx context.Context) (int64, error) {
	return l.store.Purge(ctx, l.now().Add(-l.window))
}
