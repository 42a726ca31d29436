package handlers

import (
	"net"
	"net/http"
	"time"

	"media-converter/internal/convert"
	"media-converter/internal/database"
	"media-converter/internal/identity"
	"media-converter/internal/quota"
	"media-converter/internal/streaming"
)

// Options configures the HTTP handlers.
type Options struct {
	// UploadDir receives incoming files. It must exist.
	UploadDir string
	// Limits bound how much of an upload is read per tier.
	Limits quota.Limits
	// Stream controls download delivery. Zero uses streaming.DefaultConfig.
	Stream streaming.Config
}

// Handlers serves the converter API.
type Handlers struct {
	orch      *convert.Orchestrator
	db        *database.Database
	ledger    *quota.Ledger
	uploadDir string
	limits    quota.Limits
	stream    streaming.Config
	started   time.Time
}

// New creates the API handlers.
func New(orch *convert.Orchestrator, db *database.Database, ledger *quota.Ledger, opts Options) *Handlers {
	if opts.Stream.ChunkSize == 0 && opts.Stream.WriteTimeout == 0 && opts.Stream.IdleTimeout == 0 {
		opts.Stream = streaming.DefaultConfig()
	}
	return &Handlers{
		orch:      orch,
		db:        db,
		ledger:    ledger,
		uploadDir: opts.UploadDir,
		limits:    opts.Limits,
		stream:    opts.Stream,
		started:   time.Now(),
	}
}

// caller returns the identity resolved by the identity middleware.
func caller(r *http.Request) identity.Identity {
	if id, ok := identity.FromContext(r.Context()); ok {
		return id
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return identity.Guest(host)
}
