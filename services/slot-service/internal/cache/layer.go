// Package cache is a best-effort, TTL-bounded read cache. It never returns
// errors: an unusable backend shows up as a BYPASS status.
package cache

import (
	"context"
	"encoding/binary"
	"errors"
	"log/slog"
	"time"
)

type Status string

const (
	StatusHit    Status = "HIT"
	StatusMiss   Status = "MISS"
	StatusBypass Status = "BYPASS"
	// StatusOK reports a completed Set or Delete.
	StatusOK Status = "OK"
)

const (
	ReasonDisabled     = "disabled"
	ReasonTimeout      = "timeout"
	ReasonBackendError = "backend_error"
	ReasonExpired      = "expired"
	ReasonCorrupt      = "corrupt_entry"
)

// AvailableSlotsKey holds the listing of AVAILABLE slots. Writers delete it
// and the listing query repopulates it, so both must use the same key.
const AvailableSlotsKey = "slots:available"

type Result struct {
	Value  []byte
	Status Status
	// Reason explains BYPASS, and MISS when an entry existed but was unusable.
	Reason string
}

// Backend is a networked key/value store with native expiry. Get reports
// ok=false for absent keys.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type Config struct {
	TTL     time.Duration
	Timeout time.Duration
	// Now is the clock used for entry expiry; defaults to time.Now.
	Now func() time.Time
}

type Layer struct {
	backend Backend
	logger  *slog.Logger
	ttl     time.Duration
	timeout time.Duration
	now     func() time.Time
}

// New builds a layer over backend. A nil backend is valid and makes every
// operation a BYPASS.
func New(backend Backend, logger *slog.Logger, cfg Config) *Layer {
	if cfg.TTL <= 0 {
		cfg.TTL = 30 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 250 * time.Millisecond
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Layer{
		backend: backend,
		logger:  logger,
		ttl:     cfg.TTL,
		timeout: cfg.Timeout,
		now:     cfg.Now,
	}
}

func (l *Layer) Enabled() bool {
	return l != nil && l.backend != nil
}

func (l *Layer) TTL() time.Duration {
	return l.ttl
}

func (l *Layer) Get(ctx context.Context, key string) Result {
	if !l.Enabled() {
		return Result{Status: StatusBypass, Reason: ReasonDisabled}
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	raw, ok, err := l.backend.Get(ctx, key)
	if err != nil {
		return l.bypass("get", key, err)
	}
	if !ok {
		return Result{Status: StatusMiss}
	}

	value, expiresAt, err := decodeEntry(raw)
	if err != nil {
		l.logger.Warn("cache entry unreadable", "key", key, "err", err)
		return Result{Status: StatusMiss, Reason: ReasonCorrupt}
	}
	if !l.now().Before(expiresAt) {
		return Result{Status: StatusMiss, Reason: ReasonExpired}
	}
	return Result{Value: value, Status: StatusHit}
}

// Set stores value for the configured TTL. The expiry is kept both in the
// backend and inside the entry, so a backend with coarse expiry still can't
// serve it late.
func (l *Layer) Set(ctx context.Context, key string, value []byte) Result {
	if !l.Enabled() {
		return Result{Status: StatusBypass, Reason: ReasonDisabled}
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	entry := encodeEntry(value, l.now().Add(l.ttl))
	if err := l.backend.Set(ctx, key, entry, l.ttl); err != nil {
		return l.bypass("set", key, err)
	}
	return Result{Status: StatusOK}
}

func (l *Layer) Delete(ctx context.Context, key string) Result {
	if !l.Enabled() {
		return Result{Status: StatusBypass, Reason: ReasonDisabled}
	}
	ctx, cancel := context.WithTimeout(ctx, l.timeout)
	defer cancel()

	if err := l.backend.Delete(ctx, key); err != nil {
		return l.bypass("delete", key, err)
	}
	return Result{Status: StatusOK}
}

func (l *Layer) bypass(op, key string, err error) Result {
	reason := ReasonBackendError
	if errors.Is(err, context.DeadlineExceeded) {
		reason = ReasonTimeout
	}
	l.logger.Warn("cache bypass", "op", op, "key", key, "reason", reason, "err", err)
	return Result{Status: StatusBypass, Reason: reason}
}

// Entries are an 8 byte big-endian unix-millisecond expiry followed by the value.
const entryHeaderLen = 8

var errShortEntry = errors.New("cache entry shorter than header")

func encodeEntry(value []byte, expiresAt time.Time) []byte {
	buf := make([]byte, entryHeaderLen+len(value))
	binary.BigEndian.PutUint64(buf, uint64(expiresAt.UnixMilli()))
	copy(buf[entryHeaderLen:], value)
	return buf
}

func decodeEntry(raw []byte) ([]byte, time.Time, error) {
	if len(raw) < entryHeaderLen {
		return nil, time.Time{}, errShortEntry
	}
	expiresAt := time.UnixMilli(int64(binary.BigEndian.Uint64(raw)))
	return raw[entryHeaderLen:], expiresAt, nil
}
