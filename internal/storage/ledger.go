package storage

import (
	"context"
	"encoding/hex"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/aatumaykin/ledgercron/internal/apperr"
	"github.com/aatumaykin/ledgercron/internal/identity"
	"github.com/aatumaykin/ledgercron/internal/logger"
	"github.com/aatumaykin/ledgercron/internal/metrics"
	"github.com/aatumaykin/ledgercron/internal/outcome"
	"github.com/google/uuid"
)

const (
	// ResponsePrefix prefixes the keys of successful outcomes.
	ResponsePrefix = "/cron/response/"
	// ErrorPrefix prefixes the keys of failures.
	ErrorPrefix = "/cron/error/"

	// DefaultLockTimeout bounds how long a writer waits for the store.
	DefaultLockTimeout = 10 * time.Second

	recordResponse = "response"
	recordError    = "error"
	absent         = "-"
)

// Config configures the Ledger.
type Config struct {
	// KeepHistory appends a time ordered unique suffix to every key so no record is ever overwritten.
	KeepHistory bool
	// LockTimeout bounds lock acquisition; zero means DefaultLockTimeout.
	LockTimeout time.Duration
}

// Ledger is the persistent record of firing outcomes. All access to the engine is
// serialized through a single exclusive lock.
type Ledger struct {
	engine  Engine
	config  Config
	lock    chan struct{}
	closed  atomic.Bool
	logger  *logger.Logger
	metrics *metrics.Metrics
	newID   func() (uuid.UUID, error)
}

// Record is a stored outcome as returned by List.
type Record struct {
	Key     string
	Outcome outcome.Outcome
	// Err is set when the stored value could not be decoded.
	Err error
}

// NewLedger wraps engine. The ledger owns the engine and closes it on Close.
func NewLedger(engine Engine, cfg Config, log *logger.Logger, m *metrics.Metrics) *Ledger {
	if cfg.LockTimeout <= 0 {
		cfg.LockTimeout = DefaultLockTimeout
	}
	if log == nil {
		log = logger.Nop()
	}
	return &Ledger{
		engine:  engine,
		config:  cfg,
		lock:    make(chan struct{}, 1),
		logger:  log,
		metrics: m,
		newID:   uuid.NewV7,
	}
}

// ResponseKey derives the key of a response from its sender and recipient.
func ResponseKey(sender, recipient identity.Identity) string {
	return ResponsePrefix + keyPart(sender) + "/" + keyPart(recipient)
}

// ErrorKey derives the key of a failure from its sender.
func ErrorKey(sender identity.Identity) string {
	return ErrorPrefix + keyPart(sender)
}

func keyPart(id identity.Identity) string {
	if id.IsZero() {
		return absent
	}
	return id.String()
}

// PushResponse records a successful outcome under ResponseKey and returns the key used.
// A DeserializationError means the write is committed but its read-back failed.
func (l *Ledger) PushResponse(ctx context.Context, o outcome.Outcome) (string, error) {
	if o.Response == nil {
		return "", apperr.New(apperr.KindStorage, "push response: outcome is not a response", nil)
	}
	return l.push(ctx, recordResponse, ResponseKey(o.Response.Sender, o.Response.Recipient), o)
}

// PushError records a failure under ErrorKey(sender) and returns the key used.
func (l *Ledger) PushError(ctx context.Context, o outcome.Outcome, sender identity.Identity) (string, error) {
	if o.Failure == nil {
		return "", apperr.New(apperr.KindStorage, "push error: outcome is not a failure", nil)
	}
	return l.push(ctx, recordError, ErrorKey(sender), o)
}

func (l *Ledger) push(ctx context.Context, record, key string, o outcome.Outcome) (string, error) {
	value, err := outcome.Marshal(o)
	if err != nil {
		l.metrics.RecordStorageWrite(record, metrics.StatusError)
		return "", err
	}

	if l.config.KeepHistory {
		id, err := l.newID()
		if err != nil {
			l.metrics.RecordStorageWrite(record, metrics.StatusError)
			return "", apperr.New(apperr.KindStorage, "failed to generate record id", err)
		}
		key = key + "/" + id.String()
	}

	if err := l.acquire(ctx); err != nil {
		l.metrics.RecordStorageWrite(record, metrics.StatusError)
		return "", err
	}
	defer l.release()

	if l.closed.Load() {
		l.metrics.RecordStorageWrite(record, metrics.StatusError)
		return "", apperr.New(apperr.KindStorage, "store is closed", nil)
	}

	if err := l.engine.Apply(ctx, []Op{{Key: []byte(key), Value: value}}); err != nil {
		l.metrics.RecordStorageWrite(record, metrics.StatusError)
		return "", apperr.New(apperr.KindStorage, fmt.Sprintf("failed to write %s", key), err)
	}
	l.metrics.RecordStorageWrite(record, metrics.StatusOK)

	return key, l.verify(ctx, key)
}

// verify reads key back and logs the decoded record. Must be called with the lock held.
func (l *Ledger) verify(ctx context.Context, key string) error {
	stored, ok, err := l.engine.Get(ctx, []byte(key))
	if err != nil {
		return apperr.New(apperr.KindStorage, fmt.Sprintf("failed to read back %s", key), err)
	}
	if !ok {
		return apperr.New(apperr.KindStorage, fmt.Sprintf("record %s missing after write", key), nil)
	}

	o, err := outcome.Unmarshal(stored)
	if err != nil {
		l.logger.Error("Stored record could not be decoded", err,
			logger.Field{Key: "key", Value: key},
			logger.Field{Key: "value", Value: hex.EncodeToString(stored)})
		return err
	}

	fields := []logger.Field{{Key: "key", Value: key}}
	if o.Failure != nil {
		fields = append(fields,
			logger.Field{Key: "kind", Value: o.Failure.Kind},
			logger.Field{Key: "code", Value: o.Failure.Code},
			logger.Field{Key: "message", Value: o.Failure.Message})
	} else {
		fields = append(fields, logger.Field{Key: "payload", Value: hex.EncodeToString(o.Response.Payload)})
	}
	l.logger.Info("Stored record", fields...)
	return nil
}

// Get returns the outcome stored under key.
func (l *Ledger) Get(ctx context.Context, key string) (outcome.Outcome, bool, error) {
	if err := l.acquire(ctx); err != nil {
		return outcome.Outcome{}, false, err
	}
	defer l.release()

	if l.closed.Load() {
		return outcome.Outcome{}, false, apperr.New(apperr.KindStorage, "store is closed", nil)
	}

	stored, ok, err := l.engine.Get(ctx, []byte(key))
	if err != nil {
		return outcome.Outcome{}, false, apperr.New(apperr.KindStorage, fmt.Sprintf("failed to read %s", key), err)
	}
	if !ok {
		return outcome.Outcome{}, false, nil
	}

	o, err := outcome.Unmarshal(stored)
	if err != nil {
		return outcome.Outcome{}, true, err
	}
	return o, true, nil
}

// List returns every record whose key starts with prefix, in key order.
func (l *Ledger) List(ctx context.Context, prefix string) ([]Record, error) {
	if err := l.acquire(ctx); err != nil {
		return nil, err
	}
	defer l.release()

	if l.closed.Load() {
		return nil, apperr.New(apperr.KindStorage, "store is closed", nil)
	}

	var records []Record
	err := l.engine.Scan(ctx, []byte(prefix), func(key, value []byte) error {
		o, err := outcome.Unmarshal(value)
		records = append(records, Record{Key: string(key), Outcome: o, Err: err})
		return nil
	})
	if err != nil {
		return nil, apperr.New(apperr.KindStorage, fmt.Sprintf("failed to scan %q", prefix), err)
	}
	return records, nil
}

// Close waits for the current writer, if any, and closes the engine.
// Later operations fail with StorageError.
func (l *Ledger) Close() error {
	if l.closed.Load() {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.config.LockTimeout)
	defer cancel()
	if err := l.acquire(ctx); err != nil {
		l.logger.Warn("Closing store while a writer still holds the lock")
	} else {
		defer l.release()
	}

	if l.closed.Swap(true) {
		return nil
	}
	if err := l.engine.Close(); err != nil {
		return apperr.New(apperr.KindStorage, "failed to close store", err)
	}
	return nil
}

func (l *Ledger) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return apperr.New(apperr.KindStorageMutex, "failed to lock store", err)
	}
	ctx, cancel := context.WithTimeout(ctx, l.config.LockTimeout)
	defer cancel()

	select {
	case l.lock <- struct{}{}:
		return nil
	case <-ctx.Done():
		return apperr.New(apperr.KindStorageMutex, "failed to lock store", ctx.Err())
	}
}

func (l *Ledger) release() {
	<-l.lock
}

// SplitKey splits a key into its record type and identity parts.
func SplitKey(key string) (record string, parts []string) {
	switch {
	case strings.HasPrefix(key, ResponsePrefix):
		return recordResponse, strings.Split(strings.TrimPrefix(key, ResponsePrefix), "/")
	case strings.HasPrefix(key, ErrorPrefix):
		return recordError, strings.Split(strings.TrimPrefix(key, ErrorPrefix), "/")
	default:
		return "", nil
	}
}
