// Package executor turns one firing of a task into exactly one recorded outcome.
package executor

import (
	"context"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/aatumaykin/ledgercron/internal/apperr"
	"github.com/aatumaykin/ledgercron/internal/identity"
	"github.com/aatumaykin/ledgercron/internal/ledger"
	"github.com/aatumaykin/ledgercron/internal/logger"
	"github.com/aatumaykin/ledgercron/internal/metrics"
	"github.com/aatumaykin/ledgercron/internal/outcome"
	"github.com/aatumaykin/ledgercron/internal/tasks"
)

// Recorder persists outcomes.
type Recorder interface {
	PushResponse(ctx context.Context, o outcome.Outcome) (string, error)
	PushError(ctx context.Context, o outcome.Outcome, sender identity.Identity) (string, error)
}

// Firing is one dispatched execution of a task.
type Firing struct {
	ID          string
	Spec        *tasks.Spec
	ScheduledAt time.Time
}

// Executor executes firings. It is safe for concurrent use; all firings share the
// same client, recorder and symbol cache.
type Executor struct {
	client  ledger.Client
	store   Recorder
	symbols *SymbolCache
	logger  *logger.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New creates an Executor with its own SymbolCache.
func New(client ledger.Client, store Recorder, log *logger.Logger, m *metrics.Metrics) *Executor {
	if log == nil {
		log = logger.Nop()
	}
	return &Executor{
		client:  client,
		store:   store,
		symbols: NewSymbolCache(client, m),
		logger:  log,
		metrics: m,
		now:     time.Now,
	}
}

// Execute runs one firing, records its outcome and returns it. The returned error is
// only about recording: the outcome itself is always produced.
func (e *Executor) Execute(ctx context.Context, f Firing) (outcome.Outcome, error) {
	start := e.now()
	log := e.logger.With(
		logger.Field{Key: "firing_id", Value: f.ID},
		logger.Field{Key: "task", Value: f.Spec.Index})

	var o outcome.Outcome
	switch f.Spec.Endpoint {
	case tasks.EndpointLedgerSend:
		o = e.send(ctx, log, f.Spec.Params)
	default:
		o = outcome.FromError(apperr.New(apperr.KindJobDispatch,
			fmt.Sprintf("unsupported endpoint %q", f.Spec.Endpoint), nil))
	}
	o.FiringID = f.ID
	o.Task = f.Spec.Index
	o.RecordedAt = e.now().UTC()

	result := metrics.ResultResponse
	var err error
	if o.IsFailure() {
		result = metrics.ResultFailure
		log.Error("Firing failed", apperr.New(o.Failure.Kind, o.Failure.Message, nil),
			logger.Field{Key: "code", Value: o.Failure.Code})
		_, err = e.store.PushError(ctx, o, e.client.Identity())
	} else {
		_, err = e.store.PushResponse(ctx, o)
	}
	if err != nil {
		log.Error("Failed to record outcome", err)
	}

	e.metrics.RecordFiring(string(f.Spec.Endpoint), result, e.now().Sub(start))
	return o, err
}

// send performs a ledger.send firing. Recipient decoding and the anonymous check come
// first so an anonymous agent never issues a remote call.
func (e *Executor) send(ctx context.Context, log *logger.Logger, params *tasks.TransferParams) outcome.Outcome {
	recipient, err := identity.Decode(params.To)
	if err != nil {
		return outcome.FromError(err)
	}

	if e.client.Identity().IsAnonymous() {
		return outcome.FromError(apperr.New(apperr.KindTransferRejected,
			"cannot transfer from the anonymous identity", nil))
	}

	symbol, err := e.symbols.Resolve(ctx, params.Symbol)
	if err != nil {
		return outcome.FromError(err)
	}

	log.Info(fmt.Sprintf("Transferring %s %s to %s", params.Amount, params.Symbol, recipient))

	resp, err := e.client.Send(ctx, ledger.SendArgs{
		To:     recipient,
		Amount: params.Amount,
		Symbol: symbol,
	})
	if err != nil {
		return outcome.FromError(apperr.Wrap(apperr.KindRemoteCall, err))
	}

	if resp.IsAsync() {
		log.Debug("Transfer accepted asynchronously",
			logger.Field{Key: "async_token", Value: hex.EncodeToString(resp.Attributes.AsyncToken)})
	} else {
		log.Trace("Transfer response",
			logger.Field{Key: "data", Value: hex.EncodeToString(resp.Data)})
	}
	o := outcome.FromResponse(resp)
	// Async acknowledgements do not echo the parties; key them by what was sent.
	if o.Response.Sender.IsZero() {
		o.Response.Sender = e.client.Identity()
	}
	if o.Response.Recipient.IsZero() {
		o.Response.Recipient = recipient
	}
	return o
}
