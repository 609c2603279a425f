package executor

import (
	"context"
	"errors"
	"math/big"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/aatumaykin/ledgercron/internal/apperr"
	"github.com/aatumaykin/ledgercron/internal/identity"
	"github.com/aatumaykin/ledgercron/internal/ledger"
	"github.com/aatumaykin/ledgercron/internal/logger"
	"github.com/aatumaykin/ledgercron/internal/outcome"
	"github.com/aatumaykin/ledgercron/internal/storage"
	"github.com/aatumaykin/ledgercron/internal/tasks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	agentID   = identity.FromPublicKey([]byte("agent"))
	recipient = identity.FromPublicKey([]byte("recipient"))
	fbt       = identity.FromPublicKey([]byte("fbt"))
	mfx       = identity.FromPublicKey([]byte("mfx"))
)

// fakeClient is a scripted ledger.Client.
type fakeClient struct {
	id         identity.Identity
	sendResp   *ledger.Response
	sendErr    error
	infoErr    error
	infoDelay  time.Duration
	localNames map[identity.Identity]string

	sends   atomic.Int32
	queries atomic.Int32

	mu       sync.Mutex
	lastSend ledger.SendArgs
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		id:         agentID,
		sendResp:   &ledger.Response{From: agentID, To: recipient, Data: []byte{0x01}},
		localNames: map[identity.Identity]string{fbt: "FBT", mfx: "MFX"},
	}
}

func (c *fakeClient) Identity() identity.Identity { return c.id }

func (c *fakeClient) Send(_ context.Context, args ledger.SendArgs) (*ledger.Response, error) {
	c.sends.Add(1)
	c.mu.Lock()
	c.lastSend = args
	c.mu.Unlock()
	if c.sendErr != nil {
		return nil, c.sendErr
	}
	return c.sendResp, nil
}

func (c *fakeClient) Info(context.Context) (*ledger.InfoReturns, error) {
	c.queries.Add(1)
	if c.infoDelay > 0 {
		time.Sleep(c.infoDelay)
	}
	if c.infoErr != nil {
		return nil, c.infoErr
	}
	return &ledger.InfoReturns{LocalNames: c.localNames}, nil
}

// fakeRecorder remembers pushed outcomes.
type fakeRecorder struct {
	mu        sync.Mutex
	responses []outcome.Outcome
	errors    []outcome.Outcome
	senders   []identity.Identity
	err       error
}

func (r *fakeRecorder) PushResponse(_ context.Context, o outcome.Outcome) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.responses = append(r.responses, o)
	return "response", r.err
}

func (r *fakeRecorder) PushError(_ context.Context, o outcome.Outcome, sender identity.Identity) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errors = append(r.errors, o)
	r.senders = append(r.senders, sender)
	return "error", r.err
}

func transferFiring(to, symbol string) Firing {
	return Firing{
		ID: "firing-1",
		Spec: &tasks.Spec{
			Index:    2,
			Schedule: "*/5 * * * * *",
			Endpoint: tasks.EndpointLedgerSend,
			Params: &tasks.TransferParams{
				To:     to,
				Amount: big.NewInt(10),
				Symbol: symbol,
			},
		},
	}
}

func TestExecute_Success(t *testing.T) {
	client := newFakeClient()
	store := &fakeRecorder{}
	exec := New(client, store, logger.Nop(), nil)

	o, err := exec.Execute(context.Background(), transferFiring(recipient.Hex(), "FBT"))
	require.NoError(t, err)

	require.NotNil(t, o.Response)
	assert.Equal(t, agentID, o.Response.Sender)
	assert.Equal(t, recipient, o.Response.Recipient)
	assert.Equal(t, "firing-1", o.FiringID)
	assert.Equal(t, 2, o.Task)
	assert.False(t, o.RecordedAt.IsZero())

	assert.Equal(t, recipient, client.lastSend.To)
	assert.Equal(t, fbt, client.lastSend.Symbol)
	assert.Equal(t, big.NewInt(10), client.lastSend.Amount)
	assert.Nil(t, client.lastSend.From)

	require.Len(t, store.responses, 1)
	assert.Empty(t, store.errors)
	assert.Equal(t, o, store.responses[0])
}

func TestExecute_AnonymousNeverCallsRemote(t *testing.T) {
	client := newFakeClient()
	client.id = identity.Anonymous()
	store := &fakeRecorder{}
	exec := New(client, store, logger.Nop(), nil)

	for i := 0; i < 3; i++ {
		o, err := exec.Execute(context.Background(), transferFiring(recipient.String(), "FBT"))
		require.NoError(t, err)
		require.True(t, o.IsFailure())
		assert.Equal(t, apperr.KindTransferRejected, o.Failure.Kind)
		assert.Equal(t, 5009, o.Failure.Code)
	}

	assert.Equal(t, int32(0), client.sends.Load())
	assert.Equal(t, int32(0), client.queries.Load())
	require.Len(t, store.errors, 3)
	assert.Equal(t, identity.Anonymous(), store.senders[0])
}

func TestExecute_IdentityDecodeFailureIsRecorded(t *testing.T) {
	client := newFakeClient()
	store := &fakeRecorder{}
	exec := New(client, store, logger.Nop(), nil)

	o, err := exec.Execute(context.Background(), transferFiring("not an identity", "FBT"))
	require.NoError(t, err)

	require.True(t, o.IsFailure())
	assert.Equal(t, apperr.KindIdentityDecode, o.Failure.Kind)
	require.Len(t, store.errors, 1)
	assert.Equal(t, agentID, store.senders[0])
	assert.Equal(t, int32(0), client.sends.Load())
}

func TestExecute_UnknownSymbol(t *testing.T) {
	client := newFakeClient()
	store := &fakeRecorder{}
	exec := New(client, store, logger.Nop(), nil)

	o, err := exec.Execute(context.Background(), transferFiring(recipient.String(), "XYZ"))
	require.NoError(t, err)

	require.True(t, o.IsFailure())
	assert.Equal(t, apperr.KindSymbolResolution, o.Failure.Kind)
	assert.Contains(t, o.Failure.Message, "could not resolve symbol 'XYZ'")
	assert.Equal(t, int32(0), client.sends.Load())
}

func TestExecute_RemoteError(t *testing.T) {
	client := newFakeClient()
	client.sendErr = &ledger.RPCError{Code: -3, Message: "insufficient funds"}
	store := &fakeRecorder{}
	exec := New(client, store, logger.Nop(), nil)

	o, err := exec.Execute(context.Background(), transferFiring(recipient.String(), fbt.String()))
	require.NoError(t, err)

	require.True(t, o.IsFailure())
	assert.Equal(t, apperr.KindRemoteCall, o.Failure.Kind)
	assert.Equal(t, 5003, o.Failure.Code)
	assert.Contains(t, o.Failure.Message, "insufficient funds")
	require.Len(t, store.errors, 1)
}

func TestExecute_AsyncToken(t *testing.T) {
	client := newFakeClient()
	client.sendResp = &ledger.Response{Attributes: ledger.Attributes{AsyncToken: []byte{0xca, 0xfe}}}
	store := &fakeRecorder{}
	exec := New(client, store, logger.Nop(), nil)

	o, err := exec.Execute(context.Background(), transferFiring(recipient.String(), "FBT"))
	require.NoError(t, err)

	require.NotNil(t, o.Response)
	assert.Empty(t, o.Response.Payload)
	assert.Equal(t, []byte{0xca, 0xfe}, o.Response.Attributes.AsyncToken)
	require.Len(t, store.responses, 1)
}

func TestExecute_AsyncResponsesKeyedByParties(t *testing.T) {
	client := newFakeClient()
	client.sendResp = &ledger.Response{Attributes: ledger.Attributes{AsyncToken: []byte{0x01}}}

	engine, err := storage.OpenSQLite(context.Background(), storage.SQLiteConfig{
		Path: filepath.Join(t.TempDir(), "ledger.db"),
	})
	require.NoError(t, err)
	store := storage.NewLedger(engine, storage.Config{}, logger.Nop(), nil)
	t.Cleanup(func() { _ = store.Close() })

	exec := New(client, store, logger.Nop(), nil)
	other := identity.FromPublicKey([]byte("other"))

	for _, to := range []identity.Identity{recipient, other} {
		o, err := exec.Execute(context.Background(), transferFiring(to.String(), "FBT"))
		require.NoError(t, err)
		require.NotNil(t, o.Response)
		assert.Equal(t, agentID, o.Response.Sender)
		assert.Equal(t, to, o.Response.Recipient)
	}

	records, err := store.List(context.Background(), storage.ResponsePrefix)
	require.NoError(t, err)
	require.Len(t, records, 2)

	keys := []string{records[0].Key, records[1].Key}
	assert.ElementsMatch(t, []string{
		storage.ResponseKey(agentID, recipient),
		storage.ResponseKey(agentID, other),
	}, keys)
}

func TestExecute_RecordFailureIsReturned(t *testing.T) {
	client := newFakeClient()
	store := &fakeRecorder{err: apperr.New(apperr.KindStorage, "disk full", nil)}
	exec := New(client, store, logger.Nop(), nil)

	o, err := exec.Execute(context.Background(), transferFiring(recipient.String(), "FBT"))
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrStorage)
	assert.NotNil(t, o.Response)
}

func TestSymbolCache_SingleRegistryQuery(t *testing.T) {
	client := newFakeClient()
	cache := NewSymbolCache(client, nil)
	ctx := context.Background()

	id, err := cache.Resolve(ctx, "FBT")
	require.NoError(t, err)
	assert.Equal(t, fbt, id)

	id, err = cache.Resolve(ctx, "MFX")
	require.NoError(t, err)
	assert.Equal(t, mfx, id)

	_, err = cache.Resolve(ctx, "NOPE")
	assert.ErrorIs(t, err, apperr.ErrSymbolResolution)

	assert.Equal(t, int32(1), client.queries.Load())
	assert.True(t, cache.Populated())
}

func TestSymbolCache_ConcurrentFirstUse(t *testing.T) {
	client := newFakeClient()
	client.infoDelay = 20 * time.Millisecond
	cache := NewSymbolCache(client, nil)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := cache.Resolve(context.Background(), "FBT")
			assert.NoError(t, err)
			assert.Equal(t, fbt, id)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), client.queries.Load())
}

func TestSymbolCache_CanonicalSymbolSkipsRegistry(t *testing.T) {
	client := newFakeClient()
	cache := NewSymbolCache(client, nil)

	id, err := cache.Resolve(context.Background(), mfx.String())
	require.NoError(t, err)
	assert.Equal(t, mfx, id)
	assert.Equal(t, int32(0), client.queries.Load())
	assert.False(t, cache.Populated())
}

func TestSymbolCache_FailedQueryIsRetried(t *testing.T) {
	client := newFakeClient()
	client.infoErr = errors.New("connection refused")
	cache := NewSymbolCache(client, nil)
	ctx := context.Background()

	_, err := cache.Resolve(ctx, "FBT")
	require.Error(t, err)
	assert.ErrorIs(t, err, apperr.ErrSymbolResolution)
	assert.False(t, cache.Populated())

	client.infoErr = nil
	id, err := cache.Resolve(ctx, "FBT")
	require.NoError(t, err)
	assert.Equal(t, fbt, id)
	assert.Equal(t, int32(2), client.queries.Load())
}

func TestSymbolCache_NormalizesAliases(t *testing.T) {
	client := newFakeClient()
	client.localNames = map[identity.Identity]string{fbt: "Cafe\u0301"}
	cache := NewSymbolCache(client, nil)

	id, err := cache.Resolve(context.Background(), "Caf\u00e9")
	require.NoError(t, err)
	assert.Equal(t, fbt, id)
}
