package builders

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/aatumaykin/ledgercron/internal/apperr"
	"github.com/aatumaykin/ledgercron/internal/config"
	"github.com/aatumaykin/ledgercron/internal/cron"
	"github.com/aatumaykin/ledgercron/internal/executor"
	"github.com/aatumaykin/ledgercron/internal/identity"
	"github.com/aatumaykin/ledgercron/internal/ledger"
	"github.com/aatumaykin/ledgercron/internal/logger"
	"github.com/aatumaykin/ledgercron/internal/outcome"
	"github.com/aatumaykin/ledgercron/internal/signer"
	"github.com/aatumaykin/ledgercron/internal/storage"
	"github.com/aatumaykin/ledgercron/internal/tasks"
	"github.com/aatumaykin/ledgercron/internal/workers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	agentID   = identity.FromPublicKey([]byte("agent"))
	recipient = identity.FromPublicKey([]byte("recipient"))
)

type stubClient struct{}

func (stubClient) Identity() identity.Identity { return agentID }

func (stubClient) Send(_ context.Context, args ledger.SendArgs) (*ledger.Response, error) {
	return &ledger.Response{From: agentID, To: args.To, Data: []byte{0x01}}, nil
}

func (stubClient) Info(context.Context) (*ledger.InfoReturns, error) {
	return &ledger.InfoReturns{LocalNames: map[identity.Identity]string{}}, nil
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.Tasks.Path = filepath.Join(t.TempDir(), "tasks.json")
	cfg.Storage.Path = filepath.Join(t.TempDir(), "ledger.db")
	return cfg
}

func spec(schedule string) *tasks.Spec {
	return &tasks.Spec{
		Schedule: schedule,
		Endpoint: tasks.EndpointLedgerSend,
		Params:   &tasks.TransferParams{To: recipient.String(), Amount: big.NewInt(10), Symbol: agentID.String()},
	}
}

func TestClientBuilder_Anonymous(t *testing.T) {
	client, err := NewClientBuilder(testConfig(t), logger.Nop()).Build()
	require.NoError(t, err)
	assert.True(t, client.Identity().IsAnonymous())
}

func TestClientBuilder_PEM(t *testing.T) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	data, err := signer.EncodePEM(key)
	require.NoError(t, err)

	cfg := testConfig(t)
	cfg.Identity.PEM = filepath.Join(t.TempDir(), "id.pem")
	require.NoError(t, os.WriteFile(cfg.Identity.PEM, data, 0600))
	cfg.Server.Identity = "00"

	client, err := NewClientBuilder(cfg, logger.Nop()).Build()
	require.NoError(t, err)
	assert.Equal(t, identity.FromPublicKey(key.Public().(ed25519.PublicKey)), client.Identity())
}

func TestClientBuilder_Errors(t *testing.T) {
	cfg := testConfig(t)
	cfg.Identity.PEM = filepath.Join(t.TempDir(), "missing.pem")
	_, err := NewClientBuilder(cfg, logger.Nop()).Build()
	assert.ErrorContains(t, err, "failed to load identity")

	cfg = testConfig(t)
	cfg.Server.Identity = "not-an-identity"
	_, err = NewClientBuilder(cfg, logger.Nop()).Build()
	assert.ErrorIs(t, err, apperr.ErrIdentityDecode)
}

func TestStorageBuilder_Clean(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	store, err := NewStorageBuilder(cfg, logger.Nop(), nil).Build(ctx)
	require.NoError(t, err)
	key, err := store.PushError(ctx, failure(), agentID)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	// Reopen keeps the record
	store, err = NewStorageBuilder(cfg, logger.Nop(), nil).Build(ctx)
	require.NoError(t, err)
	_, ok, err := store.Get(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, store.Close())

	// Clean wipes it
	cfg.Storage.Clean = true
	store, err = NewStorageBuilder(cfg, logger.Nop(), nil).Build(ctx)
	require.NoError(t, err)
	defer store.Close()
	_, ok, err = store.Get(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestCronBuilder_BuildScheduler(t *testing.T) {
	cfg := testConfig(t)
	b := NewCronBuilder(cfg, logger.Nop(), nil)
	pool := workers.NewPool(0, func(context.Context, workers.Task) (string, error) { return "", nil }, logger.Nop(), nil)

	scheduler, err := b.BuildScheduler(pool, []*tasks.Spec{spec("@daily"), spec("*/5 * * * * *")})
	require.NoError(t, err)
	assert.Len(t, scheduler.Entries(), 2)

	_, err = b.BuildScheduler(pool, []*tasks.Spec{spec("bogus")})
	assert.ErrorIs(t, err, apperr.ErrInvalidSchedule)

	cfg.Scheduler.Timezone = "Nowhere/Land"
	_, err = b.BuildScheduler(pool, nil)
	assert.ErrorContains(t, err, "invalid scheduler timezone")
}

func TestFiringHandler_RecordsOutcome(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	store, err := NewStorageBuilder(cfg, logger.Nop(), nil).Build(ctx)
	require.NoError(t, err)
	defer store.Close()

	handler := FiringHandler(executor.New(stubClient{}, store, logger.Nop(), nil))

	out, err := handler(ctx, workers.Task{ID: "f1", Payload: cron.Firing{ID: "f1", Spec: spec("@daily")}})
	require.NoError(t, err)
	assert.Equal(t, "response", out)

	o, ok, err := store.Get(ctx, storage.ResponseKey(agentID, recipient))
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "f1", o.FiringID)

	_, err = handler(ctx, workers.Task{ID: "bad", Payload: "nope"})
	assert.ErrorContains(t, err, "unexpected payload string")
}

func failure() outcome.Outcome {
	return outcome.FromError(apperr.New(apperr.KindRemoteCall, "connection refused", nil))
}
