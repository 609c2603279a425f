// Package ledger defines the contract of the remote ledger service and an HTTP/JSON client for it.
package ledger

import (
	"context"
	"fmt"
	"math/big"

	"github.com/aatumaykin/ledgercron/internal/identity"
)

const (
	// EndpointSend transfers tokens from the caller's account.
	EndpointSend = "ledger.send"
	// EndpointInfo returns the ledger's symbol registry.
	EndpointInfo = "ledger.info"
)

// Client is the remote ledger service as seen by the agent. Calls block until the
// server answers; callers must not invoke them from the scheduling loop.
type Client interface {
	// Identity returns the identity the client signs with.
	Identity() identity.Identity
	// Send issues a transfer.
	Send(ctx context.Context, args SendArgs) (*Response, error)
	// Info queries the symbol registry.
	Info(ctx context.Context) (*InfoReturns, error)
}

// SendArgs are the arguments of EndpointSend. From is always absent: the sender is
// the signing identity.
type SendArgs struct {
	From   *identity.Identity
	To     identity.Identity
	Amount *big.Int
	Symbol identity.Identity
}

// Attributes carries optional response attributes.
type Attributes struct {
	// AsyncToken is set when the server accepted the call but has not produced a result yet.
	AsyncToken []byte `json:"async_token,omitempty"`
}

// Response is a successful answer of the ledger. Zero identities mean "absent".
type Response struct {
	From       identity.Identity `json:"from"`
	To         identity.Identity `json:"to"`
	Data       []byte            `json:"data,omitempty"`
	Attributes Attributes        `json:"attributes"`
}

// IsAsync reports whether the response is an asynchronous completion token.
func (r *Response) IsAsync() bool {
	return len(r.Data) == 0 && len(r.Attributes.AsyncToken) > 0
}

// InfoReturns is the answer of EndpointInfo.
type InfoReturns struct {
	// LocalNames maps symbol identities to their local aliases.
	LocalNames map[identity.Identity]string `json:"local_names"`
}

// RPCError is an error reported by the ledger service itself.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("ledger error %d: %s", e.Code, e.Message)
}
