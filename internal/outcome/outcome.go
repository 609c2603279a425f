// Package outcome defines the recorded result of one firing.
package outcome

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aatumaykin/ledgercron/internal/apperr"
	"github.com/aatumaykin/ledgercron/internal/identity"
	"github.com/aatumaykin/ledgercron/internal/ledger"
)

// Outcome is either a Response or a Failure, never both. It is created once per
// firing and never mutated after being recorded.
type Outcome struct {
	Response *Response `json:"response,omitempty"`
	Failure  *Failure  `json:"failure,omitempty"`

	FiringID   string    `json:"firing_id,omitempty"`
	Task       int       `json:"task"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Response is a successful ledger answer. Zero identities mean "absent".
type Response struct {
	Sender     identity.Identity `json:"sender"`
	Recipient  identity.Identity `json:"recipient"`
	Payload    []byte            `json:"payload,omitempty"`
	Attributes ledger.Attributes `json:"attributes"`
}

// Failure is a classified firing failure.
type Failure struct {
	Code    int         `json:"code"`
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

// FromResponse builds a response outcome.
func FromResponse(resp *ledger.Response) Outcome {
	return Outcome{
		Response: &Response{
			Sender:     resp.From,
			Recipient:  resp.To,
			Payload:    resp.Data,
			Attributes: resp.Attributes,
		},
	}
}

// FromError builds a failure outcome. Unclassified errors are recorded as remote call failures.
func FromError(err error) Outcome {
	kind := apperr.KindOf(err)
	if kind == apperr.KindUnknown {
		kind = apperr.KindRemoteCall
	}
	return Outcome{
		Failure: &Failure{
			Code:    kind.Code(),
			Kind:    kind,
			Message: err.Error(),
		},
	}
}

// IsFailure reports whether o is a failure.
func (o Outcome) IsFailure() bool {
	return o.Failure != nil
}

// Marshal serializes o.
func Marshal(o Outcome) ([]byte, error) {
	if err := o.validate(); err != nil {
		return nil, apperr.New(apperr.KindStorage, "invalid outcome", err)
	}
	data, err := json.Marshal(o)
	if err != nil {
		return nil, apperr.New(apperr.KindStorage, "failed to serialize outcome", err)
	}
	return data, nil
}

// Unmarshal parses a serialized outcome.
func Unmarshal(data []byte) (Outcome, error) {
	var o Outcome
	if err := json.Unmarshal(data, &o); err != nil {
		return Outcome{}, apperr.New(apperr.KindDeserialization, "failed to decode outcome", err)
	}
	if err := o.validate(); err != nil {
		return Outcome{}, apperr.New(apperr.KindDeserialization, "invalid outcome", err)
	}
	return o, nil
}

func (o Outcome) validate() error {
	switch {
	case o.Response == nil && o.Failure == nil:
		return fmt.Errorf("outcome has neither response nor failure")
	case o.Response != nil && o.Failure != nil:
		return fmt.Errorf("outcome has both response and failure")
	}
	return nil
}
