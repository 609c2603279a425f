// Package tasks loads the declarative task list.
package tasks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/aatumaykin/ledgercron/internal/apperr"
	"github.com/aatumaykin/ledgercron/internal/ledger"
	"gopkg.in/yaml.v3"
)

// Endpoint is the kind of call a task performs.
type Endpoint string

const (
	// EndpointLedgerSend is the only supported endpoint.
	EndpointLedgerSend Endpoint = ledger.EndpointSend
)

// TransferParams are the parameters of a ledger.send task. They are shared by every
// firing of the task and must not be mutated after loading.
type TransferParams struct {
	// To is the recipient in hex or textual encoding; decoded on each firing.
	To string
	// Amount is the number of tokens to transfer.
	Amount *big.Int
	// Symbol is either a symbol identity or a local alias.
	Symbol string
}

// Spec is one scheduled task.
type Spec struct {
	Index    int
	Schedule string
	Endpoint Endpoint
	Params   *TransferParams
}

// List is the root of the task list document.
type List struct {
	Tasks []rawSpec `json:"tasks" yaml:"tasks"`
}

type rawSpec struct {
	Schedule string    `json:"schedule" yaml:"schedule"`
	Endpoint string    `json:"endpoint" yaml:"endpoint"`
	Params   rawParams `json:"params" yaml:"params"`
}

type rawParams struct {
	To     string  `json:"to" yaml:"to"`
	Amount *uint64 `json:"amount" yaml:"amount"`
	Symbol string  `json:"symbol" yaml:"symbol"`
}

// Load reads and validates the task list at path. Files ending in .yaml or .yml are
// parsed as YAML, everything else as JSON.
func Load(path string) ([]*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, apperr.New(apperr.KindTaskList, fmt.Sprintf("failed to read task list %s", path), err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return ParseYAML(data)
	default:
		return ParseJSON(data)
	}
}

// ParseJSON parses a JSON task list.
func ParseJSON(data []byte) ([]*Spec, error) {
	var list List
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&list); err != nil {
		return nil, apperr.New(apperr.KindTaskList, "failed to parse task list", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, apperr.New(apperr.KindTaskList, "unexpected data after task list", err)
	}
	return list.specs()
}

// ParseYAML parses a YAML task list.
func ParseYAML(data []byte) ([]*Spec, error) {
	var list List
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&list); err != nil {
		return nil, apperr.New(apperr.KindTaskList, "failed to parse task list", err)
	}
	var extra any
	if err := dec.Decode(&extra); err != io.EOF {
		return nil, apperr.New(apperr.KindTaskList, "task list must be a single document", err)
	}
	return list.specs()
}

// specs validates every entry; the first invalid entry fails the whole list.
func (l List) specs() ([]*Spec, error) {
	specs := make([]*Spec, 0, len(l.Tasks))
	for i, raw := range l.Tasks {
		spec, err := raw.spec(i)
		if err != nil {
			return nil, apperr.New(apperr.KindTaskList, fmt.Sprintf("task %d", i), err)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func (r rawSpec) spec(index int) (*Spec, error) {
	if strings.TrimSpace(r.Schedule) == "" {
		return nil, fmt.Errorf("schedule is required")
	}

	switch Endpoint(r.Endpoint) {
	case EndpointLedgerSend:
	default:
		return nil, fmt.Errorf("unknown endpoint %q", r.Endpoint)
	}

	if strings.TrimSpace(r.Params.To) == "" {
		return nil, fmt.Errorf("params.to is required")
	}
	if strings.TrimSpace(r.Params.Symbol) == "" {
		return nil, fmt.Errorf("params.symbol is required")
	}
	if r.Params.Amount == nil {
		return nil, fmt.Errorf("params.amount is required")
	}

	return &Spec{
		Index:    index,
		Schedule: strings.TrimSpace(r.Schedule),
		Endpoint: EndpointLedgerSend,
		Params: &TransferParams{
			To:     strings.TrimSpace(r.Params.To),
			Amount: new(big.Int).SetUint64(*r.Params.Amount),
			Symbol: strings.TrimSpace(r.Params.Symbol),
		},
	}, nil
}
