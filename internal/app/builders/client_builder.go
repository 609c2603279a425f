// Package builders assembles the agent's components from configuration.
package builders

import (
	"fmt"

	"github.com/aatumaykin/ledgercron/internal/config"
	"github.com/aatumaykin/ledgercron/internal/identity"
	"github.com/aatumaykin/ledgercron/internal/ledger"
	"github.com/aatumaykin/ledgercron/internal/logger"
	"github.com/aatumaykin/ledgercron/internal/signer"
)

type ClientBuilder struct {
	config *config.Config
	logger *logger.Logger
}

func NewClientBuilder(cfg *config.Config, log *logger.Logger) *ClientBuilder {
	return &ClientBuilder{
		config: cfg,
		logger: log,
	}
}

// Build loads the agent key and creates the ledger client signing with it.
func (b *ClientBuilder) Build() (ledger.Client, error) {
	s, err := signer.Load(b.config.Identity.PEM)
	if err != nil {
		return nil, fmt.Errorf("failed to load identity: %w", err)
	}

	var serverID identity.Identity
	if b.config.Server.Identity != "" {
		serverID, err = identity.Decode(b.config.Server.Identity)
		if err != nil {
			return nil, fmt.Errorf("invalid server identity: %w", err)
		}
	}

	client := ledger.NewHTTPClient(ledger.HTTPConfig{
		URL:               b.config.Server.URL,
		ServerID:          serverID,
		Timeout:           b.config.Server.Timeout(),
		RequestsPerSecond: b.config.Server.RequestsPerSecond,
	}, s, b.logger)

	agent := s.Identity()
	if agent.IsAnonymous() {
		b.logger.Warn("No identity configured, transfers will be rejected",
			logger.Field{Key: "identity", Value: agent.String()})
	}
	b.logger.Info("Ledger client configured",
		logger.Field{Key: "server", Value: b.config.Server.URL},
		logger.Field{Key: "identity", Value: agent.String()})

	return client, nil
}
