// multiaccount.go
package listtheory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials/stscreds"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/theory-cloud/listtheory/pkg/batch"
	"github.com/theory-cloud/listtheory/pkg/dynamostore"
	"github.com/theory-cloud/listtheory/pkg/session"
)

// AccountConfig holds configuration for a partner account whose collection
// table is reached through an assumed role.
type AccountConfig struct {
	RoleARN    string
	ExternalID string
	Region     string
	TableName  string
	// Optional: custom session duration (default is 1 hour)
	SessionDuration time.Duration
}

// MultiAccountEngine manages collection clients across multiple AWS
// accounts. Clients are built lazily per partner and cached; assumed-role
// credentials refresh themselves through the SDK's credentials cache.
type MultiAccountEngine struct {
	accounts   map[string]AccountConfig
	baseConfig aws.Config
	clients    map[string]*dynamostore.Client
	mu         sync.Mutex
}

// NewMultiAccount creates a multi-account engine factory.
func NewMultiAccount(accounts map[string]AccountConfig) (*MultiAccountEngine, error) {
	baseConfig, err := config.LoadDefaultConfig(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to load base AWS config: %w", err)
	}

	return &MultiAccountEngine{
		accounts:   accounts,
		baseConfig: baseConfig,
		clients:    make(map[string]*dynamostore.Client),
	}, nil
}

// ForPartner returns a fresh batch engine bound to the partner account's
// collection table.
func (m *MultiAccountEngine) ForPartner(partnerID string) (*BatchBuilder, error) {
	client, err := m.partnerClient(partnerID)
	if err != nil {
		return nil, err
	}
	return batch.NewEngine(client), nil
}

func (m *MultiAccountEngine) partnerClient(partnerID string) (*dynamostore.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if client, ok := m.clients[partnerID]; ok {
		return client, nil
	}

	account, ok := m.accounts[partnerID]
	if !ok {
		return nil, fmt.Errorf("unknown partner account: %s", partnerID)
	}
	if account.RoleARN == "" {
		return nil, fmt.Errorf("partner account %s has no role ARN", partnerID)
	}

	stsClient := sts.NewFromConfig(m.baseConfig)
	provider := stscreds.NewAssumeRoleProvider(stsClient, account.RoleARN, func(o *stscreds.AssumeRoleOptions) {
		if account.ExternalID != "" {
			o.ExternalID = aws.String(account.ExternalID)
		}
		if account.SessionDuration > 0 {
			o.Duration = account.SessionDuration
		}
	})

	cfg := session.DefaultConfig()
	cfg.CredentialsProvider = aws.NewCredentialsCache(provider)
	if account.Region != "" {
		cfg.Region = account.Region
	}
	if account.TableName != "" {
		cfg.TableName = account.TableName
	}

	client, err := dynamostore.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create client for partner %s: %w", partnerID, err)
	}

	m.clients[partnerID] = client
	return client, nil
}
