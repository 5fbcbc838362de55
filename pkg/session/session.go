// Package session provides AWS session management and DynamoDB client
// configuration for the DynamoDB-backed collection store.
package session

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/aws/retry"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// configLoadFunc is a variable to allow mocking config.LoadDefaultConfig in tests
var configLoadFunc = config.LoadDefaultConfig

// Config holds the configuration for ListTheory
type Config struct {
	CredentialsProvider aws.CredentialsProvider `json:"-" yaml:"-"`
	Region              string                  `yaml:"region"`
	Endpoint            string                  `yaml:"endpoint"`

	// TableName is the DynamoDB table backing all collections. Collections
	// share one table keyed by collection name and item ID.
	TableName string `yaml:"table_name"`

	AWSConfigOptions []func(*config.LoadOptions) error `json:"-" yaml:"-"`
	DynamoDBOptions  []func(*dynamodb.Options)         `json:"-" yaml:"-"`
	MaxRetries       int                               `yaml:"max_retries"`

	// BatchSize and Concurrent seed the engine's execution settings.
	BatchSize  int  `yaml:"batch_size"`
	Concurrent bool `yaml:"concurrent"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Region:     "us-east-1",
		TableName:  "list-collections",
		MaxRetries: 3,
		BatchSize:  100,
	}
}

// Session manages the AWS session and DynamoDB client
type Session struct {
	config    *Config
	client    *dynamodb.Client
	awsConfig aws.Config
}

// NewSession creates a new session with the given configuration
func NewSession(cfg *Config) (*Session, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	options := make([]func(*config.LoadOptions) error, 0, len(cfg.AWSConfigOptions)+4)

	if cfg.Region != "" {
		options = append(options, config.WithRegion(cfg.Region))
	}

	if cfg.CredentialsProvider != nil {
		options = append(options, config.WithCredentialsProvider(cfg.CredentialsProvider))
	}

	maxAttempts := cfg.MaxRetries
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	options = append(options, config.WithRetryMode(aws.RetryModeStandard))
	options = append(options, config.WithRetryMaxAttempts(maxAttempts))

	httpClient := &http.Client{Timeout: 30 * time.Second}
	options = append(options, config.WithHTTPClient(httpClient))

	options = append(options, cfg.AWSConfigOptions...)

	awsConfig, err := configLoadFunc(context.Background(), options...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	if awsConfig.Retryer == nil {
		awsConfig.Retryer = func() aws.Retryer {
			return retry.NewStandard(func(o *retry.StandardOptions) {
				o.MaxAttempts = maxAttempts
			})
		}
	}

	clientOptions := make([]func(*dynamodb.Options), 0, 1+len(cfg.DynamoDBOptions))
	clientOptions = append(clientOptions, func(o *dynamodb.Options) {
		o.Region = awsConfig.Region

		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}

		if o.Retryer == nil {
			o.Retryer = awsConfig.Retryer()
		}

		if o.HTTPClient == nil {
			o.HTTPClient = httpClient
		}
	})

	clientOptions = append(clientOptions, cfg.DynamoDBOptions...)

	client := dynamodb.NewFromConfig(awsConfig, clientOptions...)
	if client == nil {
		return nil, fmt.Errorf("failed to create DynamoDB client")
	}

	return &Session{
		config:    cfg,
		awsConfig: awsConfig,
		client:    client,
	}, nil
}

// Client returns the DynamoDB client
func (s *Session) Client() (*dynamodb.Client, error) {
	if s == nil {
		return nil, fmt.Errorf("session is nil")
	}
	if s.client == nil {
		return nil, fmt.Errorf("DynamoDB client is nil")
	}
	return s.client, nil
}

// Config returns the session configuration
func (s *Session) Config() *Config {
	return s.config
}

// AWSConfig returns the AWS configuration
func (s *Session) AWSConfig() aws.Config {
	return s.awsConfig
}
