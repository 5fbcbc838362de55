// Package dynamostore implements the collection client on DynamoDB.
//
// Collections share one table: partition key is the list name, sort key is
// the numeric item ID, and item fields map to top-level attributes. A
// `_version` attribute backs concurrency tokens in the weak ETag shape the
// engine passes through.
//
// A batch transaction defers its registered calls and fires them during
// Commit as independent sub-requests, the way a list service's batch
// changeset does: each call carries its own outcome, and one stale token
// or missing item never fails its siblings. DynamoDB has no non-atomic
// multi-item write with per-item conditions, so the sub-requests are
// issued back-to-back inside the single Commit.
package dynamostore

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"github.com/theory-cloud/listtheory/pkg/core"
	"github.com/theory-cloud/listtheory/pkg/session"
)

// dynamoAPI is the narrow DynamoDB surface the store needs. Tests provide
// stub implementations; production uses *dynamodb.Client.
type dynamoAPI interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// Client implements core.CollectionClient on a DynamoDB table.
type Client struct {
	api   dynamoAPI
	table string
	log   *zap.Logger
}

// New creates a client from configuration, constructing the session and
// DynamoDB client.
func New(cfg *session.Config) (*Client, error) {
	sess, err := session.NewSession(cfg)
	if err != nil {
		return nil, err
	}
	return NewFromSession(sess)
}

// NewFromSession creates a client from an existing session.
func NewFromSession(sess *session.Session) (*Client, error) {
	api, err := sess.Client()
	if err != nil {
		return nil, err
	}

	table := ""
	if cfg := sess.Config(); cfg != nil {
		table = cfg.TableName
	}
	if table == "" {
		table = session.DefaultConfig().TableName
	}

	return &Client{api: api, table: table, log: zap.NewNop()}, nil
}

// NewWithAPI creates a client around an explicit DynamoDB API
// implementation. Used by tests to inject stubs.
func NewWithAPI(api dynamoAPI, table string) *Client {
	return &Client{api: api, table: table, log: zap.NewNop()}
}

// WithLogger sets the client's logger.
func (c *Client) WithLogger(log *zap.Logger) *Client {
	if log != nil {
		c.log = log
	}
	return c
}

// OpenBatch opens a new grouped transaction against the collection table.
// Safe for concurrent use; each transaction is independent.
func (c *Client) OpenBatch() core.BatchTransaction {
	return newTransaction(c.api, c.table, c.log)
}
