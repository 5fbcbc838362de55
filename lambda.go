// lambda.go
package listtheory

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-lambda-go/events"

	"github.com/theory-cloud/listtheory/pkg/batch"
	"github.com/theory-cloud/listtheory/pkg/dynamostore"
	"github.com/theory-cloud/listtheory/pkg/operation"
	"github.com/theory-cloud/listtheory/pkg/session"
)

var (
	// Global collection client for connection reuse across warm
	// invocations. Engines are cheap and per-run; the client is not.
	globalLambdaClient *dynamostore.Client
	lambdaOnce         sync.Once
	lambdaInitErr      error
)

// LambdaInit should be called from the init() function of a Lambda
// handler. It builds the collection client once, so warm starts reuse the
// HTTP connection pool, and returns a fresh engine bound to it.
func LambdaInit(cfg *session.Config) (*BatchBuilder, error) {
	lambdaOnce.Do(func() {
		if cfg == nil {
			cfg = session.DefaultConfig()
			cfg.Region = lambdaRegion()
		}
		globalLambdaClient, lambdaInitErr = dynamostore.New(cfg)
	})
	if lambdaInitErr != nil {
		return nil, lambdaInitErr
	}
	return batch.NewEngine(globalLambdaClient), nil
}

// IsLambdaEnvironment detects if running in AWS Lambda
func IsLambdaEnvironment() bool {
	return os.Getenv("AWS_LAMBDA_FUNCTION_NAME") != ""
}

// GetLambdaMemoryMB returns the allocated memory in MB
func GetLambdaMemoryMB() int {
	memStr := os.Getenv("AWS_LAMBDA_FUNCTION_MEMORY_SIZE")
	if memStr == "" {
		return 0
	}

	mem, err := strconv.Atoi(memStr)
	if err != nil {
		return 0
	}

	return mem
}

// GetRemainingTimeMillis returns milliseconds until the context deadline,
// or -1 when no deadline is set.
func GetRemainingTimeMillis(ctx context.Context) int64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return -1
	}

	return time.Until(deadline).Milliseconds()
}

// WithLambdaTimeout derives an execution context that ends one second
// before the Lambda deadline, leaving room for cleanup and response
// serialization. With no deadline on ctx, it is returned unchanged.
func WithLambdaTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	deadline, ok := ctx.Deadline()
	if !ok {
		return ctx, func() {}
	}
	return context.WithDeadline(ctx, deadline.Add(-1*time.Second))
}

func lambdaRegion() string {
	if region := os.Getenv("AWS_REGION"); region != "" {
		return region
	}
	return "us-east-1"
}

// sqsOperation is the JSON shape of one operation carried in an SQS
// record body.
type sqsOperation struct {
	Collection       string            `json:"collection"`
	Kind             string            `json:"kind"`
	ItemID           int               `json:"itemId,omitempty"`
	Fields           map[string]any    `json:"fields,omitempty"`
	FormValues       []sqsFormValue    `json:"formValues,omitempty"`
	Path             string            `json:"path,omitempty"`
	ConcurrencyToken string            `json:"concurrencyToken,omitempty"`
}

type sqsFormValue struct {
	InternalName string `json:"internalName"`
	Value        string `json:"value"`
}

// QueueSQSEvent decodes JSON-encoded operations from an SQS event and
// queues them on the engine, for event-driven batch runs. Records are
// applied in order; a record that fails to decode aborts with its message
// ID so the caller can dead-letter it.
func QueueSQSEvent(engine *BatchBuilder, event events.SQSEvent) error {
	for _, record := range event.Records {
		var op sqsOperation
		if err := json.Unmarshal([]byte(record.Body), &op); err != nil {
			return fmt.Errorf("failed to decode operation from message %s: %w", record.MessageId, err)
		}
		if err := queueDecoded(engine, op); err != nil {
			return fmt.Errorf("message %s: %w", record.MessageId, err)
		}
	}
	return nil
}

func queueDecoded(engine *BatchBuilder, op sqsOperation) error {
	list := engine.List(op.Collection)

	switch op.Kind {
	case "Add":
		list.Add(op.Fields)
	case "Update":
		if op.ConcurrencyToken != "" {
			list.Update(op.ItemID, op.Fields, op.ConcurrencyToken)
		} else {
			list.Update(op.ItemID, op.Fields)
		}
	case "Delete":
		if op.ConcurrencyToken != "" {
			list.Delete(op.ItemID, op.ConcurrencyToken)
		} else {
			list.Delete(op.ItemID)
		}
	case "AddValidated":
		list.AddValidated(formValues(op.FormValues), op.Path)
	case "UpdateValidated":
		list.UpdateValidated(op.ItemID, formValues(op.FormValues))
	default:
		return fmt.Errorf("unsupported operation kind %q", op.Kind)
	}
	return nil
}

func formValues(values []sqsFormValue) []operation.FormValue {
	converted := make([]operation.FormValue, 0, len(values))
	for _, v := range values {
		converted = append(converted, operation.FormValue{
			InternalName: v.InternalName,
			Value:        v.Value,
		})
	}
	return converted
}
