package dynamostore

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/theory-cloud/listtheory/pkg/operation"
)

// toAttributeValue converts a field value to a DynamoDB attribute value.
// The supported set matches what list field maps carry in practice:
// scalars, timestamps, string slices, and nested maps.
func toAttributeValue(value any) (types.AttributeValue, error) {
	switch v := value.(type) {
	case nil:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case string:
		return &types.AttributeValueMemberS{Value: v}, nil
	case bool:
		return &types.AttributeValueMemberBOOL{Value: v}, nil
	case int:
		return &types.AttributeValueMemberN{Value: strconv.Itoa(v)}, nil
	case int32:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(int64(v), 10)}, nil
	case int64:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}, nil
	case float32:
		return &types.AttributeValueMemberN{Value: strconv.FormatFloat(float64(v), 'g', -1, 32)}, nil
	case float64:
		return &types.AttributeValueMemberN{Value: strconv.FormatFloat(v, 'g', -1, 64)}, nil
	case time.Time:
		return &types.AttributeValueMemberS{Value: v.UTC().Format(time.RFC3339Nano)}, nil
	case []string:
		items := make([]types.AttributeValue, 0, len(v))
		for _, s := range v {
			items = append(items, &types.AttributeValueMemberS{Value: s})
		}
		return &types.AttributeValueMemberL{Value: items}, nil
	case []any:
		items := make([]types.AttributeValue, 0, len(v))
		for _, item := range v {
			av, err := toAttributeValue(item)
			if err != nil {
				return nil, err
			}
			items = append(items, av)
		}
		return &types.AttributeValueMemberL{Value: items}, nil
	case map[string]any:
		entries := make(map[string]types.AttributeValue, len(v))
		for key, item := range v {
			av, err := toAttributeValue(item)
			if err != nil {
				return nil, fmt.Errorf("field %s: %w", key, err)
			}
			entries[key] = av
		}
		return &types.AttributeValueMemberM{Value: entries}, nil
	default:
		return nil, fmt.Errorf("unsupported field value type %T", value)
	}
}

// marshalFields converts a field map to attribute values.
func marshalFields(fields map[string]any) (map[string]types.AttributeValue, error) {
	item := make(map[string]types.AttributeValue, len(fields))
	for name, value := range fields {
		av, err := toAttributeValue(value)
		if err != nil {
			return nil, fmt.Errorf("failed to convert field %s: %w", name, err)
		}
		item[name] = av
	}
	return item, nil
}

// coerceFormValues applies the validate-and-write coercion the list
// service performs server-side: ordered string pairs are parsed into typed
// values before persisting. Later pairs win on duplicate names, matching
// the in-order application the service documents.
func coerceFormValues(formValues []operation.FormValue) map[string]any {
	fields := make(map[string]any, len(formValues))
	for _, fv := range formValues {
		fields[fv.InternalName] = coerceValue(fv.Value)
	}
	return fields
}

func coerceValue(raw string) any {
	trimmed := strings.TrimSpace(raw)

	switch strings.ToLower(trimmed) {
	case "true":
		return true
	case "false":
		return false
	}

	if n, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return n
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}

	return raw
}
