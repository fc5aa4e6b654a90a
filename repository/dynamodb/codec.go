package dynamodb

import (
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
	"github.com/w-h-a/triage/repository"
)

// marshalItem expects a tree that already went through repository.ToDecimal.
func marshalItem(record repository.Record) (map[string]types.AttributeValue, error) {
	item := make(map[string]types.AttributeValue, len(record))
	for k, v := range record {
		av, err := marshalValue(v)
		if err != nil {
			return nil, fmt.Errorf("marshal attribute %s: %w", k, err)
		}
		item[k] = av
	}
	return item, nil
}

func marshalValue(v any) (types.AttributeValue, error) {
	switch t := v.(type) {
	case decimal.Decimal:
		return &types.AttributeValueMemberN{Value: t.String()}, nil
	case repository.Record:
		return marshalMap(t)
	case map[string]any:
		return marshalMap(t)
	case []any:
		list := make([]types.AttributeValue, len(t))
		for i, item := range t {
			av, err := marshalValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = av
		}
		return &types.AttributeValueMemberL{Value: list}, nil
	}
	return attributevalue.Marshal(v)
}

func marshalMap(m map[string]any) (types.AttributeValue, error) {
	members := make(map[string]types.AttributeValue, len(m))
	for k, v := range m {
		av, err := marshalValue(v)
		if err != nil {
			return nil, fmt.Errorf("marshal attribute %s: %w", k, err)
		}
		members[k] = av
	}
	return &types.AttributeValueMemberM{Value: members}, nil
}

func unmarshalItem(item map[string]types.AttributeValue) (repository.Record, error) {
	var raw map[string]any
	if err := attributevalue.UnmarshalMapWithOptions(item, &raw, func(o *attributevalue.DecoderOptions) {
		o.UseNumber = true
	}); err != nil {
		return nil, err
	}

	var bad error

	tree := repository.Transform(raw, func(v any) any {
		n, ok := v.(attributevalue.Number)
		if !ok {
			return v
		}
		d, err := repository.NumberFromString(string(n))
		if err != nil {
			if bad == nil {
				bad = err
			}
			return v
		}
		return repository.NumberLeaf(d)
	})

	if bad != nil {
		return nil, bad
	}

	return repository.Record(tree.(map[string]any)), nil
}
