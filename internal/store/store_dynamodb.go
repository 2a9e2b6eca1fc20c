package store

import (
	"context"
	"errors"
	"time"

	"github.com/aprendeyjuega/asset-relay/config"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

const (
	tablePartitionKey      = "namespace"
	tableSortKey           = "key"
	dynamoDBSnapshotAttr   = "snapshot"
	dynamoDBBatchMaxItems  = 25
	dynamoDBMaxItemSize    = 400 * 1024
	conditionalCheckFailed = "ConditionalCheckFailed"

	// Unprocessed batch items are resubmitted at most this many times, with the delay doubling each time.
	dynamoDBBatchRetries    = 5
	dynamoDBBatchRetryDelay = 50 * time.Millisecond
)

// dynamoDBStorage uses a table with a string partition key "namespace" and a string sort key "key".
// Version tags are items in the <prefix>:stores namespace; each generation's entries are items in the
// <prefix>:store:<tag> namespace, with the request key as the sort key.
type dynamoDBStorage struct {
	client  *dynamodb.Client
	table   string
	prefix  string
	loggers ldlog.Loggers
}

type dynamoDBStore struct {
	storage *dynamoDBStorage
	tag     string
}

func dynamoDBStoresNamespace(prefix string) string {
	return prefix + ":stores"
}

func dynamoDBEntriesNamespace(prefix, tag string) string {
	return prefix + ":store:" + tag
}

// NewDynamoDBStorage creates a Storage backed by a DynamoDB table. AWS credentials and region come from
// the standard AWS environment; optFns can override client options.
func NewDynamoDBStorage(
	ctx context.Context,
	dbConfig config.DynamoDBConfig,
	optFns []func(*dynamodb.Options),
	loggers ldlog.Loggers,
) (Storage, error) {
	awsConfig, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, errOpeningStorage("DynamoDB", err)
	}
	if dbConfig.URL.IsDefined() {
		endpoint := dbConfig.URL.String()
		optFns = append(optFns, func(o *dynamodb.Options) {
			o.EndpointResolver = dynamodb.EndpointResolverFromURL(endpoint)
		})
	}

	s := &dynamoDBStorage{
		client:  dynamodb.NewFromConfig(awsConfig, optFns...),
		table:   dbConfig.TableName,
		prefix:  prefixOrDefault(dbConfig.Prefix, config.DefaultDynamoDBPrefix),
		loggers: loggers,
	}
	s.loggers.SetPrefix("[store:dynamodb]")
	s.loggers.Infof("Using DynamoDB table %s with prefix %q", s.table, s.prefix)
	return s, nil
}

func (s *dynamoDBStorage) itemKey(namespace, key string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		tablePartitionKey: attrValueOfString(namespace),
		tableSortKey:      attrValueOfString(key),
	}
}

func (s *dynamoDBStorage) Kind() string { return "dynamodb" }

func (s *dynamoDBStorage) Open(ctx context.Context, tag string) (Store, error) {
	if err := checkTag(tag); err != nil {
		return nil, err
	}
	_, err := s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.table),
		Item:      s.itemKey(dynamoDBStoresNamespace(s.prefix), tag),
	})
	if err != nil {
		return nil, err
	}
	return &dynamoDBStore{storage: s, tag: tag}, nil
}

func (s *dynamoDBStorage) Tags(ctx context.Context) ([]string, error) {
	var tags []string
	err := s.queryKeys(ctx, dynamoDBStoresNamespace(s.prefix), func(key string) {
		tags = append(tags, key)
	})
	return tags, err
}

func (s *dynamoDBStorage) Delete(ctx context.Context, tag string) (bool, error) {
	out, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:    aws.String(s.table),
		Key:          s.itemKey(dynamoDBStoresNamespace(s.prefix), tag),
		ReturnValues: types.ReturnValueAllOld,
	})
	if err != nil {
		return false, err
	}

	namespace := dynamoDBEntriesNamespace(s.prefix, tag)
	var requests []types.WriteRequest
	err = s.queryKeys(ctx, namespace, func(key string) {
		requests = append(requests, types.WriteRequest{
			DeleteRequest: &types.DeleteRequest{Key: s.itemKey(namespace, key)},
		})
	})
	if err != nil {
		return false, err
	}
	if err := s.batchWrite(ctx, requests); err != nil {
		return false, err
	}
	if len(out.Attributes) > 0 {
		s.loggers.Debugf(logMsgDeletedStore, tag, len(requests))
	}
	return len(out.Attributes) > 0, nil
}

func (s *dynamoDBStorage) batchWrite(ctx context.Context, requests []types.WriteRequest) error {
	write := func(ctx context.Context, items map[string][]types.WriteRequest) (map[string][]types.WriteRequest, error) {
		out, err := s.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{RequestItems: items})
		if err != nil {
			return nil, err
		}
		return out.UnprocessedItems, nil
	}
	for start := 0; start < len(requests); start += dynamoDBBatchMaxItems {
		end := start + dynamoDBBatchMaxItems
		if end > len(requests) {
			end = len(requests)
		}
		batch := map[string][]types.WriteRequest{s.table: requests[start:end]}
		if err := writeBatchWithRetries(ctx, batch, dynamoDBBatchRetryDelay, write); err != nil {
			return err
		}
	}
	return nil
}

// writeBatchWithRetries calls write and then resubmits whatever it reports as unprocessed, waiting delay
// before the first retry and twice as long before each later one.
func writeBatchWithRetries(
	ctx context.Context,
	items map[string][]types.WriteRequest,
	delay time.Duration,
	write func(context.Context, map[string][]types.WriteRequest) (map[string][]types.WriteRequest, error),
) error {
	for attempt := 0; ; attempt++ {
		unprocessed, err := write(ctx, items)
		if err != nil {
			return err
		}
		if len(unprocessed) == 0 {
			return nil
		}
		if attempt == dynamoDBBatchRetries {
			return errUnprocessedItems(countWriteRequests(unprocessed))
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		items = unprocessed
	}
}

func countWriteRequests(items map[string][]types.WriteRequest) int {
	n := 0
	for _, reqs := range items {
		n += len(reqs)
	}
	return n
}

func (s *dynamoDBStorage) queryKeys(ctx context.Context, namespace string, fn func(string)) error {
	paginator := dynamodb.NewQueryPaginator(s.client, &dynamodb.QueryInput{
		TableName:              aws.String(s.table),
		ConsistentRead:         aws.Bool(true),
		KeyConditionExpression: aws.String("#0 = :0"),
		ExpressionAttributeNames: map[string]string{
			"#0": tablePartitionKey,
			"#1": tableSortKey,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":0": attrValueOfString(namespace),
		},
		ProjectionExpression: aws.String("#1"),
	})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return err
		}
		for _, item := range page.Items {
			if sValue, ok := item[tableSortKey].(*types.AttributeValueMemberS); ok {
				fn(sValue.Value)
			}
		}
	}
	return nil
}

func (s *dynamoDBStorage) Close() error {
	return nil
}

func (s *dynamoDBStore) Tag() string { return s.tag }

func (s *dynamoDBStore) Get(ctx context.Context, key string) (Snapshot, bool, error) {
	result, err := s.storage.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.storage.table),
		ConsistentRead: aws.Bool(true),
		Key:            s.storage.itemKey(dynamoDBEntriesNamespace(s.storage.prefix, s.tag), key),
	})
	if err != nil {
		return Snapshot{}, false, err
	}
	bValue, ok := result.Item[dynamoDBSnapshotAttr].(*types.AttributeValueMemberB)
	if !ok {
		return Snapshot{}, false, nil
	}
	snapshot, err := DecodeSnapshot(bValue.Value)
	if err != nil {
		s.storage.loggers.Warnf(logMsgCorruptEntry, key, s.tag, err)
		return Snapshot{}, false, nil
	}
	return snapshot, true, nil
}

// Put writes the entry in a transaction with a condition check on the store's marker item, so that a
// late write from a superseded worker cannot recreate a purged generation.
func (s *dynamoDBStore) Put(ctx context.Context, key string, snapshot Snapshot) error {
	data, err := snapshot.Encode()
	if err != nil {
		return err
	}
	if len(data) > dynamoDBMaxItemSize {
		return errValueTooLarge(key, len(data))
	}
	item := s.storage.itemKey(dynamoDBEntriesNamespace(s.storage.prefix, s.tag), key)
	item[dynamoDBSnapshotAttr] = &types.AttributeValueMemberB{Value: data}

	_, err = s.storage.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				ConditionCheck: &types.ConditionCheck{
					TableName:                aws.String(s.storage.table),
					Key:                      s.storage.itemKey(dynamoDBStoresNamespace(s.storage.prefix), s.tag),
					ConditionExpression:      aws.String("attribute_exists(#0)"),
					ExpressionAttributeNames: map[string]string{"#0": tablePartitionKey},
				},
			},
			{
				Put: &types.Put{
					TableName: aws.String(s.storage.table),
					Item:      item,
				},
			},
		},
	})
	if err != nil {
		var canceledErr *types.TransactionCanceledException
		if errors.As(err, &canceledErr) {
			for _, reason := range canceledErr.CancellationReasons {
				if reason.Code != nil && *reason.Code == conditionalCheckFailed {
					return nil
				}
			}
		}
		return err
	}
	return nil
}

func (s *dynamoDBStore) Len(ctx context.Context) (int, error) {
	paginator := dynamodb.NewQueryPaginator(s.storage.client, &dynamodb.QueryInput{
		TableName:                aws.String(s.storage.table),
		ConsistentRead:           aws.Bool(true),
		KeyConditionExpression:   aws.String("#0 = :0"),
		ExpressionAttributeNames: map[string]string{"#0": tablePartitionKey},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":0": attrValueOfString(dynamoDBEntriesNamespace(s.storage.prefix, s.tag)),
		},
		Select: types.SelectCount,
	})
	total := 0
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		total += int(page.Count)
	}
	return total, nil
}

func attrValueOfString(value string) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: value}
}
