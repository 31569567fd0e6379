package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/ignite/delivery-relay/internal/config"
	"github.com/ignite/delivery-relay/internal/pkg/logger"
)

// DynamoStore layers a DynamoDB sink over the in-memory ring. Reads come
// from memory (the operator endpoints only need recent outcomes); every
// write also lands in DynamoDB for durable audit.
type DynamoStore struct {
	mem       *MemoryStore
	client    *dynamodb.Client
	tableName string
}

// dynamoItem is the stored shape: outcomes partitioned by status, sorted
// by timestamp, with a 90-day TTL.
type dynamoItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	Data      string `dynamodbav:"Data"`
	Timestamp string `dynamodbav:"Timestamp"`
	TTL       int64  `dynamodbav:"TTL,omitempty"`
}

// NewDynamoStore creates the DynamoDB-backed history store.
func NewDynamoStore(ctx context.Context, mem *MemoryStore, cfg config.HistoryConfig) (*DynamoStore, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}
	return &DynamoStore{
		mem:       mem,
		client:    dynamodb.NewFromConfig(awsCfg),
		tableName: cfg.DynamoDBTable,
	}, nil
}

func (d *DynamoStore) Record(ctx context.Context, e Entry) error {
	if err := d.mem.Record(ctx, e); err != nil {
		return err
	}

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshaling history entry: %w", err)
	}

	item := dynamoItem{
		PK:        fmt.Sprintf("DELIVERY#%s", e.Status),
		SK:        fmt.Sprintf("%s#%s", e.RecordedAt.UTC().Format(time.RFC3339), e.ID),
		Data:      string(data),
		Timestamp: e.RecordedAt.UTC().Format(time.RFC3339),
		TTL:       e.RecordedAt.Add(90 * 24 * time.Hour).Unix(),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshaling item: %w", err)
	}

	if _, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      av,
	}); err != nil {
		// The in-memory record already succeeded; a sink failure must not
		// fail the delivery, only the audit copy.
		logger.Warn("history sink write failed", "delivery_id", e.ID, "error", err.Error())
	}
	return nil
}

func (d *DynamoStore) Recent(ctx context.Context, limit int) []Entry {
	return d.mem.Recent(ctx, limit)
}

func (d *DynamoStore) FollowUps(ctx context.Context, limit int) []Entry {
	return d.mem.FollowUps(ctx, limit)
}
