package marketstore

import (
	"context"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// EnvTableName is the environment variable consulted when Config leaves
// the table name empty.
const EnvTableName = "MARKETPLACE_TABLE"

// DynamoDBClient is the slice of the DynamoDB API the store uses, for
// easier testing and connection management.
type DynamoDBClient interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchGetItem(ctx context.Context, params *dynamodb.BatchGetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchGetItemOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// Config holds Store construction options.
type Config struct {
	// TableName is the marketplace table. Falls back to EnvTableName.
	TableName string
	// Clock overrides the time source. Defaults to DefaultClock.
	Clock Clock
}

// Store provides CRUD primitives against the marketplace table. It holds
// no hidden process-wide state; construct one explicitly and pass it to
// callers.
type Store struct {
	client DynamoDBClient
	table  string
	tick   Clock
}

// New creates a Store backed by the given client.
func New(client DynamoDBClient, cfg Config) (*Store, error) {
	if cfg.TableName == "" {
		cfg.TableName = os.Getenv(EnvTableName)
	}
	if cfg.TableName == "" {
		return nil, fmt.Errorf("marketstore: table name not configured (set Config.TableName or %s)", EnvTableName)
	}
	if cfg.Clock == nil {
		cfg.Clock = DefaultClock
	}
	return &Store{client: client, table: cfg.TableName, tick: cfg.Clock}, nil
}

// NewFromConfig loads the default AWS configuration and returns a Store
// backed by a real DynamoDB client.
func NewFromConfig(ctx context.Context, cfg Config) (*Store, error) {
	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return New(dynamodb.NewFromConfig(awsCfg), cfg)
}

// TableName returns the table this store operates on.
func (s *Store) TableName() string { return s.table }
