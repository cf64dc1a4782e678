// Package dynamodb implements the DynamoDB-backed stores consumed by the
// authentication framework: users, linked OAuth accounts and bearer access
// tokens, each in its own table keyed by a single string partition key.
package dynamodb

import (
	"context"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	apperrors "authstore/pkg/errors"
)

// Client is the narrow slice of the DynamoDB API the stores use. The real
// *dynamodb.Client satisfies it; tests and local stubs can stand in.
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, params *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// TableProvider yields table handles for store operations. When constructed
// around a long-lived client, every acquisition reuses it. Otherwise a region
// is required and each acquisition builds a short-lived client from default
// AWS config; the Go SDK client holds no connection that needs explicit
// release, so the handle is simply dropped when the operation returns.
type TableProvider struct {
	client Client
	region string
	logger *zap.Logger
}

// NewTableProvider builds a provider. client may be nil when region is set;
// region may be empty when client is set. logger may be nil.
func NewTableProvider(client Client, region string, logger *zap.Logger) *TableProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TableProvider{client: client, region: region, logger: logger}
}

// Table acquires a handle for the named table.
func (p *TableProvider) Table(ctx context.Context, name string) (Table, error) {
	client, err := p.acquire(ctx)
	if err != nil {
		return Table{}, err
	}
	return Table{client: client, name: name}, nil
}

func (p *TableProvider) acquire(ctx context.Context) (Client, error) {
	if p.client != nil {
		return p.client, nil
	}
	if p.region == "" {
		return nil, apperrors.NewValidationError(
			"a region must be specified when no long-lived dynamodb client is supplied")
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(p.region))
	if err != nil {
		return nil, apperrors.NewDatabaseError("LoadDefaultConfig", err)
	}
	p.logger.Debug("opened short-lived dynamodb client", zap.String("region", p.region))
	return dynamodb.NewFromConfig(cfg), nil
}

// Table is a handle bound to one table name.
type Table struct {
	client Client
	name   string
}

// Name returns the table name the handle is bound to.
func (t Table) Name() string {
	return t.name
}
