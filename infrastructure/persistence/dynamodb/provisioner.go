package dynamodb

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"authstore/infrastructure/config"
	apperrors "authstore/pkg/errors"
)

// TableDescriptor names a table and its single string partition key.
type TableDescriptor struct {
	Name         string
	PartitionKey string
}

// Provisioner creates missing tables at startup. Each table is checked at
// most once per Provisioner: subsequent EnsureTables calls for a verified
// name are free. Safe for concurrent use.
type Provisioner struct {
	mu            sync.Mutex
	verified      map[string]struct{}
	billingMode   types.BillingMode
	readCapacity  int64
	writeCapacity int64
	logger        *zap.Logger
}

// NewProvisioner builds a provisioner from the database configuration.
// logger may be nil.
func NewProvisioner(cfg *config.Config, logger *zap.Logger) *Provisioner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provisioner{
		verified:      make(map[string]struct{}),
		billingMode:   types.BillingMode(cfg.BillingMode),
		readCapacity:  cfg.ReadCapacityUnits,
		writeCapacity: cfg.WriteCapacityUnits,
		logger:        logger,
	}
}

// EnsureTables checks each descriptor and creates any table that does not
// exist, waiting until it is active. Existing tables are accepted as-is; no
// attempt is made to reconcile their key schema.
func (p *Provisioner) EnsureTables(ctx context.Context, client Client, tables ...TableDescriptor) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, table := range tables {
		if table.Name == "" || table.PartitionKey == "" {
			return apperrors.NewValidationError("table descriptors need both a name and a partition key")
		}
		if _, ok := p.verified[table.Name]; ok {
			continue
		}
		if err := p.ensureTable(ctx, client, table); err != nil {
			return err
		}
		p.verified[table.Name] = struct{}{}
	}
	return nil
}

func (p *Provisioner) ensureTable(ctx context.Context, client Client, table TableDescriptor) error {
	_, err := client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table.Name),
	})
	if err == nil {
		p.logger.Debug("table exists", zap.String("table", table.Name))
		return nil
	}
	var notFound *types.ResourceNotFoundException
	if !errors.As(err, &notFound) {
		return apperrors.NewDatabaseError("DescribeTable", err)
	}

	input := &dynamodb.CreateTableInput{
		TableName: aws.String(table.Name),
		AttributeDefinitions: []types.AttributeDefinition{{
			AttributeName: aws.String(table.PartitionKey),
			AttributeType: types.ScalarAttributeTypeS,
		}},
		KeySchema: []types.KeySchemaElement{{
			AttributeName: aws.String(table.PartitionKey),
			KeyType:       types.KeyTypeHash,
		}},
		BillingMode: p.billingMode,
	}
	if p.billingMode == types.BillingModeProvisioned {
		input.ProvisionedThroughput = &types.ProvisionedThroughput{
			ReadCapacityUnits:  aws.Int64(p.readCapacity),
			WriteCapacityUnits: aws.Int64(p.writeCapacity),
		}
	}
	if _, err := client.CreateTable(ctx, input); err != nil {
		return apperrors.NewDatabaseError("CreateTable", err)
	}

	p.logger.Info("creating table",
		zap.String("table", table.Name),
		zap.String("partition_key", table.PartitionKey),
		zap.String("billing_mode", string(p.billingMode)),
	)

	waiter := dynamodb.NewTableExistsWaiter(client)
	if err := waiter.Wait(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table.Name),
	}, 2*time.Minute); err != nil {
		return apperrors.NewDatabaseError("TableExistsWaiter", err)
	}
	return nil
}
