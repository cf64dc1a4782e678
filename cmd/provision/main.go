// Command provision creates the configured DynamoDB tables when they do not
// exist yet: users, access tokens and, when configured, OAuth accounts. Run it
// once per environment before serving traffic.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"authstore/infrastructure/config"
	"authstore/infrastructure/persistence/dynamodb"
	"authstore/pkg/observability"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err := observability.NewLogger(cfg.LogLevel)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer logger.Sync()

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		logger.Fatal("Failed to load AWS configuration", zap.Error(err))
	}
	client := awsdynamodb.NewFromConfig(awsCfg)

	tables := []dynamodb.TableDescriptor{
		{Name: cfg.UsersTable, PartitionKey: "id"},
		{Name: cfg.AccessTokensTable, PartitionKey: cfg.TokenPrimaryKey},
	}
	if cfg.OAuthAccountsTable != "" {
		tables = append(tables, dynamodb.TableDescriptor{Name: cfg.OAuthAccountsTable, PartitionKey: "id"})
	}

	provisioner := dynamodb.NewProvisioner(cfg, logger)
	if err := provisioner.EnsureTables(ctx, client, tables...); err != nil {
		logger.Fatal("Failed to provision tables", zap.Error(err))
	}

	for _, table := range tables {
		logger.Info("Table ready",
			zap.String("table", table.Name),
			zap.String("partition_key", table.PartitionKey),
		)
	}
}
