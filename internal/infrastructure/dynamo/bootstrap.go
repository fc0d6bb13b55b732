package dynamo

import (
	"context"
	"errors"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-event-registration/internal/config"
)

type tableCreator interface {
	CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// tableSpec is a string-keyed table with hash-only GSIs (index name -> attribute).
type tableSpec struct {
	name    string
	hashKey string
	indexes map[string]string
}

func tableSpecs(tables config.DynamoTables) []tableSpec {
	return []tableSpec{
		{
			name:    tables.Registrations,
			hashKey: fieldRegistrationID,
			indexes: map[string]string{indexTeam: fieldTeamID, indexLeader: fieldLeaderKey},
		},
		{name: tables.Transactions, hashKey: fieldTransactionID},
		{
			name:    tables.UPIVerifications,
			hashKey: fieldVerificationID,
			indexes: map[string]string{indexUPI: fieldUPITransactionID},
		},
	}
}

// Bootstrap creates the collection tables and their GSIs if they don't already
// exist. Safe to call on every startup; failures are logged, not returned.
func Bootstrap(ctx context.Context, client tableCreator, tables config.DynamoTables) {
	for _, spec := range tableSpecs(tables) {
		in := spec.input()
		_, err := client.CreateTable(ctx, in)
		var inUse *types.ResourceInUseException
		switch {
		case err == nil:
			slog.Info("created table", "table", spec.name)
		case errors.As(err, &inUse):
		default:
			slog.Warn("could not create table", "table", spec.name, "err", err)
		}
	}
}

func (s tableSpec) input() *dynamodb.CreateTableInput {
	in := &dynamodb.CreateTableInput{
		TableName:   aws.String(s.name),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(s.hashKey), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(s.hashKey), KeyType: types.KeyTypeHash},
		},
	}
	for _, name := range sortedKeys(s.indexes) {
		attr := s.indexes[name]
		in.AttributeDefinitions = append(in.AttributeDefinitions, types.AttributeDefinition{
			AttributeName: aws.String(attr), AttributeType: types.ScalarAttributeTypeS,
		})
		in.GlobalSecondaryIndexes = append(in.GlobalSecondaryIndexes, types.GlobalSecondaryIndex{
			IndexName:  aws.String(name),
			KeySchema:  []types.KeySchemaElement{{AttributeName: aws.String(attr), KeyType: types.KeyTypeHash}},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		})
	}
	return in
}
