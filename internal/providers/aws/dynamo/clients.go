package dynamo

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatch"
	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
)

// ---------------------------------------------------------------------------
// Narrow client interfaces
//
// Each interface lists only the SDK operations this package uses. The real
// *dynamodb.Client and *cloudwatch.Client satisfy them automatically; tests
// replace any field in tableClients with a stub struct.
// ---------------------------------------------------------------------------

// tableDDBClient covers the DynamoDB operations used for table discovery and
// classification. The ListTables method also satisfies
// ddb.ListTablesAPIClient, enabling the SDK v2 paginator.
type tableDDBClient interface {
	ListTables(
		ctx context.Context,
		params *ddb.ListTablesInput,
		optFns ...func(*ddb.Options),
	) (*ddb.ListTablesOutput, error)

	DescribeTable(
		ctx context.Context,
		params *ddb.DescribeTableInput,
		optFns ...func(*ddb.Options),
	) (*ddb.DescribeTableOutput, error)
}

// tableCWClient covers the CloudWatch operations used for metric gathering.
// Metrics are fetched per region; the client must be initialised with a
// regional aws.Config.
type tableCWClient interface {
	GetMetricStatistics(
		ctx context.Context,
		params *cloudwatch.GetMetricStatisticsInput,
		optFns ...func(*cloudwatch.Options),
	) (*cloudwatch.GetMetricStatisticsOutput, error)
}

// tableClients holds the region-scoped service clients for one region's
// pipeline. Both fields are interfaces — swap either with a mock in tests.
type tableClients struct {
	DDB tableDDBClient
	CW  tableCWClient
}

// tableClientFactory creates a tableClients from a regional aws.Config.
type tableClientFactory func(cfg aws.Config) *tableClients

// newDefaultTableClients is the production tableClientFactory.
func newDefaultTableClients(cfg aws.Config) *tableClients {
	return &tableClients{
		DDB: ddb.NewFromConfig(cfg),
		CW:  cloudwatch.NewFromConfig(cfg),
	}
}
