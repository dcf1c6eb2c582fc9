package dynamo

import (
	"context"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"github.com/pankaj-dahiya-devops/ddb-audit/internal/models"
)

// listTables pages through every DynamoDB table name in the region.
//
// Enumeration failure is non-fatal: the error is logged and an empty list is
// returned, so a region that cannot be enumerated contributes zero tables
// rather than aborting the run.
func (c *DefaultCollector) listTables(ctx context.Context, clients *tableClients, region string) []string {
	paginator := ddb.NewListTablesPaginator(clients.DDB, &ddb.ListTablesInput{})

	var names []string
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			c.logger.Warn("list tables failed",
				zap.String("region", region),
				zap.Error(err),
			)
			return nil
		}
		names = append(names, page.TableNames...)
	}
	return names
}

// classifyTable determines the capacity mode of one table via DescribeTable.
//
// Any API failure degrades to CapacityModeUnknown (logged, never propagated):
// an unclassifiable table is simply excluded from metrics collection.
// Callers hold a table-gate slot for the duration of this call — it is the
// most numerous operation in the whole scan.
func (c *DefaultCollector) classifyTable(ctx context.Context, clients *tableClients, region, table string) models.CapacityMode {
	out, err := clients.DDB.DescribeTable(ctx, &ddb.DescribeTableInput{
		TableName: aws.String(table),
	})
	if err != nil {
		c.logger.Warn("describe table failed",
			zap.String("region", region),
			zap.String("table", table),
			zap.Error(err),
		)
		return models.CapacityModeUnknown
	}
	if out.Table == nil {
		return models.CapacityModeUnknown
	}

	// Tables created before on-demand billing existed carry no
	// BillingModeSummary at all; DynamoDB defines them as provisioned.
	if out.Table.BillingModeSummary == nil {
		return models.CapacityModeProvisioned
	}

	switch out.Table.BillingModeSummary.BillingMode {
	case ddbtypes.BillingModeProvisioned:
		return models.CapacityModeProvisioned
	case ddbtypes.BillingModePayPerRequest:
		return models.CapacityModeOnDemand
	default:
		return models.CapacityModeUnknown
	}
}

// provisionedTables returns the names of all provisioned tables in the
// region, in listing order. Every listed table is classified concurrently;
// each classification individually holds a slot of the shared table gate.
// There is deliberately no per-region cap on this fan-out — the table gate
// is the single global ceiling on simultaneous DescribeTable calls across
// all regions combined.
func (c *DefaultCollector) provisionedTables(ctx context.Context, clients *tableClients, region string) []string {
	names := c.listTables(ctx, clients, region)
	if len(names) == 0 {
		return nil
	}

	modes := make([]models.CapacityMode, len(names))
	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			err := c.tables.Do(ctx, func() error {
				modes[i] = c.classifyTable(ctx, clients, region, name)
				return nil
			})
			if err != nil {
				// Gate acquisition failed (context cancelled).
				modes[i] = models.CapacityModeUnknown
			}
		}(i, name)
	}
	wg.Wait()

	var provisioned []string
	for i, name := range names {
		if modes[i] == models.CapacityModeProvisioned {
			provisioned = append(provisioned, name)
		}
	}
	return provisioned
}
