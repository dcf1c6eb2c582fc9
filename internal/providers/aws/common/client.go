package common

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// ProfileConfig is a resolved AWS profile with its SDK configuration and
// initialised account-level service clients. It is the unit passed from the
// CLI into the engine and collector.
type ProfileConfig struct {
	// ProfileName is the name from ~/.aws/credentials or "default".
	ProfileName string

	// AccountID is the resolved AWS account ID for this profile (via STS).
	AccountID string

	// Region is the home region for this profile configuration.
	Region string

	// Config is the fully loaded AWS SDK v2 configuration.
	Config aws.Config

	// Clients holds the account-level clients (STS, EC2 region discovery).
	// Region-scoped DynamoDB and CloudWatch clients are built per region by
	// the collector via ConfigForRegion.
	Clients *ClientSet
}

// AWSClientProvider loads AWS configurations and resolves active regions.
// It is the sole entry point for AWS credential and region management.
//
// Implementations must use the AWS SDK v2 only. Never shell out to the aws CLI.
type AWSClientProvider interface {
	// LoadProfile returns a ProfileConfig for the named profile.
	// Pass an empty string to load the default profile.
	LoadProfile(ctx context.Context, profile string) (*ProfileConfig, error)

	// GetActiveRegions returns all regions enabled for the account behind
	// cfg. This is the only external call in the whole scan with no degraded
	// fallback: if it fails, the run aborts.
	GetActiveRegions(ctx context.Context, cfg *ProfileConfig) ([]string, error)

	// ConfigForRegion clones cfg with the target region set. Use it to
	// build region-scoped SDK clients for per-region collection.
	ConfigForRegion(cfg *ProfileConfig, region string) aws.Config
}
