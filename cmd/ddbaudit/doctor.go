package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/aws/aws-sdk-go-v2/aws"
	ddb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/spf13/cobra"

	"github.com/pankaj-dahiya-devops/ddb-audit/internal/config"
	"github.com/pankaj-dahiya-devops/ddb-audit/internal/providers/aws/common"
)

// DoctorResult is the structured output of ddbaudit doctor. It can be
// serialised to JSON via --format=json or rendered as a human-readable table
// (default).
type DoctorResult struct {
	AWS struct {
		Profile     string `json:"profile,omitempty"`
		Credentials bool   `json:"credentials_ok"`
		AccountID   string `json:"account_id,omitempty"`
		RegionsOK   bool   `json:"regions_ok"`
		Error       string `json:"error,omitempty"`
	} `json:"aws"`

	DynamoDB struct {
		Reachable bool   `json:"reachable"`
		Region    string `json:"region,omitempty"`
		Error     string `json:"error,omitempty"`
	} `json:"dynamodb"`

	Config struct {
		Present bool     `json:"present"`
		Valid   bool     `json:"valid"`
		Errors  []string `json:"errors,omitempty"`
	} `json:"config"`

	OverallHealthy bool `json:"overall_healthy"`
}

// tableProber checks DynamoDB reachability with a regional configuration.
// It is a seam for tests; the default issues a one-item ListTables.
type tableProber func(ctx context.Context, cfg aws.Config) error

func defaultTableProber(ctx context.Context, cfg aws.Config) error {
	client := ddb.NewFromConfig(cfg)
	_, err := client.ListTables(ctx, &ddb.ListTablesInput{Limit: aws.Int32(1)})
	return err
}

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "doctor",
		Short:         "Run environment diagnostics",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			format, _ := cmd.Flags().GetString("format")
			profile, _ := cmd.Flags().GetString("profile")
			result, err := runDoctor(
				context.Background(),
				common.NewDefaultAWSClientProvider(),
				defaultTableProber,
				cmd.OutOrStdout(),
				format,
				profile,
			)
			if err != nil {
				// Rendering failure — let Cobra/main handle it.
				return err
			}
			if !result.OverallHealthy {
				// Exit directly so no error text reaches main.go's
				// fmt.Fprintln(os.Stderr, err) path.
				os.Exit(1)
			}
			return nil
		},
	}
	cmd.Flags().String("format", "table", `Output format: "table" or "json"`)
	cmd.Flags().String("profile", "", "AWS profile to use (default: credential chain)")
	return cmd
}

// runDoctor collects all diagnostic results, renders them to w in the
// requested format, and returns the result.
// The returned error covers only rendering failures (e.g. JSON encode error).
// Callers must inspect result.OverallHealthy to determine whether the
// environment is healthy; runDoctor itself never returns an error for an
// unhealthy result so that no error text leaks to callers (such as main).
func runDoctor(ctx context.Context, provider common.AWSClientProvider, probe tableProber, w io.Writer, format, profile string) (DoctorResult, error) {
	result := collectDoctorResult(ctx, provider, probe, profile, defaultConfigPath)

	switch format {
	case "json":
		if err := json.NewEncoder(w).Encode(result); err != nil {
			return result, fmt.Errorf("encode doctor result: %w", err)
		}
	default:
		renderDoctorTable(result, w)
	}

	return result, nil
}

// collectDoctorResult runs all environment checks and populates a DoctorResult.
// It performs no rendering; callers decide how to present the result.
func collectDoctorResult(ctx context.Context, provider common.AWSClientProvider, probe tableProber, profile, configPath string) DoctorResult {
	var result DoctorResult

	// AWS: credentials → STS account ID → region discovery → DynamoDB probe.
	// An empty profile string selects the default credential chain.
	if profile != "" {
		result.AWS.Profile = profile
	}
	profileCfg, err := provider.LoadProfile(ctx, profile)
	if err != nil {
		result.AWS.Error = err.Error()
	} else {
		result.AWS.Credentials = true
		result.AWS.AccountID = profileCfg.AccountID
		regions, err := provider.GetActiveRegions(ctx, profileCfg)
		if err != nil {
			result.AWS.Error = err.Error()
		} else if len(regions) == 0 {
			result.AWS.Error = "no active regions"
		} else {
			result.AWS.RegionsOK = true

			region := regions[0]
			result.DynamoDB.Region = region
			if err := probe(ctx, provider.ConfigForRegion(profileCfg, region)); err != nil {
				result.DynamoDB.Error = err.Error()
			} else {
				result.DynamoDB.Reachable = true
			}
		}
	}

	// Config: stat → load → validate (file is optional).
	_, statErr := os.Stat(configPath)
	if statErr == nil {
		result.Config.Present = true
		if _, loadErr := config.Load(configPath); loadErr != nil {
			result.Config.Errors = []string{loadErr.Error()}
		} else {
			result.Config.Valid = true
		}
	} else if !os.IsNotExist(statErr) {
		// Stat error other than "not found" — treat as present but unreadable.
		result.Config.Present = true
		result.Config.Errors = []string{statErr.Error()}
	}

	result.OverallHealthy = result.AWS.Credentials &&
		result.AWS.RegionsOK &&
		result.DynamoDB.Reachable &&
		(!result.Config.Present || result.Config.Valid)

	return result
}

// renderDoctorTable writes the human-readable diagnostic output from result to w.
func renderDoctorTable(result DoctorResult, w io.Writer) {
	fmt.Fprintln(w, "Environment Diagnostics")

	if result.AWS.Profile != "" {
		fmt.Fprintf(w, "\nAWS (profile: %s):\n", result.AWS.Profile)
	} else {
		fmt.Fprintln(w, "\nAWS:")
	}
	if !result.AWS.Credentials {
		doctorPrint(w, "Credentials", "FAIL", result.AWS.Error)
		doctorPrint(w, "STS Identity", "FAIL", "skipped")
		doctorPrint(w, "Regions API", "FAIL", "skipped")
	} else {
		doctorPrint(w, "Credentials", "OK", "")
		doctorPrint(w, "STS Identity", "OK", "Account: "+result.AWS.AccountID)
		if result.AWS.RegionsOK {
			doctorPrint(w, "Regions API", "OK", "")
		} else {
			doctorPrint(w, "Regions API", "FAIL", result.AWS.Error)
		}
	}

	fmt.Fprintln(w, "\nDynamoDB:")
	if !result.AWS.RegionsOK {
		doctorPrint(w, "ListTables", "FAIL", "skipped")
	} else if result.DynamoDB.Reachable {
		doctorPrint(w, "ListTables", "OK", result.DynamoDB.Region)
	} else {
		doctorPrint(w, "ListTables", "FAIL", result.DynamoDB.Error)
	}

	fmt.Fprintln(w, "\nConfig:")
	if !result.Config.Present {
		doctorPrint(w, "ddbaudit.yaml present", "Not found (optional)", "")
	} else {
		doctorPrint(w, "ddbaudit.yaml present", "YES", "")
		if result.Config.Valid {
			doctorPrint(w, "Config valid", "OK", "")
		} else {
			for _, e := range result.Config.Errors {
				doctorPrint(w, "Config valid", "FAIL", e)
			}
		}
	}
}

// doctorPrint writes a single diagnostic check line to w.
// When detail is non-empty it is appended in parentheses.
func doctorPrint(w io.Writer, label, status, detail string) {
	if detail != "" {
		fmt.Fprintf(w, "  %s: %s (%s)\n", label, status, detail)
	} else {
		fmt.Fprintf(w, "  %s: %s\n", label, status)
	}
}
