// Package awsprovision creates the AWS resources `ftl config --aws` wires a
// project to: an S3 bucket for snapshots, a CloudWatch log group, and a
// Bedrock guardrail that blocks credential and PII leakage in an agent's
// diff before it reaches a human reviewer.
package awsprovision

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrock"
	bedrocktypes "github.com/aws/aws-sdk-go-v2/service/bedrock/types"
	"github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs"
	cwltypes "github.com/aws/aws-sdk-go-v2/service/cloudwatchlogs/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
)

// Identity is the caller account and default region discovered from the
// ambient AWS credentials.
type Identity struct {
	AccountID string
	Region    string
}

// DiscoverIdentity resolves the caller's account id via STS and the
// configured region, defaulting to us-east-1 if none is set.
func DiscoverIdentity(ctx context.Context) (Identity, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx)
	if err != nil {
		return Identity{}, fmt.Errorf("awsprovision: load AWS config: %w", err)
	}

	region := awsCfg.Region
	if region == "" {
		region = "us-east-1"
	}

	identity, err := sts.NewFromConfig(awsCfg).GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return Identity{}, fmt.Errorf("awsprovision: sts get-caller-identity: %w", err)
	}

	return Identity{AccountID: aws.ToString(identity.Account), Region: region}, nil
}

// isAPIError reports whether err is a smithy API error with the given code,
// used to tell "already exists" apart from a real provisioning failure.
func isAPIError(err error, code string) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == code
}

// EnsureBucket creates the snapshot bucket if it doesn't already exist,
// tolerating a bucket this account already owns.
func EnsureBucket(ctx context.Context, region, bucket string) error {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return fmt.Errorf("awsprovision: load AWS config: %w", err)
	}
	client := s3.NewFromConfig(awsCfg)

	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if region != "us-east-1" {
		input.CreateBucketConfiguration = &s3types.CreateBucketConfiguration{
			LocationConstraint: s3types.BucketLocationConstraint(region),
		}
	}

	_, err = client.CreateBucket(ctx, input)
	if err == nil || isAPIError(err, "BucketAlreadyOwnedByYou") {
		return nil
	}
	return fmt.Errorf("awsprovision: create bucket %s: %w", bucket, err)
}

// EnsureLogGroup creates the session's CloudWatch log group if it doesn't
// already exist.
func EnsureLogGroup(ctx context.Context, region, logGroup string) error {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return fmt.Errorf("awsprovision: load AWS config: %w", err)
	}
	client := cloudwatchlogs.NewFromConfig(awsCfg)

	_, err = client.CreateLogGroup(ctx, &cloudwatchlogs.CreateLogGroupInput{
		LogGroupName: aws.String(logGroup),
	})
	var exists *cwltypes.ResourceAlreadyExistsException
	if err == nil || errors.As(err, &exists) {
		return nil
	}
	return fmt.Errorf("awsprovision: create log group %s: %w", logGroup, err)
}

// piiEntities are the entity types the guardrail blocks outright. AWS
// access keys and passwords overlap with what the diff linter scans for;
// usernames, emails and card numbers are checked only here.
var piiEntities = []bedrocktypes.PiiEntityType{
	bedrocktypes.PiiEntityTypeAwsAccessKey,
	bedrocktypes.PiiEntityTypePassword,
	bedrocktypes.PiiEntityTypeUsername,
	bedrocktypes.PiiEntityTypeEmail,
	bedrocktypes.PiiEntityTypeCreditDebitCardNumber,
}

// Guardrail identifies a created or pre-existing Bedrock guardrail.
type Guardrail struct {
	ID      string
	Version string
}

// EnsureGuardrail creates a Bedrock guardrail named name, or finds the
// existing one by that name if a guardrail with the name already exists in
// this account and region.
func EnsureGuardrail(ctx context.Context, region, name string) (Guardrail, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
	if err != nil {
		return Guardrail{}, fmt.Errorf("awsprovision: load AWS config: %w", err)
	}
	client := bedrock.NewFromConfig(awsCfg)

	piiConfig := make([]bedrocktypes.PiiEntityConfig, len(piiEntities))
	for i, t := range piiEntities {
		piiConfig[i] = bedrocktypes.PiiEntityConfig{Type: t, Action: bedrocktypes.GuardrailSensitiveInformationActionBlock}
	}

	created, err := client.CreateGuardrail(ctx, &bedrock.CreateGuardrailInput{
		Name:        aws.String(name),
		Description: aws.String(fmt.Sprintf("FTL credential and content safety guardrail for %s", name)),
		SensitiveInformationPolicyConfig: &bedrocktypes.GuardrailSensitiveInformationPolicyConfig{
			PiiEntitiesConfig: piiConfig,
		},
		BlockedInputMessaging:   aws.String("Input blocked by FTL guardrail."),
		BlockedOutputsMessaging: aws.String("Output blocked by FTL guardrail."),
	})
	if err == nil {
		versioned, err := client.CreateGuardrailVersion(ctx, &bedrock.CreateGuardrailVersionInput{
			GuardrailIdentifier: created.GuardrailId,
		})
		if err != nil {
			return Guardrail{}, fmt.Errorf("awsprovision: create guardrail version: %w", err)
		}
		return Guardrail{ID: aws.ToString(created.GuardrailId), Version: aws.ToString(versioned.Version)}, nil
	}
	if !isAPIError(err, "ConflictException") {
		return Guardrail{}, fmt.Errorf("awsprovision: create guardrail %s: %w", name, err)
	}

	return findGuardrailByName(ctx, client, name)
}

func findGuardrailByName(ctx context.Context, client *bedrock.Client, name string) (Guardrail, error) {
	paginator := bedrock.NewListGuardrailsPaginator(client, &bedrock.ListGuardrailsInput{})
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return Guardrail{}, fmt.Errorf("awsprovision: list guardrails: %w", err)
		}
		for _, gr := range page.GuardrailSummaries {
			if aws.ToString(gr.Name) == name {
				version := "1"
				if gr.Version != nil {
					version = aws.ToString(gr.Version)
				}
				return Guardrail{ID: aws.ToString(gr.Id), Version: version}, nil
			}
		}
	}
	return Guardrail{}, fmt.Errorf("awsprovision: guardrail %s reported a naming conflict but no matching guardrail was found", name)
}
