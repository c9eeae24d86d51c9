// utils/r2.go
package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"tournament-report-bot/config"
	"tournament-report-bot/services"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gosimple/slug"
	"go.uber.org/zap"
)

// ObjectPutter is the subset of the S3 client the archive uses.
type ObjectPutter interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// R2Archive stores finished reports as JSON objects in an R2 bucket.
type R2Archive struct {
	client     ObjectPutter
	bucket     string
	cdnBaseURL string
	logger     *zap.Logger
}

// NewR2Archive connects to the Cloudflare R2 endpoint of the configured account.
func NewR2Archive(ctx context.Context, cfg config.R2Config, logger *zap.Logger) (*R2Archive, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion("auto"),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(
			cfg.AccessKeyID, cfg.AccessKeySecret, "",
		)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load R2 config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.AccountID))
	})
	return NewR2ArchiveWithClient(client, cfg.Bucket, cfg.CDNBaseURL, logger), nil
}

func NewR2ArchiveWithClient(client ObjectPutter, bucket, cdnBaseURL string, logger *zap.Logger) *R2Archive {
	return &R2Archive{
		client:     client,
		bucket:     bucket,
		cdnBaseURL: strings.TrimRight(cdnBaseURL, "/"),
		logger:     logger.Named("r2"),
	}
}

// ArchiveKey is the object key of a match report, e.g. "reports/spring-cup/<match id>.json".
func ArchiveKey(tournamentName, matchID string) string {
	name := slug.Make(tournamentName)
	if name == "" {
		name = "tournament"
	}
	return fmt.Sprintf("reports/%s/%s.json", name, matchID)
}

// Publish uploads the report and returns its public URL.
func (a *R2Archive) Publish(ctx context.Context, target services.ReportTarget, report services.Report) (string, error) {
	body, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	key := ArchiveKey(target.TournamentName, report.MatchID)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload to R2: %w", err)
	}

	url := fmt.Sprintf("%s/%s", a.cdnBaseURL, key)
	a.logger.Info("[R2] report archived", zap.String("match_id", report.MatchID), zap.String("url", url))
	return url, nil
}
