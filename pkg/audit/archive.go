package audit

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"path"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/platinummonkey/cmsadmin/pkg/observability"
)

// S3Config configures the archive destination
type S3Config struct {
	Bucket       string `yaml:"bucket"`
	Prefix       string `yaml:"prefix"`
	Region       string `yaml:"region"`
	Endpoint     string `yaml:"endpoint"`
	AccessKey    string `yaml:"access_key"`
	SecretKey    string `yaml:"secret_key"`
	UsePathStyle bool   `yaml:"use_path_style"`
}

// ObjectPutter is the subset of *s3.Client used by the archiver
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

var _ ObjectPutter = (*s3.Client)(nil)

// NewS3Client builds an S3 client from cfg. Static credentials are used when
// both keys are set, otherwise the default AWS credential chain.
func NewS3Client(ctx context.Context, cfg S3Config) (*s3.Client, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" && cfg.SecretKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		o.UsePathStyle = cfg.UsePathStyle
	}), nil
}

// Archiver uploads audit exports to S3. It copies entries and never deletes them.
type Archiver struct {
	client ObjectPutter
	bucket string
	prefix string
	now    func() time.Time
}

// NewArchiver creates a new archiver writing under prefix in bucket
func NewArchiver(client ObjectPutter, bucket, prefix string) *Archiver {
	return &Archiver{client: client, bucket: bucket, prefix: prefix, now: time.Now}
}

// ArchiveResult describes an uploaded export
type ArchiveResult struct {
	Bucket   string
	Key      string
	Entries  int
	Bytes    int
	Checksum string
}

// Archive exports entries in format and uploads them as a single object
func (a *Archiver) Archive(ctx context.Context, entries []Entry, format ExportFormat) (*ArchiveResult, error) {
	key := a.objectKey(format)

	ctx, span := observability.Tracer().Start(ctx, "audit.Archive",
		trace.WithAttributes(
			attribute.String("s3.bucket", a.bucket),
			attribute.String("s3.key", key),
			attribute.Int("audit.entries", len(entries)),
		),
	)
	defer span.End()

	var buf bytes.Buffer
	if err := Export(&buf, entries, format); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to export entries")
		return nil, fmt.Errorf("failed to export audit entries: %w", err)
	}

	hash := sha256.Sum256(buf.Bytes())
	checksum := hex.EncodeToString(hash[:])
	size := buf.Len()

	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String(format.ContentType()),
		Metadata: map[string]string{
			"checksum-sha256": checksum,
			"entries":         fmt.Sprintf("%d", len(entries)),
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to upload to s3")
		return nil, fmt.Errorf("failed to upload audit archive: %w", err)
	}

	span.SetStatus(codes.Ok, "archive uploaded")
	return &ArchiveResult{
		Bucket:   a.bucket,
		Key:      key,
		Entries:  len(entries),
		Bytes:    size,
		Checksum: checksum,
	}, nil
}

// objectKey lays archives out as <prefix>/YYYY/MM/DD/admin-logs-<unix>.<ext>
func (a *Archiver) objectKey(format ExportFormat) string {
	now := a.now().UTC()
	name := fmt.Sprintf("admin-logs-%d.%s", now.Unix(), format.Extension())
	return path.Join(a.prefix, now.Format("2006/01/02"), name)
}
