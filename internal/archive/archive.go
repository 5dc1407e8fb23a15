// Package archive mirrors expunged message bytes to an S3-compatible
// bucket as a best-effort cold-storage backup, so an operator can recover
// a message after EXPUNGE or CLOSE has removed its row (spec.md §4.C EXPUNGE;
// SPEC_FULL §3 domain stack). It never changes EXPUNGE's synchronous
// return value or the seqnum-compaction invariant: EXPUNGE and CLOSE upload
// each \Deleted message on the command path, before the store's delete
// transaction runs, and a failure here is logged, not surfaced to the
// client. MOVE removes its source rows without archiving them.
package archive

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"kakimail/internal/conf"
)

// Archiver uploads expunged message bytes to S3. A nil *Archiver (returned
// by New when archiving is disabled in config) is safe to call Put on; it
// is simply a no-op.
type Archiver struct {
	client *s3.Client
	bucket string
}

// New builds an Archiver from the configured archive settings, or returns
// (nil, nil) if archiving is disabled, so callers can hold a possibly-nil
// *Archiver without a separate enabled flag.
func New(ctx context.Context, cfg conf.ArchiveConfig) (*Archiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	opts := []func(*awsconfig.LoadOptions) error{}
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &Archiver{client: client, bucket: cfg.Bucket}, nil
}

// Put uploads data under "<uid>.eml"; on failure it logs the error and
// returns, since this is a best-effort side channel, not part of EXPUNGE's
// contract.
func (a *Archiver) Put(ctx context.Context, uid int64, data string) {
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	key := fmt.Sprintf("%d.eml", uid)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(a.bucket),
		Key:    aws.String(key),
		Body:   strings.NewReader(data),
	})
	if err != nil {
		log.Printf("archive: failed to mirror uid %d: %v", uid, err)
	}
}
