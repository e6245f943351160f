package emitter

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/chainforensics/sigharvest/logger"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/pkg/errors"
)

// S3Config configures an S3 publication target.
type S3Config struct {
	Bucket     string
	Prefix     string
	MaxRetries int
	RetryDelay int
}

// S3Sink buffers appended records in memory and, on Complete, uploads the
// finished batch to S3 under the same height-range name a Filesystem sink
// would rename its temp file to. Retries PutObject the way the teacher's
// S3Storage.Write does.
type S3Sink struct {
	config  S3Config
	session *session.Session
	buf     bytes.Buffer
}

// NewS3Sink creates an S3Sink from the given config and AWS session.
func NewS3Sink(config S3Config, sess *session.Session) *S3Sink {
	return &S3Sink{config: config, session: sess}
}

// Append buffers the record's line; nothing is uploaded until Complete.
func (s *S3Sink) Append(ctx context.Context, record Record) error {
	if _, err := s.buf.WriteString(record.Line()); err != nil {
		return errors.Wrap(err, "buffer record")
	}
	return nil
}

// Flush is a no-op; S3Sink has nothing to push early, there being no local
// file to sync.
func (s *S3Sink) Flush(ctx context.Context) error {
	return nil
}

// Complete uploads the buffered batch under its final key, retrying
// MaxRetries times with RetryDelay milliseconds between attempts.
func (s *S3Sink) Complete(ctx context.Context, startHeight, endHeight uint64) error {
	key := fmt.Sprintf("%ssignatures-%d-%d.csv", s.config.Prefix, startHeight, endHeight)

	svc := s3.New(s.session)
	input := &s3.PutObjectInput{
		Bucket: aws.String(s.config.Bucket),
		Key:    aws.String(key),
		Body:   bytes.NewReader(s.buf.Bytes()),
	}

	var err error
	for i := 0; i <= s.config.MaxRetries; i++ {
		if i != 0 {
			time.Sleep(time.Duration(s.config.RetryDelay) * time.Millisecond)
		}

		if _, err = svc.PutObject(input); err == nil {
			logger.Info(ctx, "Published s3://%s/%s", s.config.Bucket, key)
			return nil
		}

		logger.Error(ctx, "S3 put failed for %s : %s", key, err)
	}

	return errors.Wrapf(err, "put %s", key)
}
