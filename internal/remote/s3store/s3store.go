// Package s3store is the object-storage remote backend: one JSON object per
// sync identity in an S3-compatible bucket. Object storage has no change
// feed, so it is paired with a remote.Publisher through remote.Notifying.
package s3store

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/pkordes/missionmap/internal/domain"
	"github.com/pkordes/missionmap/internal/remote"
)

// Options configures the bucket connection.
type Options struct {
	Endpoint  string
	Bucket    string
	AccessKey string
	SecretKey string
	UseSSL    bool
	// Prefix is prepended to every object name, e.g. "documents/".
	Prefix string
}

// Store implements remote.Store on a bucket.
type Store struct {
	client *minio.Client
	bucket string
	prefix string
}

var _ remote.Store = (*Store)(nil)

// New builds a client. It does not contact the server; call EnsureBucket for
// that.
func New(opts Options) (*Store, error) {
	client, err := minio.New(opts.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(opts.AccessKey, opts.SecretKey, ""),
		Secure: opts.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("s3store.New: %w", err)
	}
	return &Store{client: client, bucket: opts.Bucket, prefix: opts.Prefix}, nil
}

// EnsureBucket creates the bucket when it does not exist yet.
func (s *Store) EnsureBucket(ctx context.Context) error {
	ok, err := s.client.BucketExists(ctx, s.bucket)
	if err != nil {
		return fmt.Errorf("s3store.Store.EnsureBucket: %w", classify(err))
	}
	if ok {
		return nil
	}
	if err := s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}); err != nil {
		return fmt.Errorf("s3store.Store.EnsureBucket: %w", classify(err))
	}
	return nil
}

func (s *Store) objectName(syncID string) string {
	return s.prefix + syncID + ".json"
}

func (s *Store) Upsert(ctx context.Context, syncID string, env domain.Envelope) error {
	if env.UpdatedAt.IsZero() {
		env.UpdatedAt = time.Now().UTC()
	}
	b, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("s3store.Store.Upsert: %w", err)
	}
	_, err = s.client.PutObject(ctx, s.bucket, s.objectName(syncID), bytes.NewReader(b), int64(len(b)),
		minio.PutObjectOptions{ContentType: "application/json"})
	if err != nil {
		return fmt.Errorf("s3store.Store.Upsert: %w", classify(err))
	}
	return nil
}

func (s *Store) Fetch(ctx context.Context, syncID string) (domain.Envelope, error) {
	obj, err := s.client.GetObject(ctx, s.bucket, s.objectName(syncID), minio.GetObjectOptions{})
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("s3store.Store.Fetch: %w", classify(err))
	}
	defer obj.Close()

	// GetObject is lazy; a missing key only shows up on the first read.
	b, err := io.ReadAll(obj)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("s3store.Store.Fetch: %w", classify(err))
	}
	env, err := domain.DecodeEnvelope(b)
	if err != nil {
		return domain.Envelope{}, fmt.Errorf("s3store.Store.Fetch: %w", err)
	}
	return env, nil
}

// classify maps S3 error codes onto the remote error taxonomy.
func classify(err error) error {
	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey":
		return domain.ErrNotFound
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch":
		return fmt.Errorf("%w: %w", remote.ErrAuth, err)
	case "SlowDown", "InternalError", "ServiceUnavailable", "RequestTimeout":
		return fmt.Errorf("%w: %w", remote.ErrNetwork, err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("%w: %w", remote.ErrNetwork, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", remote.ErrNetwork, err)
	}
	return err
}
