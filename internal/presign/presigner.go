package presign

import (
	"context"
	"fmt"
	"time"

	v1 "github.com/jordanharrington/visualgate/api/v1"
)

type EncryptionMode string

const (
	EncryptionNone EncryptionMode = ""
	// EncryptionS3 is SSE-S3 with provider-managed keys.
	EncryptionS3 EncryptionMode = "sse-s3"
	// EncryptionKMS is SSE-KMS under KMSKeyID.
	EncryptionKMS EncryptionMode = "sse-kms"
)

type Encryption struct {
	Mode     EncryptionMode
	KMSKeyID string
}

type PutOptions struct {
	ContentType string
	Metadata    map[string]string
	TTL         time.Duration
	Encryption  Encryption
}

// PutOption mutates a PutOptions.
type PutOption func(*PutOptions)

// NewPutOptions applies options over sensible defaults.
func NewPutOptions(opts ...PutOption) PutOptions {
	po := PutOptions{
		Metadata: make(map[string]string),
		TTL:      5 * time.Minute,
	}

	for _, opt := range opts {
		opt(&po)
	}
	return po
}

// WithContentType sets ContentType (empty means provider default).
func WithContentType(ct string) PutOption {
	return func(o *PutOptions) { o.ContentType = ct }
}

// WithMetadata replaces the metadata map (nil = none).
func WithMetadata(md map[string]string) PutOption {
	return func(o *PutOptions) { o.Metadata = md }
}

// WithTTL sets the presign TTL.
func WithTTL(d time.Duration) PutOption {
	return func(o *PutOptions) { o.TTL = d }
}

// WithEncryption sets server-side encryption for the upload.
func WithEncryption(enc Encryption) PutOption {
	return func(o *PutOptions) { o.Encryption = enc }
}

type Presigner interface {
	PresignPut(ctx context.Context, bucket, key string, opts PutOptions) (*v1.PresignedUrl, error)
}

// Archive presigns uploads of generated media into one bucket, keyed
// <prefix><task id>/<filename>.
type Archive struct {
	presigner Presigner
	bucket    string
	prefix    string
	ttl       time.Duration
	enc       Encryption
}

func NewArchive(p Presigner, bucket, prefix string, ttl time.Duration, kmsKeyID string) *Archive {
	enc := Encryption{Mode: EncryptionS3}
	if kmsKeyID != "" {
		enc = Encryption{Mode: EncryptionKMS, KMSKeyID: kmsKeyID}
	}
	return &Archive{presigner: p, bucket: bucket, prefix: prefix, ttl: ttl, enc: enc}
}

// Key is the object key media for taskID is archived under.
func (a *Archive) Key(taskID, filename string) string {
	return a.prefix + taskID + "/" + filename
}

// Presign returns a presigned PUT for the archived copy of filename. The
// task id is recorded as object metadata.
func (a *Archive) Presign(ctx context.Context, taskID, filename, contentType string) (*v1.PresignedUrl, error) {
	opts := NewPutOptions(
		WithContentType(contentType),
		WithMetadata(map[string]string{"task-id": taskID}),
		WithTTL(a.ttl),
		WithEncryption(a.enc),
	)
	key := a.Key(taskID, filename)
	url, err := a.presigner.PresignPut(ctx, a.bucket, key, opts)
	if err != nil {
		return nil, fmt.Errorf("presign %s/%s: %w", a.bucket, key, err)
	}
	return url, nil
}
