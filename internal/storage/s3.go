// Package storage holds the object-store side of the upload path: issuing
// presigned PUT credentials and transferring bytes with fractional
// progress.
package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

// ProgressFunc receives the transfer fraction in [0,1].
type ProgressFunc func(fraction float64)

type S3Store struct {
	client   *s3.Client
	uploader *manager.Uploader
	presign  *s3.PresignClient
	bucket   string
	region   string
}

func NewS3Store(ctx context.Context, region, bucket string) (*S3Store, error) {
	cfg, err := awscfg.LoadDefaultConfig(ctx, awscfg.WithRegion(region))
	if err != nil {
		return nil, err
	}
	client := s3.NewFromConfig(cfg)
	return &S3Store{
		client:   client,
		uploader: manager.NewUploader(client),
		presign:  s3.NewPresignClient(client),
		bucket:   bucket,
		region:   region,
	}, nil
}

// PresignPut issues a one-shot transfer URL for a fresh storage key, for
// deployments where this process plays the credential issuer.
func (s *S3Store) PresignPut(ctx context.Context, conversationID, fileName, contentType string, ttl time.Duration) (transferURL, storageKey, publicRef string, err error) {
	storageKey = fmt.Sprintf("%s/%s_%s", conversationID, uuid.NewString(), fileName)
	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(storageKey),
		ContentType: aws.String(contentType),
	}, s3.WithPresignExpires(ttl))
	if err != nil {
		return "", "", "", err
	}
	publicRef = fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.bucket, s.region, storageKey)
	return req.URL, storageKey, publicRef, nil
}

// Transfer puts the payload at key through the manager uploader, wrapping
// the reader so progress reflects consumed bytes.
func (s *S3Store) Transfer(ctx context.Context, storageKey, contentType string, data []byte, progress ProgressFunc) error {
	body := newProgressReader(bytes.NewReader(data), int64(len(data)), progress)
	_, err := s.uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(storageKey),
		Body:        body,
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return err
	}
	if progress != nil {
		progress(1)
	}
	return nil
}

// HTTPStore transfers to a presigned URL issued by the remote data
// service, the path taken when this client holds no cloud credentials.
type HTTPStore struct {
	http *http.Client
}

func NewHTTPStore(timeout time.Duration) *HTTPStore {
	return &HTTPStore{http: &http.Client{Timeout: timeout}}
}

func (h *HTTPStore) Transfer(ctx context.Context, transferURL, contentType string, data []byte, progress ProgressFunc) error {
	body := newProgressReader(bytes.NewReader(data), int64(len(data)), progress)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, transferURL, body)
	if err != nil {
		return err
	}
	req.ContentLength = int64(len(data))
	req.Header.Set("Content-Type", contentType)

	resp, err := h.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode >= 300 {
		return fmt.Errorf("transfer rejected: status %d", resp.StatusCode)
	}
	if progress != nil {
		progress(1)
	}
	return nil
}

type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	progress ProgressFunc
}

func newProgressReader(r io.Reader, total int64, progress ProgressFunc) *progressReader {
	return &progressReader{r: r, total: total, progress: progress}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.progress != nil && p.total > 0 {
		p.read += int64(n)
		frac := float64(p.read) / float64(p.total)
		if frac > 1 {
			frac = 1
		}
		p.progress(frac)
	}
	return n, err
}
