// Package upload sequences credential acquisition and transfer for the
// files attached to one outgoing message or request response. The batch is
// all-or-nothing: nothing partial ever reaches the message creation call.
package upload

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dany2315/BailNotarie-sub000/internal/apperr"
	"github.com/dany2315/BailNotarie-sub000/internal/models"
)

// File is one attachment queued for transfer.
type File struct {
	Name        string
	ContentType string
	Data        []byte
}

// Credential grants one direct transfer to object storage.
type Credential struct {
	TransferURL string
	StorageKey  string
	PublicRef   string
}

// Issuer obtains transfer credentials, one per file.
type Issuer interface {
	IssueCredential(ctx context.Context, fileName, contentType string) (Credential, error)
}

// Store performs the byte transfer, reporting fractional progress.
type Store interface {
	Transfer(ctx context.Context, cred Credential, contentType string, data []byte, progress func(float64)) error
}

// Pipeline validates, transfers and assembles the manifest for a batch.
type Pipeline struct {
	issuer       Issuer
	store        Store
	maxFileSize  int64
	previewWidth int
	log          *zap.SugaredLogger
}

func NewPipeline(issuer Issuer, store Store, maxFileSize int64, previewWidth int, log *zap.SugaredLogger) *Pipeline {
	return &Pipeline{
		issuer:       issuer,
		store:        store,
		maxFileSize:  maxFileSize,
		previewWidth: previewWidth,
		log:          log,
	}
}

// Run transfers the batch in order. Sizes are validated up front and an
// oversized file rejects the whole batch. Aggregate progress across n
// files is (completed * 100/n) + (current fraction * 100/n). A failure
// mid-batch aborts with nothing handed over; the caller rolls back its
// optimistic entry.
func (p *Pipeline) Run(ctx context.Context, files []File, onProgress func(percent float64)) ([]models.Attachment, error) {
	if len(files) == 0 {
		return nil, nil
	}
	if err := p.validate(files); err != nil {
		return nil, err
	}

	share := 100.0 / float64(len(files))
	attachments := make([]models.Attachment, 0, len(files))
	for i, f := range files {
		cred, err := p.issuer.IssueCredential(ctx, f.Name, f.ContentType)
		if err != nil {
			return nil, fmt.Errorf("%w: credential for %s: %v", apperr.ErrTransfer, f.Name, err)
		}

		completed := float64(i) * share
		report := func(frac float64) {
			if onProgress != nil {
				onProgress(completed + frac*share)
			}
		}
		report(0)
		if err := p.store.Transfer(ctx, cred, f.ContentType, f.Data, report); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", apperr.ErrTransfer, f.Name, err)
		}

		att := models.Attachment{
			ID:         uuid.NewString(),
			Label:      f.Name,
			StorageKey: cred.StorageKey,
			MimeType:   f.ContentType,
			Size:       int64(len(f.Data)),
		}
		if strings.HasPrefix(f.ContentType, "image/") {
			att.PreviewKey = p.uploadPreview(ctx, f)
		}
		attachments = append(attachments, att)
	}
	if onProgress != nil {
		onProgress(100)
	}
	return attachments, nil
}

func (p *Pipeline) validate(files []File) error {
	var oversized []string
	for _, f := range files {
		if int64(len(f.Data)) > p.maxFileSize {
			oversized = append(oversized, f.Name)
		}
	}
	if len(oversized) > 0 {
		return &apperr.BatchSizeError{Oversized: oversized, Limit: p.maxFileSize}
	}
	return nil
}

// uploadPreview renders and transfers a reduced JPEG for image
// attachments. Preview trouble never fails the batch.
func (p *Pipeline) uploadPreview(ctx context.Context, f File) string {
	rendition, err := p.renderPreview(f.Data)
	if err != nil {
		p.log.Debugw("preview render skipped", "file", f.Name, "err", err)
		return ""
	}
	name := f.Name + "_preview.jpg"
	cred, err := p.issuer.IssueCredential(ctx, name, "image/jpeg")
	if err != nil {
		p.log.Warnw("preview credential failed", "file", f.Name, "err", err)
		return ""
	}
	if err := p.store.Transfer(ctx, cred, "image/jpeg", rendition, nil); err != nil {
		p.log.Warnw("preview transfer failed", "file", f.Name, "err", err)
		return ""
	}
	return cred.StorageKey
}

func (p *Pipeline) renderPreview(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	small := imaging.Resize(img, p.previewWidth, 0, imaging.Lanczos)
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, small, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
