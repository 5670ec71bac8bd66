package upload

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dany2315/BailNotarie-sub000/internal/apperr"
)

type fakeIssuer struct {
	issued int
	failOn int // fail the nth issue call (1-based), 0 = never
}

func (f *fakeIssuer) IssueCredential(_ context.Context, fileName, _ string) (Credential, error) {
	f.issued++
	if f.failOn != 0 && f.issued == f.failOn {
		return Credential{}, errors.New("issuer down")
	}
	return Credential{
		TransferURL: "https://store.example/" + fileName,
		StorageKey:  "keys/" + fileName,
		PublicRef:   "https://cdn.example/" + fileName,
	}, nil
}

type fakeStore struct {
	transfers []string
	failOn    string             // file key that fails
	fractions map[string]float64 // storage key -> fraction to report
}

func (f *fakeStore) Transfer(_ context.Context, cred Credential, _ string, data []byte, progress func(float64)) error {
	if cred.StorageKey == f.failOn {
		return errors.New("connection reset")
	}
	if frac, ok := f.fractions[cred.StorageKey]; ok {
		if progress != nil {
			progress(frac)
		}
		return fmt.Errorf("stalled") // partial-progress files never complete in these tests
	}
	if progress != nil {
		progress(1)
	}
	f.transfers = append(f.transfers, cred.StorageKey)
	return nil
}

func newTestPipeline(issuer Issuer, store Store) *Pipeline {
	return NewPipeline(issuer, store, 10<<20, 320, zap.NewNop().Sugar())
}

func TestOversizedFileRejectsWholeBatch(t *testing.T) {
	store := &fakeStore{}
	p := NewPipeline(&fakeIssuer{}, store, 4, 320, zap.NewNop().Sugar())

	_, err := p.Run(context.Background(), []File{
		{Name: "ok.pdf", ContentType: "application/pdf", Data: []byte("ab")},
		{Name: "big.pdf", ContentType: "application/pdf", Data: []byte("abcdef")},
	}, nil)

	require.ErrorIs(t, err, apperr.ErrValidation)
	var batchErr *apperr.BatchSizeError
	require.ErrorAs(t, err, &batchErr)
	require.Equal(t, []string{"big.pdf"}, batchErr.Oversized)
	require.Empty(t, store.transfers, "no partial batch submission")
}

func TestMidBatchFailureLeavesNoManifest(t *testing.T) {
	store := &fakeStore{failOn: "keys/two.pdf"}
	p := newTestPipeline(&fakeIssuer{}, store)

	files := []File{
		{Name: "one.pdf", ContentType: "application/pdf", Data: []byte("1")},
		{Name: "two.pdf", ContentType: "application/pdf", Data: []byte("2")},
		{Name: "three.pdf", ContentType: "application/pdf", Data: []byte("3")},
	}
	manifest, err := p.Run(context.Background(), files, nil)
	require.ErrorIs(t, err, apperr.ErrTransfer)
	require.Nil(t, manifest)
	require.Equal(t, []string{"keys/one.pdf"}, store.transfers)
}

func TestAggregateProgressAcrossBatch(t *testing.T) {
	// two files; the first reports 50%, the second has not started:
	// aggregate must read 25%
	store := &fakeStore{fractions: map[string]float64{"keys/a.bin": 0.5}}
	p := newTestPipeline(&fakeIssuer{}, store)

	var seen []float64
	_, err := p.Run(context.Background(), []File{
		{Name: "a.bin", ContentType: "application/octet-stream", Data: make([]byte, 2<<20)},
		{Name: "b.bin", ContentType: "application/octet-stream", Data: make([]byte, 3<<20)},
	}, func(pct float64) { seen = append(seen, pct) })

	require.Error(t, err)
	require.Contains(t, seen, 25.0)
}

func TestSuccessfulBatchReportsCompletion(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(&fakeIssuer{}, store)

	var last float64
	manifest, err := p.Run(context.Background(), []File{
		{Name: "a.pdf", ContentType: "application/pdf", Data: []byte("a")},
		{Name: "b.pdf", ContentType: "application/pdf", Data: []byte("bb")},
	}, func(pct float64) { last = pct })

	require.NoError(t, err)
	require.Len(t, manifest, 2)
	require.Equal(t, 100.0, last)
	require.Equal(t, "keys/a.pdf", manifest[0].StorageKey)
	require.Equal(t, "a.pdf", manifest[0].Label)
	require.Equal(t, int64(1), manifest[0].Size)
}

func TestImageAttachmentGetsPreviewRendition(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(&fakeIssuer{}, store)

	manifest, err := p.Run(context.Background(), []File{
		{Name: "photo.png", ContentType: "image/png", Data: encodePNG(t)},
	}, nil)

	require.NoError(t, err)
	require.Len(t, manifest, 1)
	require.Equal(t, "keys/photo.png_preview.jpg", manifest[0].PreviewKey)
	require.Equal(t, []string{"keys/photo.png", "keys/photo.png_preview.jpg"}, store.transfers)
}

func TestBrokenImageStillUploadsWithoutPreview(t *testing.T) {
	store := &fakeStore{}
	p := newTestPipeline(&fakeIssuer{}, store)

	manifest, err := p.Run(context.Background(), []File{
		{Name: "corrupt.png", ContentType: "image/png", Data: []byte("not an image")},
	}, nil)

	require.NoError(t, err, "preview trouble must not fail the batch")
	require.Len(t, manifest, 1)
	require.Empty(t, manifest[0].PreviewKey)
}

func encodePNG(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for x := 0; x < 640; x += 8 {
		for y := 0; y < 480; y++ {
			img.Set(x, y, color.RGBA{R: 200, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}
