package attachment

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"reimburse/internal/common"
)

func pdfBody(size int) []byte {
	head := []byte("%PDF-1.4\n")
	if size < len(head) {
		size = len(head)
	}
	b := bytes.Repeat([]byte("x"), size)
	copy(b, head)
	return b
}

func pdfUpload(name string, size int) Upload {
	body := pdfBody(size)
	return Upload{OriginalName: name, DeclaredType: "application/pdf", Size: int64(len(body)), Content: bytes.NewReader(body)}
}

func newTestIntake(t *testing.T, maxBytes int64) (*Intake, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "uploads")
	in, err := NewIntake(Options{Dir: dir, PublicPrefix: "uploads", MaxBytes: maxBytes, MaxFiles: 3})
	require.NoError(t, err)
	return in, dir
}

func storedFiles(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestAcceptStoresPDF(t *testing.T) {
	in, dir := newTestIntake(t, 1024)

	ref, err := in.Accept(pdfUpload("Taxi Receipt.PDF", 100))
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(ref.Path, "uploads/"))
	assert.True(t, strings.HasSuffix(ref.Path, "-taxi-receipt.pdf"), ref.Path)
	assert.Equal(t, "Taxi Receipt.PDF", ref.OriginalName)
	assert.EqualValues(t, 100, ref.SizeBytes)

	data, err := os.ReadFile(filepath.Join(dir, filepath.Base(ref.Path)))
	require.NoError(t, err)
	assert.Equal(t, pdfBody(100), data)
}

func TestAcceptAllowsExactLimit(t *testing.T) {
	in, _ := newTestIntake(t, 256)
	ref, err := in.Accept(pdfUpload("a.pdf", 256))
	require.NoError(t, err)
	assert.EqualValues(t, 256, ref.SizeBytes)
}

func TestAcceptRejections(t *testing.T) {
	tests := []struct {
		name    string
		upload  Upload
		wantErr error
	}{
		{
			name:    "png declared",
			upload:  Upload{OriginalName: "a.png", DeclaredType: "image/png", Content: bytes.NewReader(pdfBody(10))},
			wantErr: common.ErrUnsupportedMediaType,
		},
		{
			name:    "pdf declared but not a pdf",
			upload:  Upload{OriginalName: "a.pdf", DeclaredType: "application/pdf", Content: strings.NewReader("hello world")},
			wantErr: common.ErrUnsupportedMediaType,
		},
		{
			name:    "one byte over the limit",
			upload:  Upload{OriginalName: "big.pdf", DeclaredType: "application/pdf", Size: -1, Content: bytes.NewReader(pdfBody(257))},
			wantErr: common.ErrPayloadTooLarge,
		},
		{
			name:    "declared size over the limit",
			upload:  Upload{OriginalName: "big.pdf", DeclaredType: "application/pdf", Size: 1 << 20, Content: bytes.NewReader(pdfBody(10))},
			wantErr: common.ErrPayloadTooLarge,
		},
		{
			name:    "missing name",
			upload:  Upload{DeclaredType: "application/pdf", Content: bytes.NewReader(pdfBody(10))},
			wantErr: common.ErrInvalidInput,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, dir := newTestIntake(t, 256)
			_, err := in.Accept(tt.upload)
			assert.ErrorIs(t, err, tt.wantErr)
			assert.Empty(t, storedFiles(t, dir), "nothing may be left behind")
		})
	}
}

func TestAcceptAcceptsMediaTypeParameters(t *testing.T) {
	in, _ := newTestIntake(t, 1024)
	u := pdfUpload("a.pdf", 20)
	u.DeclaredType = "application/pdf; name=a.pdf"
	_, err := in.Accept(u)
	assert.NoError(t, err)
}

func TestAcceptAllBounds(t *testing.T) {
	in, _ := newTestIntake(t, 1024)

	_, err := in.AcceptAll(context.Background(), nil)
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	four := []Upload{pdfUpload("1.pdf", 10), pdfUpload("2.pdf", 10), pdfUpload("3.pdf", 10), pdfUpload("4.pdf", 10)}
	_, err = in.AcceptAll(context.Background(), four)
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestAcceptAllKeepsOrderAndUniqueNames(t *testing.T) {
	in, _ := newTestIntake(t, 1024)

	refs, err := in.AcceptAll(context.Background(), []Upload{
		pdfUpload("same.pdf", 10), pdfUpload("same.pdf", 20), pdfUpload("other.pdf", 30),
	})
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.EqualValues(t, 10, refs[0].SizeBytes)
	assert.EqualValues(t, 20, refs[1].SizeBytes)
	assert.Equal(t, "other.pdf", refs[2].OriginalName)
	assert.NotEqual(t, refs[0].Path, refs[1].Path)
}

func TestAcceptAllLeavesNothingOnFailure(t *testing.T) {
	in, dir := newTestIntake(t, 1024)

	_, err := in.AcceptAll(context.Background(), []Upload{
		pdfUpload("ok.pdf", 10),
		{OriginalName: "photo.jpg", DeclaredType: "image/jpeg", Content: io.LimitReader(strings.NewReader("jpeg"), 4)},
	})
	assert.ErrorIs(t, err, common.ErrUnsupportedMediaType)
	assert.Empty(t, storedFiles(t, dir))
}

func TestAcceptAllStopsOnCancelledContext(t *testing.T) {
	in, dir := newTestIntake(t, 1024)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := in.AcceptAll(ctx, []Upload{pdfUpload("a.pdf", 10)})
	assert.ErrorIs(t, err, common.ErrUnavailable)
	assert.Empty(t, storedFiles(t, dir))
}

func TestStoredNameFallbacks(t *testing.T) {
	in, _ := newTestIntake(t, 1024)

	assert.True(t, strings.HasSuffix(in.storedName("!!!"), "-attachment.pdf"))
	assert.True(t, strings.HasSuffix(in.storedName(`C:\docs\Hotel Bill`), "-hotel-bill.pdf"))
	assert.NotContains(t, in.storedName("../../etc/passwd.pdf"), "/")
}
