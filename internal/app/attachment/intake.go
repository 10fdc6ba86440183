// Package attachment validates uploaded receipts and writes them under the
// upload directory.
package attachment

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	log "github.com/Ptt-Alertor/logrus"
	"github.com/gosimple/slug"

	"reimburse/internal/common"
	"reimburse/internal/domain/model"
)

const (
	DefaultMaxBytes = 5 * 1024 * 1024
	DefaultMaxFiles = 10

	pdfMediaType = "application/pdf"
	sniffLen     = 512
)

// Upload is one file as received from a client. Size is the declared size, or
// a negative value when unknown; the byte count actually read is what counts.
type Upload struct {
	OriginalName string
	DeclaredType string
	Size         int64
	Content      io.Reader
}

func (u Upload) validate() error {
	if strings.TrimSpace(u.OriginalName) == "" {
		return fmt.Errorf("attachment has no file name: %w", common.ErrInvalidInput)
	}
	if u.Content == nil {
		return fmt.Errorf("attachment %q has no content: %w", u.OriginalName, common.ErrInvalidInput)
	}
	return nil
}

type Options struct {
	Dir          string // Filesystem directory receiving the files
	PublicPrefix string // Prefix of the returned references, e.g. "uploads"
	MaxBytes     int64
	MaxFiles     int
}

type Intake struct {
	dir      string
	prefix   string
	maxBytes int64
	maxFiles int
	seq      atomic.Uint64
	now      func() time.Time
}

// NewIntake creates the upload directory if needed.
func NewIntake(opts Options) (*Intake, error) {
	if opts.MaxBytes <= 0 {
		opts.MaxBytes = DefaultMaxBytes
	}
	if opts.MaxFiles <= 0 {
		opts.MaxFiles = DefaultMaxFiles
	}
	if opts.PublicPrefix == "" {
		opts.PublicPrefix = filepath.Base(opts.Dir)
	}
	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir %s: %w", opts.Dir, err)
	}
	return &Intake{
		dir:      opts.Dir,
		prefix:   opts.PublicPrefix,
		maxBytes: opts.MaxBytes,
		maxFiles: opts.MaxFiles,
		now:      time.Now,
	}, nil
}

func (in *Intake) MaxBytes() int64 { return in.maxBytes }
func (in *Intake) MaxFiles() int   { return in.maxFiles }

// AcceptAll validates and stores every upload in order. The first failure
// aborts the batch and removes whatever was already written for it.
func (in *Intake) AcceptAll(ctx context.Context, uploads []Upload) ([]model.AttachmentRef, error) {
	if len(uploads) == 0 {
		return nil, fmt.Errorf("at least one attachment is required: %w", common.ErrInvalidInput)
	}
	if len(uploads) > in.maxFiles {
		return nil, fmt.Errorf("at most %d attachments are allowed, got %d: %w", in.maxFiles, len(uploads), common.ErrInvalidInput)
	}

	refs := make([]model.AttachmentRef, 0, len(uploads))
	for _, u := range uploads {
		if err := ctx.Err(); err != nil {
			in.Discard(refs)
			return nil, fmt.Errorf("attachment intake interrupted: %w: %v", common.ErrUnavailable, err)
		}
		ref, err := in.Accept(u)
		if err != nil {
			in.Discard(refs)
			return nil, err
		}
		refs = append(refs, ref)
	}
	return refs, nil
}

// Accept validates a single upload and persists it.
func (in *Intake) Accept(u Upload) (model.AttachmentRef, error) {
	if err := u.validate(); err != nil {
		return model.AttachmentRef{}, err
	}
	if !isPDFType(u.DeclaredType) {
		return model.AttachmentRef{}, fmt.Errorf("%q: only PDF files are allowed, got %q: %w",
			u.OriginalName, u.DeclaredType, common.ErrUnsupportedMediaType)
	}
	if u.Size > in.maxBytes {
		return model.AttachmentRef{}, in.tooLarge(u.OriginalName)
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(u.Content, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return model.AttachmentRef{}, fmt.Errorf("read %q: %w", u.OriginalName, common.ErrInvalidInput)
	}
	head = head[:n]
	if !looksLikePDF(head) {
		return model.AttachmentRef{}, fmt.Errorf("%q does not contain a PDF document: %w",
			u.OriginalName, common.ErrUnsupportedMediaType)
	}

	tmp, err := os.CreateTemp(in.dir, ".upload-*")
	if err != nil {
		return model.AttachmentRef{}, fmt.Errorf("create upload file: %w: %v", common.ErrUnavailable, err)
	}
	tmpName := tmp.Name()
	cleanup := func() {
		tmp.Close()
		os.Remove(tmpName)
	}

	// Read one byte past the ceiling so an oversized file is detected without
	// buffering it.
	body := io.MultiReader(bytes.NewReader(head), u.Content)
	written, err := io.Copy(tmp, io.LimitReader(body, in.maxBytes+1))
	if err != nil {
		cleanup()
		return model.AttachmentRef{}, fmt.Errorf("write upload file: %w: %v", common.ErrUnavailable, err)
	}
	if written > in.maxBytes {
		cleanup()
		return model.AttachmentRef{}, in.tooLarge(u.OriginalName)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return model.AttachmentRef{}, fmt.Errorf("close upload file: %w: %v", common.ErrUnavailable, err)
	}

	name := in.storedName(u.OriginalName)
	if err := os.Rename(tmpName, filepath.Join(in.dir, name)); err != nil {
		os.Remove(tmpName)
		return model.AttachmentRef{}, fmt.Errorf("store upload file: %w: %v", common.ErrUnavailable, err)
	}

	return model.AttachmentRef{
		Path:         path.Join(in.prefix, name),
		OriginalName: filepath.Base(u.OriginalName),
		SizeBytes:    written,
	}, nil
}

// Discard removes stored files; used when a batch or the owning request
// could not be persisted.
func (in *Intake) Discard(refs []model.AttachmentRef) {
	for _, ref := range refs {
		p := filepath.Join(in.dir, path.Base(ref.Path))
		if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.WithFields(log.Fields{"path": p}).WithError(err).Warn("Failed to discard attachment")
		}
	}
}

// storedName is "<unix nanos>-<sequence>-<slug of base name><ext>". The
// sequence keeps two uploads within the same nanosecond apart.
func (in *Intake) storedName(original string) string {
	base := filepath.Base(strings.ReplaceAll(original, `\`, "/"))
	ext := strings.ToLower(filepath.Ext(base))
	stem := slug.Make(strings.TrimSuffix(base, filepath.Ext(base)))
	if stem == "" {
		stem = "attachment"
	}
	if ext == "" {
		ext = ".pdf"
	}
	return fmt.Sprintf("%d-%d-%s%s", in.now().UnixNano(), in.seq.Add(1), stem, ext)
}

func (in *Intake) tooLarge(name string) error {
	return fmt.Errorf("%q exceeds the %d byte limit: %w", name, in.maxBytes, common.ErrPayloadTooLarge)
}

func isPDFType(declared string) bool {
	mediaType, _, err := mime.ParseMediaType(declared)
	return err == nil && mediaType == pdfMediaType
}

func looksLikePDF(head []byte) bool {
	return bytes.HasPrefix(head, []byte("%PDF-")) || http.DetectContentType(head) == pdfMediaType
}
