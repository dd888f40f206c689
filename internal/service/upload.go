package service

import (
	"context"
	"io"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"voicebook/internal/apperr"
	"voicebook/internal/model"
	"voicebook/internal/storage"
)

// TimestampLayout names every upload so lexical order equals chronological order.
const TimestampLayout = "20060102-150405"

// User-facing messages carried by UserError and flash notices.
const (
	MsgNoAudio        = "No audio data"
	MsgNoFilePart     = "No file part"
	MsgNoSelectedFile = "No selected file"
	MsgInvalidType    = "Invalid file type"
	MsgNoBook         = "No book uploaded"
	MsgBookUploaded   = "File uploaded successfully"
)

// Upload is one multipart file field. A nil *Upload means the field was absent.
type Upload struct {
	Filename string
	Content  io.Reader
}

// UploadService validates incoming files and stores them under timestamped names.
type UploadService interface {
	// SaveAudio stores a recording in uploads/. Only allow-listed extensions are accepted.
	SaveAudio(ctx context.Context, up *Upload) (model.StoredFile, error)

	// SaveDocument stores a reference document in books/. Any extension is accepted.
	SaveDocument(ctx context.Context, up *Upload) (model.StoredFile, error)

	// CurrentDocument returns the most recently uploaded document, if any.
	CurrentDocument(ctx context.Context) (model.StoredFile, bool, error)
}

type uploadService struct {
	store     storage.Storage
	audioExts []string
	now       func() time.Time
}

// NewUploadService constructs an UploadService. A nil now uses time.Now.
func NewUploadService(store storage.Storage, audioExts []string, now func() time.Time) UploadService {
	if now == nil {
		now = time.Now
	}
	exts := make([]string, 0, len(audioExts))
	for _, e := range audioExts {
		exts = append(exts, strings.ToLower(strings.TrimPrefix(e, ".")))
	}
	return &uploadService{store: store, audioExts: exts, now: now}
}

func (s *uploadService) SaveAudio(ctx context.Context, up *Upload) (model.StoredFile, error) {
	if up == nil {
		return model.StoredFile{}, apperr.User(MsgNoAudio)
	}
	if up.Filename == "" {
		return model.StoredFile{}, apperr.User(MsgNoSelectedFile)
	}
	ext, ok := storage.Extension(up.Filename)
	if !ok || !slices.Contains(s.audioExts, ext) {
		return model.StoredFile{}, apperr.User(MsgInvalidType)
	}

	name := s.now().UTC().Format(TimestampLayout) + "." + ext
	f, err := s.store.Save(ctx, model.FolderUploads, name, up.Content)
	if err != nil {
		return model.StoredFile{}, apperr.Transient("save audio", err)
	}
	return f, nil
}

func (s *uploadService) SaveDocument(ctx context.Context, up *Upload) (model.StoredFile, error) {
	if up == nil {
		return model.StoredFile{}, apperr.User(MsgNoFilePart)
	}
	if up.Filename == "" {
		return model.StoredFile{}, apperr.User(MsgNoSelectedFile)
	}

	name := s.now().UTC().Format(TimestampLayout) + documentExt(up.Filename)
	f, err := s.store.Save(ctx, model.FolderBooks, name, up.Content)
	if err != nil {
		return model.StoredFile{}, apperr.Transient("save document", err)
	}
	return f, nil
}

// documentExt keeps the lower-cased extension only when it is plain alphanumeric.
func documentExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filepath.Base(filename)))
	if len(ext) < 2 {
		return ""
	}
	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

// CurrentDocument applies "most recent wins": the greatest timestamp stem. Documents
// saved in the same second with different extensions are told apart by ModTime.
func (s *uploadService) CurrentDocument(ctx context.Context) (model.StoredFile, bool, error) {
	files, err := s.store.List(ctx, model.FolderBooks)
	if err != nil {
		return model.StoredFile{}, false, apperr.Transient("list documents", err)
	}
	if len(files) == 0 {
		return model.StoredFile{}, false, nil
	}
	best := files[0]
	for _, f := range files[1:] {
		bs, fs := stem(best.Name), stem(f.Name)
		if fs > bs || (fs == bs && f.ModTime.After(best.ModTime)) {
			best = f
		}
	}
	return best, true, nil
}

func stem(name string) string {
	if i := strings.LastIndex(name, "."); i > 0 {
		return name[:i]
	}
	return name
}
