package handler

import (
	"bytes"
	"errors"
	"net/url"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/gofiber/fiber/v2"

	"voicebook/internal/model"
	"voicebook/internal/service"
	"voicebook/internal/storage"
	"voicebook/web"
)

type fileView struct {
	Name       string
	URL        string
	Size       string
	Age        string
	Transcript string
	Reply      bool
}

type pageData struct {
	Flash    string
	Mode     string
	Document *fileView
	Files    []fileView
}

func fileURL(folder, name string) string {
	return "/" + folder + "/" + url.PathEscape(name)
}

func newFileView(f model.StoredFile) fileView {
	return fileView{
		Name: f.Name,
		URL:  fileURL(f.Folder, f.Name),
		Size: humanize.Bytes(uint64(max(f.Size, 0))),
		Age:  humanize.Time(f.ModTime),
	}
}

// Index renders the recordings page: audio in uploads/ newest first, the current
// book and any pending flash message. Every render re-reads the store.
func Index(store storage.Storage, uploads service.UploadService, mode string, audioExts ...string) fiber.Handler {
	if len(audioExts) == 0 {
		audioExts = []string{"wav"}
	}
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()

		audio, err := store.List(ctx, model.FolderUploads, audioExts...)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "STORAGE_ERROR", "cannot list recordings")
		}
		texts, err := store.List(ctx, model.FolderUploads, "txt")
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "STORAGE_ERROR", "cannot list recordings")
		}
		transcripts := make(map[string]bool, len(texts))
		for _, t := range texts {
			transcripts[t.Name] = true
		}

		data := pageData{Flash: popFlash(c), Mode: mode, Files: make([]fileView, 0, len(audio))}
		for _, f := range audio {
			v := newFileView(f)
			if transcripts[f.Name+".txt"] {
				v.Transcript = fileURL(model.FolderUploads, f.Name+".txt")
			}
			v.Reply = strings.Contains(f.Name, "_reply.")
			data.Files = append(data.Files, v)
		}

		doc, ok, err := uploads.CurrentDocument(ctx)
		if err != nil {
			return writeError(c, fiber.StatusInternalServerError, "STORAGE_ERROR", "cannot list books")
		}
		if ok {
			v := newFileView(doc)
			data.Document = &v
		}

		var buf bytes.Buffer
		if err := web.Index.Execute(&buf, data); err != nil {
			return err
		}
		c.Type("html", "utf-8")
		return c.Send(buf.Bytes())
	}
}

// Script serves the embedded recorder script.
func Script() fiber.Handler {
	return func(c *fiber.Ctx) error {
		c.Type("js")
		return c.Send(web.Script)
	}
}

// ServeFile godoc
// @Summary Download a stored file
// @Tags files
// @Param folder path string true "uploads or books"
// @Param filename path string true "file name"
// @Success 200 {file} binary
// @Failure 404 {object} handler.errorPayload
// @Router /{folder}/{filename} [get]
func ServeFile(store storage.Storage) fiber.Handler {
	return func(c *fiber.Ctx) error {
		folder := c.Params("folder")
		if !model.IsFolder(folder) {
			return writeError(c, fiber.StatusNotFound, "INVALID_FOLDER", "Invalid folder")
		}
		name, err := url.PathUnescape(c.Params("filename"))
		if err != nil {
			return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "File not found")
		}

		rc, f, err := store.Open(c.UserContext(), folder, name)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidName) {
				return writeError(c, fiber.StatusNotFound, "NOT_FOUND", "File not found")
			}
			return writeError(c, fiber.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		}

		if ext, ok := storage.Extension(name); ok {
			c.Type(ext)
		} else {
			c.Type("bin")
		}
		return c.SendStream(rc, int(f.Size))
	}
}
