package handler

import (
	"github.com/gofiber/fiber/v2"

	"voicebook/internal/apperr"
	"voicebook/internal/service"
)

// formUpload opens a multipart file field. A missing field yields a nil upload.
func formUpload(c *fiber.Ctx, field string) (*service.Upload, func(), error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, func() {}, nil
	}
	f, err := fh.Open()
	if err != nil {
		return nil, func() {}, err
	}
	return &service.Upload{Filename: fh.Filename, Content: f}, func() { f.Close() }, nil
}

// respond turns a use-case error into the page flow: success and user errors
// redirect with a flash, everything else gets the JSON error envelope.
func respond(c *fiber.Ctx, err error, notice string) error {
	if err == nil {
		if notice != "" {
			setFlash(c, notice)
		}
		return c.Redirect("/", fiber.StatusSeeOther)
	}
	if msg, ok := apperr.UserMessage(err); ok {
		setFlash(c, msg)
		return c.RedirectBack("/", fiber.StatusSeeOther)
	}
	return writeFailure(c, err)
}

// UploadAudio godoc
// @Summary Upload a recording and run the pipeline
// @Description Reply mode answers the recording with synthesized speech using the current book.
// @Description Transcript mode stores a transcript with sentiment next to the recording.
// @Tags upload
// @Accept multipart/form-data
// @Param audio_data formData file true "recording (.wav)"
// @Success 303
// @Failure 502 {object} handler.errorPayload
// @Failure 500 {object} handler.errorPayload
// @Router /upload [post]
func UploadAudio(p service.Pipeline) fiber.Handler {
	return func(c *fiber.Ctx) error {
		up, done, err := formUpload(c, "audio_data")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer done()

		res := p.Run(c.UserContext(), up)
		return respond(c, res.Err, "")
	}
}

// UploadBook godoc
// @Summary Upload the reference document
// @Description The most recently uploaded book is the one used for replies.
// @Tags upload
// @Accept multipart/form-data
// @Param book_file formData file true "reference document"
// @Success 303
// @Failure 500 {object} handler.errorPayload
// @Router /upload_book [post]
func UploadBook(uploads service.UploadService) fiber.Handler {
	return func(c *fiber.Ctx) error {
		up, done, err := formUpload(c, "book_file")
		if err != nil {
			return writeError(c, fiber.StatusBadRequest, "FILE_OPEN_ERROR", "cannot open uploaded file")
		}
		defer done()

		_, err = uploads.SaveDocument(c.UserContext(), up)
		return respond(c, err, service.MsgBookUploaded)
	}
}
