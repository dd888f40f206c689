package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"voicebook/internal/apperr"
	"voicebook/internal/model"
	"voicebook/internal/repository"
	repoMocks "voicebook/internal/repository/mocks"
	"voicebook/internal/service"
	serviceMocks "voicebook/internal/service/mocks"
	"voicebook/internal/storage"
)

func newStore(t *testing.T) storage.Storage {
	t.Helper()
	store, err := storage.NewLocal(t.TempDir())
	require.NoError(t, err)
	return store
}

func seed(t *testing.T, store storage.Storage, folder, name, content string) {
	t.Helper()
	_, err := store.Save(context.Background(), folder, name, strings.NewReader(content))
	require.NoError(t, err)
}

func multipartBody(t *testing.T, field, filename string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	if field != "" {
		part, err := writer.CreateFormFile(field, filename)
		require.NoError(t, err)
		part.Write(content)
	} else {
		writer.WriteField("note", "nothing attached")
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func flashFrom(resp *http.Response) string {
	for _, c := range resp.Cookies() {
		if c.Name == FlashCookie {
			v, _ := url.QueryUnescape(c.Value)
			return v
		}
	}
	return ""
}

func decodeError(t *testing.T, resp *http.Response) errorPayload {
	t.Helper()
	var body errorPayload
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestHealthCheck(t *testing.T) {
	db, dbMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	store := newStore(t)
	app := fiber.New()
	app.Get("/health", HealthCheck(
		Check{Name: "storage", Ping: store.Ping},
		Check{Name: "database", Ping: db.PingContext},
	))

	t.Run("healthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(nil)

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var body healthResponse
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, "healthy", body.Status)
		assert.Equal(t, map[string]string{"storage": "ok", "database": "ok"}, body.Checks)
	})

	t.Run("unhealthy", func(t *testing.T) {
		dbMock.ExpectPing().WillReturnError(errors.New("db error"))

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
		body := decodeError(t, resp)
		assert.Equal(t, "SERVICE_UNAVAILABLE", body.Error.Code)
		assert.Equal(t, "database unavailable", body.Error.Message)
	})
}

func TestLivenessProbe(t *testing.T) {
	app := fiber.New()
	app.Get("/healthz", LivenessProbe())

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestListRuns(t *testing.T) {
	runs := new(repoMocks.MockRunRepository)
	app := fiber.New()
	app.Get("/api/runs", ListRuns(runs))

	t.Run("success", func(t *testing.T) {
		page := &repository.PageResult[model.Run]{
			Items: []model.Run{{ID: uuid.NewString(), Mode: model.ModeReply, Status: model.RunSucceeded}},
			Total: 1,
		}
		runs.On("List", mock.Anything, repository.PageQuery{Limit: 5, Offset: 10}).Return(page, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/runs?limit=5&offset=10", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var result runsPage
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
		assert.Len(t, result.Items, 1)
		assert.Equal(t, 1, result.Total)
		assert.Equal(t, 5, result.Limit)
		runs.AssertExpectations(t)
	})

	for _, q := range []string{"limit=abc", "limit=0", "limit=101"} {
		t.Run("invalid "+q, func(t *testing.T) {
			resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/runs?"+q, nil))

			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			assert.Equal(t, "INVALID_LIMIT", decodeError(t, resp).Error.Code)
		})
	}

	t.Run("invalid offset", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/runs?offset=-1", nil))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_OFFSET", decodeError(t, resp).Error.Code)
	})

	t.Run("repository error", func(t *testing.T) {
		runs.On("List", mock.Anything, repository.PageQuery{Limit: 10, Offset: 0}).Return(nil, errors.New("db down")).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/runs", nil))

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		runs.AssertExpectations(t)
	})
}

func TestGetRun(t *testing.T) {
	runs := new(repoMocks.MockRunRepository)
	app := fiber.New()
	app.Get("/api/runs/:id", GetRun(runs))

	t.Run("success", func(t *testing.T) {
		id := uuid.NewString()
		runs.On("FindByID", mock.Anything, id).Return(&model.Run{ID: id, Status: model.RunFailed}, nil).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/runs/"+id, nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		var run model.Run
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
		assert.Equal(t, id, run.ID)
	})

	t.Run("not found", func(t *testing.T) {
		id := uuid.NewString()
		runs.On("FindByID", mock.Anything, id).Return(nil, repository.ErrRunNotFound).Once()

		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/runs/"+id, nil))

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
	})

	t.Run("invalid id", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/api/runs/not-a-uuid", nil))

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "INVALID_ID", decodeError(t, resp).Error.Code)
	})

	runs.AssertExpectations(t)
}

func TestUploadAudio(t *testing.T) {
	isUpload := func(name string) any {
		return mock.MatchedBy(func(up *service.Upload) bool { return up != nil && up.Filename == name })
	}

	post := func(t *testing.T, app *fiber.App, field, filename string) *http.Response {
		body, ct := multipartBody(t, field, filename, []byte("RIFF"))
		req := httptest.NewRequest(http.MethodPost, "/upload", body)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("Referer", "/?from=recorder")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		return resp
	}

	t.Run("success redirects home", func(t *testing.T) {
		p := new(serviceMocks.MockPipeline)
		app := fiber.New()
		app.Post("/upload", UploadAudio(p))
		p.On("Run", mock.Anything, isUpload("recorded_audio.wav")).Return(service.Result{Text: "hi"}).Once()

		resp := post(t, app, "audio_data", "recorded_audio.wav")

		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/", resp.Header.Get("Location"))
		assert.Empty(t, flashFrom(resp))
		p.AssertExpectations(t)
	})

	t.Run("user error flashes and redirects back", func(t *testing.T) {
		p := new(serviceMocks.MockPipeline)
		app := fiber.New()
		app.Post("/upload", UploadAudio(p))
		p.On("Run", mock.Anything, isUpload("clip.mp3")).
			Return(service.Result{Err: apperr.User(service.MsgInvalidType)}).Once()

		resp := post(t, app, "audio_data", "clip.mp3")

		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/?from=recorder", resp.Header.Get("Location"))
		assert.Equal(t, service.MsgInvalidType, flashFrom(resp))
	})

	t.Run("missing field reaches pipeline as nil", func(t *testing.T) {
		p := new(serviceMocks.MockPipeline)
		app := fiber.New()
		app.Post("/upload", UploadAudio(p))
		p.On("Run", mock.Anything, (*service.Upload)(nil)).
			Return(service.Result{Err: apperr.User(service.MsgNoAudio)}).Once()

		resp := post(t, app, "", "")

		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, service.MsgNoAudio, flashFrom(resp))
		p.AssertExpectations(t)
	})

	t.Run("remote failure is a bad gateway", func(t *testing.T) {
		p := new(serviceMocks.MockPipeline)
		app := fiber.New()
		app.Post("/upload", UploadAudio(p))
		p.On("Run", mock.Anything, mock.Anything).
			Return(service.Result{Err: apperr.Remote("gemini", 429, "RESOURCE_EXHAUSTED: quota")}).Once()

		resp := post(t, app, "audio_data", "a.wav")

		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		body := decodeError(t, resp)
		assert.Equal(t, "UPSTREAM_ERROR", body.Error.Code)
		assert.Contains(t, body.Error.Message, "quota")
	})

	t.Run("network failure is a bad gateway", func(t *testing.T) {
		p := new(serviceMocks.MockPipeline)
		app := fiber.New()
		app.Post("/upload", UploadAudio(p))
		p.On("Run", mock.Anything, mock.Anything).
			Return(service.Result{Err: apperr.Network("tts request", errors.New("connection reset"))}).Once()

		resp := post(t, app, "audio_data", "a.wav")

		assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
		assert.Equal(t, "UPSTREAM_UNAVAILABLE", decodeError(t, resp).Error.Code)
	})

	t.Run("local failure is internal", func(t *testing.T) {
		p := new(serviceMocks.MockPipeline)
		app := fiber.New()
		app.Post("/upload", UploadAudio(p))
		p.On("Run", mock.Anything, mock.Anything).
			Return(service.Result{Err: apperr.Transient("save reply", errors.New("disk full"))}).Once()

		resp := post(t, app, "audio_data", "a.wav")

		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		body := decodeError(t, resp)
		assert.Equal(t, "INTERNAL_ERROR", body.Error.Code)
		assert.NotContains(t, body.Error.Message, "disk full")
	})
}

func TestUploadBook(t *testing.T) {
	store := newStore(t)
	clock := func() time.Time { return time.Date(2024, 1, 1, 11, 0, 0, 0, time.UTC) }
	uploads := service.NewUploadService(store, []string{"wav"}, clock)
	app := fiber.New()
	app.Post("/upload_book", UploadBook(uploads))

	t.Run("success", func(t *testing.T) {
		body, ct := multipartBody(t, "book_file", "Book.PDF", []byte("%PDF-1.7"))
		req := httptest.NewRequest(http.MethodPost, "/upload_book", body)
		req.Header.Set("Content-Type", ct)

		resp, err := app.Test(req, -1)
		require.NoError(t, err)

		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/", resp.Header.Get("Location"))
		assert.Equal(t, service.MsgBookUploaded, flashFrom(resp))

		b, err := storage.Read(context.Background(), store, model.FolderBooks, "20240101-110000.pdf")
		require.NoError(t, err)
		assert.Equal(t, "%PDF-1.7", string(b))
	})

	t.Run("no file part", func(t *testing.T) {
		body, ct := multipartBody(t, "", "", nil)
		req := httptest.NewRequest(http.MethodPost, "/upload_book", body)
		req.Header.Set("Content-Type", ct)

		resp, err := app.Test(req, -1)
		require.NoError(t, err)

		assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
		assert.Equal(t, "/", resp.Header.Get("Location"))
		assert.Equal(t, service.MsgNoFilePart, flashFrom(resp))
	})

	t.Run("storage failure", func(t *testing.T) {
		u := new(serviceMocks.MockUploadService)
		app := fiber.New()
		app.Post("/upload_book", UploadBook(u))
		u.On("SaveDocument", mock.Anything, mock.Anything).
			Return(model.StoredFile{}, apperr.Transient("save document", errors.New("read-only fs"))).Once()

		body, ct := multipartBody(t, "book_file", "b.txt", []byte("x"))
		req := httptest.NewRequest(http.MethodPost, "/upload_book", body)
		req.Header.Set("Content-Type", ct)

		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode)
		u.AssertExpectations(t)
	})
}

func TestServeFile(t *testing.T) {
	store := newStore(t)
	seed(t, store, model.FolderUploads, "20240101-120000.wav", "RIFFdata")
	seed(t, store, model.FolderBooks, "20240101-110000.txt", "chapter one")

	app := fiber.New()
	app.Get("/:folder/:filename", ServeFile(store))

	t.Run("serves audio", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/uploads/20240101-120000.wav", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, resp.Header.Get("Content-Type"), "audio/")
		b, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "RIFFdata", string(b))
	})

	t.Run("serves books", func(t *testing.T) {
		resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/books/20240101-110000.txt", nil))

		assert.Equal(t, http.StatusOK, resp.StatusCode)
		b, _ := io.ReadAll(resp.Body)
		assert.Equal(t, "chapter one", string(b))
	})

	notFound := []struct {
		name string
		path string
		code string
	}{
		{name: "unknown folder", path: "/tts/20240101-120000.wav", code: "INVALID_FOLDER"},
		{name: "missing file", path: "/uploads/19990101-000000.wav", code: "NOT_FOUND"},
		{name: "traversal", path: "/uploads/..%5Cbooks.txt", code: "NOT_FOUND"},
	}
	for _, tt := range notFound {
		t.Run(tt.name, func(t *testing.T) {
			resp, _ := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))

			assert.Equal(t, http.StatusNotFound, resp.StatusCode)
			assert.Equal(t, tt.code, decodeError(t, resp).Error.Code)
		})
	}
}

func TestIndex(t *testing.T) {
	store := newStore(t)
	seed(t, store, model.FolderUploads, "20240101-120000.wav", "a")
	seed(t, store, model.FolderUploads, "20240101-120000_reply.wav", "b")
	seed(t, store, model.FolderUploads, "20240102-080000.wav", "c")
	seed(t, store, model.FolderUploads, "20240102-080000.wav.txt", "Text: hello")
	seed(t, store, model.FolderUploads, "notes.mp3", "d")
	seed(t, store, model.FolderBooks, "20240101-110000.pdf", "%PDF")

	uploads := service.NewUploadService(store, []string{"wav"}, nil)
	app := fiber.New()
	app.Get("/", Index(store, uploads, model.ModeReply, "wav"))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: FlashCookie, Value: url.QueryEscape(service.MsgNoBook)})
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	b, _ := io.ReadAll(resp.Body)
	html := string(b)

	assert.Contains(t, html, service.MsgNoBook)
	assert.Contains(t, html, "20240101-110000.pdf")
	assert.Contains(t, html, `href="/uploads/20240102-080000.wav.txt"`)
	assert.NotContains(t, html, "notes.mp3")

	newest := strings.Index(html, "20240102-080000.wav")
	reply := strings.Index(html, "20240101-120000_reply.wav")
	oldest := strings.Index(html, `src="/uploads/20240101-120000.wav"`)
	require.True(t, newest >= 0 && reply >= 0 && oldest >= 0)
	assert.Less(t, newest, reply)
	assert.Less(t, reply, oldest)

	var cleared bool
	for _, c := range resp.Cookies() {
		if c.Name == FlashCookie && c.Value == "" {
			cleared = true
		}
	}
	assert.True(t, cleared, "flash cookie should be cleared after render")
}

func TestIndexEmptyStore(t *testing.T) {
	store := newStore(t)
	app := fiber.New()
	app.Get("/", Index(store, service.NewUploadService(store, nil, nil), model.ModeTranscript))

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	b, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(b), "No recordings yet.")
	assert.Contains(t, string(b), "No book uploaded yet.")
}

func TestScript(t *testing.T) {
	app := fiber.New()
	app.Get("/script.js", Script())

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/script.js", nil))

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "javascript")
	b, _ := io.ReadAll(resp.Body)
	assert.Contains(t, string(b), "audio_data")
	assert.Contains(t, string(b), "redirect: 'manual'")
	assert.Contains(t, string(b), "opaqueredirect")
}

func TestRegisterRoutes(t *testing.T) {
	store := newStore(t)
	p := new(serviceMocks.MockPipeline)
	p.On("Mode").Return(model.ModeReply)

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler()})
	RegisterRoutes(app, Deps{
		Store:    store,
		Uploads:  service.NewUploadService(store, []string{"wav"}, nil),
		Pipeline: p,
		Checks:   []Check{{Name: "storage", Ping: store.Ping}},
	})

	for _, path := range []string{"/", "/health", "/healthz", "/api/runs", "/script.js"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode, path)
	}

	resp, _ := app.Test(httptest.NewRequest(http.MethodGet, "/no/such/route", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "NOT_FOUND", decodeError(t, resp).Error.Code)
}

func TestFlashSurvivesUntilReload(t *testing.T) {
	store := newStore(t)
	uploads := service.NewUploadService(store, []string{"wav"}, nil)
	app := fiber.New()
	app.Get("/", Index(store, uploads, model.ModeReply, "wav"))
	app.Post("/upload_book", UploadBook(uploads))

	body, ct := multipartBody(t, "", "", nil)
	req := httptest.NewRequest(http.MethodPost, "/upload_book", body)
	req.Header.Set("Content-Type", ct)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	var flash *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == FlashCookie {
			flash = c
		}
	}
	require.NotNil(t, flash)

	reload := httptest.NewRequest(http.MethodGet, "/", nil)
	reload.AddCookie(&http.Cookie{Name: flash.Name, Value: flash.Value})
	page, err := app.Test(reload)
	require.NoError(t, err)
	html, _ := io.ReadAll(page.Body)
	assert.Contains(t, string(html), service.MsgNoFilePart)

	again, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	html, _ = io.ReadAll(again.Body)
	assert.NotContains(t, string(html), service.MsgNoFilePart)
}
