package handler

import (
	"Zyncrate/config"
	"Zyncrate/internal/lifecycle"
	"Zyncrate/internal/service"
	"Zyncrate/internal/storage"
	"Zyncrate/model"
	"Zyncrate/utils"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

type stubFiles struct {
	created   *lifecycle.CreateRequest
	content   []byte
	createErr error

	decision  lifecycle.Decision
	decideErr error

	download   *lifecycle.Download
	consumeErr error
	consumed   int
}

func (s *stubFiles) Create(_ context.Context, req lifecycle.CreateRequest) (*model.File, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.content, _ = io.ReadAll(req.Content)
	s.created = &req
	return &model.File{
		Key:          "AbCdEfGh12345678",
		FileName:     req.FileName,
		ExpiresAt:    time.Now().Add(time.Hour).UnixMilli(),
		MaxDownloads: req.MaxDownloads,
		OneTime:      req.OneTime,
		Locked:       req.LockSecret != nil,
	}, nil
}

func (s *stubFiles) Resolve(context.Context, string) (lifecycle.Decision, error) {
	return s.decision, s.decideErr
}

func (s *stubFiles) Authorize(context.Context, string, *string) (lifecycle.Decision, error) {
	return s.decision, s.decideErr
}

func (s *stubFiles) Consume(context.Context, string, lifecycle.Actor) (*lifecycle.Download, error) {
	s.consumed++
	return s.download, s.consumeErr
}

type stubAuth struct{ guests int }

func (a *stubAuth) Register(_ context.Context, email, _ string) (*model.User, string, error) {
	if email == "taken@example.com" {
		return nil, "", service.ErrEmailTaken
	}
	return &model.User{ID: 1, Email: email, Plan: model.PlanFree}, "user-token", nil
}

func (a *stubAuth) Login(_ context.Context, _, password string) (*model.User, string, error) {
	if password != "secret1" {
		return nil, "", service.ErrBadCredentials
	}
	return &model.User{ID: 1, Email: "a@example.com", Plan: model.PlanFree}, "user-token", nil
}

func (a *stubAuth) NewGuestSession(context.Context, string, string) (*model.Guest, *utils.Claims, string, error) {
	a.guests++
	return &model.Guest{ID: 7}, &utils.Claims{Kind: utils.KindGuest, GuestId: 7}, "guest-token", nil
}

func (a *stubAuth) TouchGuest(context.Context, uint64) {}
func (a *stubAuth) GuestTTL() time.Duration            { return time.Hour }
func (a *stubAuth) TokenTTL() time.Duration            { return time.Hour }

type stubPolicy struct{ limits lifecycle.Limits }

func (p stubPolicy) Limits(context.Context) config.Limits { return config.DefaultLimits() }
func (p stubPolicy) LimitsFor(context.Context, *utils.Claims) lifecycle.Limits {
	return p.limits
}
func (p stubPolicy) Set(_ context.Context, key, _ string) error {
	if key == "bogus" {
		return service.ErrUnknownSetting
	}
	return nil
}

type trackedBody struct {
	io.Reader
	closed bool
}

func (b *trackedBody) Close() error {
	b.closed = true
	return nil
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

func newTestHandler(files *stubFiles) (*Handler, *stubAuth) {
	auth := &stubAuth{}
	return New(Deps{
		Files:               files,
		Auth:                auth,
		Policy:              stubPolicy{limits: lifecycle.Limits{MaxUploadSizeBytes: 1 << 20, MaxExpiryHours: 24}},
		BaseURL:             "https://zyncrate.test",
		DefaultMaxDownloads: 5,
	}), auth
}

func newTestRouter(h *Handler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	api := r.Group("/api", utils.IdentityMiddleware(testSecret))
	api.GET("/guest/session", h.GuestSession)
	api.POST("/user/register", h.Register)
	api.POST("/user/login", h.Login)
	api.POST("/upload", h.Upload)
	api.GET("/file-info", h.FileInfo)
	api.GET("/download-info", h.DownloadInfo)
	api.GET("/download", h.Download)
	api.POST("/key-verify", h.KeyVerify)
	api.POST("/admin/settings", h.SetSetting)
	return r
}

func uploadRequest(t *testing.T, fields map[string]string, content string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if content != "" {
		part, err := w.CreateFormFile("file", "notes.txt")
		require.NoError(t, err)
		_, err = part.Write([]byte(content))
		require.NoError(t, err)
	}
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestUploadAnonymousCreatesGuest(t *testing.T) {
	files := &stubFiles{}
	h, auth := newTestHandler(files)
	rec := serve(newTestRouter(h), uploadRequest(t, nil, "hello"))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 1, auth.guests)
	require.NotNil(t, files.created)
	assert.Equal(t, []byte("hello"), files.content)
	assert.Equal(t, 5, files.created.MaxDownloads, "missing max_downloads takes the default")
	require.NotNil(t, files.created.Owner.GuestSessionID)
	assert.Equal(t, uint64(7), *files.created.Owner.GuestSessionID)
	assert.Nil(t, files.created.LockSecret)
	assert.NotEmpty(t, files.created.MimeType)

	var cookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == utils.CookieGuestToken {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, "guest-token", cookie.Value)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	assert.Contains(t, string(env.Data), "https://zyncrate.test/download/AbCdEfGh12345678")
}

func TestUploadUserKeepsIdentity(t *testing.T) {
	files := &stubFiles{}
	h, auth := newTestHandler(files)
	token, err := utils.GenerateToken(testSecret, utils.Claims{Kind: utils.KindUser, UserId: 42}, time.Hour)
	require.NoError(t, err)

	req := uploadRequest(t, map[string]string{
		"max_downloads": "0",
		"one_time":      "on",
		"lock_key":      "s3cret",
		"expiry_hours":  "12",
	}, "data")
	req.Header.Set("Authorization", "Bearer "+token)
	rec := serve(newTestRouter(h), req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, 0, auth.guests)
	require.NotNil(t, files.created.Owner.UserID)
	assert.Equal(t, uint64(42), *files.created.Owner.UserID)
	assert.Equal(t, 0, files.created.MaxDownloads, "explicit zero means unlimited")
	assert.True(t, files.created.OneTime)
	assert.Equal(t, 12, files.created.ExpiryHours)
	require.NotNil(t, files.created.LockSecret)
	assert.Equal(t, "s3cret", *files.created.LockSecret)
}

func TestUploadRejectsBadForms(t *testing.T) {
	cases := []struct {
		name   string
		fields map[string]string
		body   string
	}{
		{"no file", nil, ""},
		{"locked without key", map[string]string{"locked": "true"}, "x"},
		{"negative downloads", map[string]string{"max_downloads": "-1"}, "x"},
		{"bad expiry", map[string]string{"expiry_hours": "soon"}, "x"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			files := &stubFiles{}
			h, _ := newTestHandler(files)
			rec := serve(newTestRouter(h), uploadRequest(t, tc.fields, tc.body))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Nil(t, files.created)
		})
	}
}

func TestUploadErrorMapping(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{lifecycle.ErrFileTooLarge, http.StatusRequestEntityTooLarge},
		{lifecycle.ErrInvalidRequest, http.StatusBadRequest},
		{&lifecycle.FaultError{Op: "create", Kind: lifecycle.ErrStorageWrite, Err: errors.New("boom")}, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		h, _ := newTestHandler(&stubFiles{createErr: tc.err})
		rec := serve(newTestRouter(h), uploadRequest(t, nil, "x"))
		assert.Equal(t, tc.want, rec.Code, tc.err.Error())
	}
}

func TestUploadBodyOverLimit(t *testing.T) {
	files := &stubFiles{}
	h, _ := newTestHandler(files)
	h.Policy = stubPolicy{limits: lifecycle.Limits{MaxUploadSizeBytes: 1}}
	big := strings.Repeat("z", formOverhead+1024)
	rec := serve(newTestRouter(h), uploadRequest(t, nil, big))
	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Nil(t, files.created)
}

func TestDownloadOutcomeStatus(t *testing.T) {
	cases := []struct {
		outcome lifecycle.Outcome
		want    int
	}{
		{lifecycle.OutcomeNotFound, http.StatusNotFound},
		{lifecycle.OutcomeExpired, http.StatusGone},
		{lifecycle.OutcomeUnauthorized, http.StatusForbidden},
		{lifecycle.OutcomeLimitReached, http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.outcome.String(), func(t *testing.T) {
			files := &stubFiles{decision: lifecycle.Decision{Outcome: tc.outcome}}
			h, _ := newTestHandler(files)
			rec := serve(newTestRouter(h), httptest.NewRequest(http.MethodGet, "/api/download?key=k", nil))
			assert.Equal(t, tc.want, rec.Code)
			assert.Zero(t, files.consumed, "refused downloads are never counted")
		})
	}
}

func TestDownloadStreamsAndCloses(t *testing.T) {
	file := &model.File{Key: "k", FileName: "报告.pdf", MimeType: "application/pdf", MaxDownloads: 1, DownloadCount: 1}
	body := &trackedBody{Reader: strings.NewReader("%PDF")}
	files := &stubFiles{
		decision: lifecycle.Decision{Outcome: lifecycle.OutcomeOK, File: file},
		download: &lifecycle.Download{
			Decision:  lifecycle.Decision{Outcome: lifecycle.OutcomeOK, File: file},
			Body:      body,
			Info:      storage.ObjectInfo{Size: 4},
			Exhausted: true,
		},
	}
	h, _ := newTestHandler(files)
	rec := serve(newTestRouter(h), httptest.NewRequest(http.MethodGet, "/api/download?key=k&lock_key=x", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "%PDF", rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "filename*=UTF-8''")
	assert.True(t, body.closed)
	assert.Equal(t, 1, files.consumed)
}

func TestDownloadInfoQueryDoesNotCount(t *testing.T) {
	file := &model.File{Key: "k", FileName: "a.txt", FileSize: 3, MaxDownloads: 0}
	files := &stubFiles{decision: lifecycle.Decision{Outcome: lifecycle.OutcomeOK, File: file}}
	h, _ := newTestHandler(files)
	rec := serve(newTestRouter(h), httptest.NewRequest(http.MethodGet, "/api/download?key=k&info=true", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, files.consumed)
	assert.Contains(t, rec.Body.String(), `"max_downloads":null`)
}

func TestDownloadRaceLostAfterAuthorize(t *testing.T) {
	file := &model.File{Key: "k", FileName: "a.txt", MaxDownloads: 1}
	files := &stubFiles{
		decision: lifecycle.Decision{Outcome: lifecycle.OutcomeOK, File: file},
		download: &lifecycle.Download{Decision: lifecycle.Decision{Outcome: lifecycle.OutcomeLimitReached, File: file}},
	}
	h, _ := newTestHandler(files)
	rec := serve(newTestRouter(h), httptest.NewRequest(http.MethodGet, "/api/download?key=k", nil))
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestDownloadFault(t *testing.T) {
	files := &stubFiles{decideErr: errors.New("db down")}
	h, _ := newTestHandler(files)
	rec := serve(newTestRouter(h), httptest.NewRequest(http.MethodGet, "/api/download?key=k", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestFileInfo(t *testing.T) {
	h, _ := newTestHandler(&stubFiles{})
	rec := serve(newTestRouter(h), httptest.NewRequest(http.MethodGet, "/api/file-info", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	file := &model.File{Key: "k", FileName: "a.txt", MaxDownloads: 3, Locked: true, LockKeyHash: "secret-hash"}
	h, _ = newTestHandler(&stubFiles{decision: lifecycle.Decision{Outcome: lifecycle.OutcomeOK, File: file}})
	rec = serve(newTestRouter(h), httptest.NewRequest(http.MethodGet, "/api/file-info?key=k", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"locked":true`)
	assert.Contains(t, rec.Body.String(), `"max_downloads":3`)
	assert.NotContains(t, rec.Body.String(), "secret-hash")
}

func TestKeyVerify(t *testing.T) {
	locked := &model.File{Key: "k", Locked: true, LockKeyHash: lifecycle.HashLockKey("s3cret")}
	open := &model.File{Key: "o"}
	cases := []struct {
		name string
		file *model.File
		key  string
		want int
		msg  string
	}{
		{"open file", open, "", http.StatusOK, "No key required"},
		{"wrong key", locked, "nope", http.StatusUnauthorized, "Invalid key"},
		{"right key", locked, "s3cret", http.StatusOK, `"ok":true`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h, _ := newTestHandler(&stubFiles{decision: lifecycle.Decision{Outcome: lifecycle.OutcomeOK, File: tc.file}})
			body := `{"id":"` + tc.file.Key + `","key":"` + tc.key + `"}`
			req := httptest.NewRequest(http.MethodPost, "/api/key-verify", strings.NewReader(body))
			req.Header.Set("Content-Type", "application/json")
			rec := serve(newTestRouter(h), req)
			assert.Equal(t, tc.want, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.msg)
		})
	}
}

func TestRegisterAndLogin(t *testing.T) {
	h, _ := newTestHandler(&stubFiles{})
	r := newTestRouter(h)

	post := func(path, body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		return serve(r, req)
	}

	rec := post("/api/user/register", `{"email":"a@example.com","password":"secret1"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Set-Cookie"), utils.CookieAuthToken+"=user-token")

	rec = post("/api/user/register", `{"email":"taken@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = post("/api/user/login", `{"email":"a@example.com","password":"wrong"}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = post("/api/user/login", `{"email":"a@example.com","password":"secret1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSetSettingRejectsUnknown(t *testing.T) {
	h, _ := newTestHandler(&stubFiles{})
	req := httptest.NewRequest(http.MethodPost, "/api/admin/settings", strings.NewReader(`{"key":"bogus","value":"1"}`))
	req.Header.Set("Content-Type", "application/json")
	rec := serve(newTestRouter(h), req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
