package handler

import (
	"Zyncrate/internal/dto"
	"Zyncrate/internal/lifecycle"
	"Zyncrate/internal/service"
	"Zyncrate/utils"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
)

// multipart framing on top of the file itself
const formOverhead = 1 << 20

func formBool(c *gin.Context, name string) bool {
	switch strings.ToLower(strings.TrimSpace(c.PostForm(name))) {
	case "1", "true", "on", "yes":
		return true
	}
	return false
}

func formInt(c *gin.Context, name string, fallback int) (int, error) {
	raw, ok := c.GetPostForm(name)
	raw = strings.TrimSpace(raw)
	if !ok || raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid %s", name)
	}
	return n, nil
}

// Upload stores a multipart file and returns its share link. Anonymous
// callers get a guest session first.
func (h *Handler) Upload(c *gin.Context) {
	claims, ok := utils.CurrentClaims(c)
	if !ok {
		var err error
		if _, claims, _, err = h.ensureGuest(c); err != nil {
			writeError(c, err)
			return
		}
	}
	limits := h.Policy.LimitsFor(c.Request.Context(), claims)
	if limits.MaxUploadSizeBytes > 0 {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limits.MaxUploadSizeBytes+formOverhead)
	}

	fh, err := c.FormFile("file")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			writeError(c, fmt.Errorf("%w: limit %d bytes", lifecycle.ErrFileTooLarge, limits.MaxUploadSizeBytes))
			return
		}
		utils.FailStatus(c, http.StatusBadRequest, "no file uploaded")
		return
	}

	expiryHours, err := formInt(c, "expiry_hours", 0)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	maxDownloads, err := formInt(c, "max_downloads", h.DefaultMaxDownloads)
	if err != nil {
		utils.Fail(c, err)
		return
	}
	var secret *string
	if lockKey := c.PostForm("lock_key"); lockKey != "" {
		secret = &lockKey
	} else if formBool(c, "locked") {
		utils.FailStatus(c, http.StatusBadRequest, "lock_key required for locked files")
		return
	}

	src, err := fh.Open()
	if err != nil {
		utils.FailStatus(c, http.StatusBadRequest, "cannot read uploaded file")
		return
	}
	defer src.Close()

	file, err := h.Files.Create(c.Request.Context(), lifecycle.CreateRequest{
		Content:      src,
		FileName:     fh.Filename,
		MimeType:     service.ResolveContentType(fh.Filename, fh.Header.Get("Content-Type")),
		Size:         fh.Size,
		ExpiryHours:  expiryHours,
		MaxDownloads: maxDownloads,
		OneTime:      formBool(c, "one_time"),
		LockSecret:   secret,
		Owner:        actorFrom(c),
		Limits:       limits,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	if to := strings.TrimSpace(c.PostForm("notify_email")); to != "" && h.Notifier != nil {
		h.Notifier.NotifyShare(to, file)
	}

	utils.Success(c, dto.UploadResponse{
		Success:      true,
		Key:          file.Key,
		Link:         utils.ShareLink(h.BaseURL, file.Key),
		ExpiresAt:    file.ExpiresAt,
		MaxDownloads: file.MaxDownloads,
		OneTime:      file.OneTime,
		Locked:       file.Locked,
		Message:      "File uploaded successfully",
	})
}
