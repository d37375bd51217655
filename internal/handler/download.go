package handler

import (
	"Zyncrate/internal/dto"
	"Zyncrate/internal/lifecycle"
	"Zyncrate/model"
	"Zyncrate/utils"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

const lockKeyHeader = "X-Lock-Key"

func queryKey(c *gin.Context) (string, bool) {
	key := strings.TrimSpace(c.Query("key"))
	if key == "" {
		utils.FailStatus(c, http.StatusBadRequest, "key is required")
		return "", false
	}
	return key, true
}

// lockSecret reads the secret from the query, falling back to a header. nil
// means the caller supplied none.
func lockSecret(c *gin.Context) *string {
	if v, ok := c.GetQuery("lock_key"); ok {
		return &v
	}
	if v := c.GetHeader(lockKeyHeader); v != "" {
		return &v
	}
	return nil
}

func downloadInfo(f *model.File) dto.DownloadInfoResponse {
	info := dto.NewFileInfoResponse(f, 0)
	return dto.DownloadInfoResponse{
		FileName:      info.FileName,
		FileSize:      info.FileSize,
		CreatedAt:     info.CreatedAt,
		ExpiresAt:     info.ExpiresAt,
		DownloadCount: info.DownloadCount,
		MaxDownloads:  info.MaxDownloads,
	}
}

// FileInfo returns public metadata. Expired files still resolve; the
// response flags them.
func (h *Handler) FileInfo(c *gin.Context) {
	key, ok := queryKey(c)
	if !ok {
		return
	}
	d, err := h.Files.Resolve(c.Request.Context(), key)
	if err != nil {
		writeError(c, err)
		return
	}
	if !d.Allowed() {
		writeOutcome(c, d.Outcome)
		return
	}
	utils.Success(c, dto.NewFileInfoResponse(d.File, time.Now().UnixMilli()))
}

// DownloadInfo returns the download page summary.
func (h *Handler) DownloadInfo(c *gin.Context) {
	key, ok := queryKey(c)
	if !ok {
		return
	}
	d, err := h.Files.Resolve(c.Request.Context(), key)
	if err != nil {
		writeError(c, err)
		return
	}
	if !d.Allowed() {
		writeOutcome(c, d.Outcome)
		return
	}
	utils.Success(c, downloadInfo(d.File))
}

// Download authorizes, counts and streams one download. With info=true it
// only authorizes and returns the summary.
func (h *Handler) Download(c *gin.Context) {
	key, ok := queryKey(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()
	d, err := h.Files.Authorize(ctx, key, lockSecret(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if !d.Allowed() {
		writeOutcome(c, d.Outcome)
		return
	}
	if c.Query("info") == "true" {
		utils.Success(c, downloadInfo(d.File))
		return
	}

	dl, err := h.Files.Consume(ctx, key, actorFrom(c))
	if err != nil {
		writeError(c, err)
		return
	}
	if !dl.Allowed() {
		writeOutcome(c, dl.Outcome)
		return
	}
	// Close 会触发次数用尽后的删除
	defer func() {
		if err := dl.Body.Close(); err != nil {
			log.Printf("[http] close body for %s: %v", key, err)
		}
	}()

	contentType := dl.File.MimeType
	if contentType == "" {
		contentType = dl.Info.ContentType
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.DataFromReader(http.StatusOK, dl.Info.Size, contentType, dl.Body, map[string]string{
		"Content-Disposition": utils.ContentDisposition(dl.File.FileName),
		"Cache-Control":       "no-store",
	})
}

// KeyVerify checks a lock secret without counting a download.
func (h *Handler) KeyVerify(c *gin.Context) {
	var req dto.KeyVerifyRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.ID) == "" {
		utils.FailStatus(c, http.StatusBadRequest, "id is required")
		return
	}
	d, err := h.Files.Resolve(c.Request.Context(), strings.TrimSpace(req.ID))
	if err != nil {
		writeError(c, err)
		return
	}
	if !d.Allowed() {
		writeOutcome(c, d.Outcome)
		return
	}
	if !d.File.Locked {
		c.JSON(http.StatusOK, dto.KeyVerifyResponse{OK: true, Message: "No key required"})
		return
	}
	if !lifecycle.VerifyLockKey(req.Key, d.File.LockKeyHash) {
		c.JSON(http.StatusUnauthorized, dto.KeyVerifyResponse{OK: false, Message: "Invalid key"})
		return
	}
	c.JSON(http.StatusOK, dto.KeyVerifyResponse{OK: true})
}
