package handler

import (
	"Zyncrate/internal/dto"
	"Zyncrate/internal/service"
	"Zyncrate/utils"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const listLimit = 100

// Cleanup runs a sweep pass on demand.
func (h *Handler) Cleanup(c *gin.Context) {
	if h.Cleaner == nil {
		utils.FailStatus(c, http.StatusServiceUnavailable, "cleanup disabled")
		return
	}
	report, err := h.Cleaner.Run(c.Request.Context())
	if err != nil {
		// 部分失败也返回统计
		log.Printf("[http] cleanup: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"code": -1, "msg": "cleanup incomplete", "data": report})
		return
	}
	utils.Success(c, report)
}

// ListFiles returns the caller's live files.
func (h *Handler) ListFiles(c *gin.Context) {
	if h.Lister == nil {
		utils.Success(c, []dto.FileInfoResponse{})
		return
	}
	actor := actorFrom(c)
	files, err := h.Lister.ListByOwner(c.Request.Context(), actor.UserID, actor.GuestSessionID, listLimit)
	if err != nil {
		writeError(c, err)
		return
	}
	now := time.Now().UnixMilli()
	out := make([]dto.FileInfoResponse, 0, len(files))
	for i := range files {
		out = append(out, dto.NewFileInfoResponse(&files[i], now))
	}
	utils.Success(c, out)
}

// GetSettings returns the effective plan limits.
func (h *Handler) GetSettings(c *gin.Context) {
	utils.Success(c, h.Policy.Limits(c.Request.Context()))
}

// SetSetting writes one limit override.
func (h *Handler) SetSetting(c *gin.Context) {
	var req dto.SettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.FailStatus(c, http.StatusBadRequest, "invalid request")
		return
	}
	err := h.Policy.Set(c.Request.Context(), req.Key, req.Value)
	if errors.Is(err, service.ErrUnknownSetting) || errors.Is(err, service.ErrInvalidSetting) {
		utils.Fail(c, err)
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	utils.Success(c, h.Policy.Limits(c.Request.Context()))
}
