package handler

import (
	"Zyncrate/internal/dto"
	"Zyncrate/internal/service"
	"Zyncrate/model"
	"Zyncrate/utils"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/net/context"
)

const touchTimeout = 2 * time.Second

func setTokenCookie(c *gin.Context, name, token string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, token, int(ttl.Seconds()), "/", "", c.Request.TLS != nil, true)
}

// GuestSession creates an anonymous session, or reuses the caller's.
func (h *Handler) GuestSession(c *gin.Context) {
	if claims, ok := utils.CurrentClaims(c); ok && claims.IsGuest() {
		ctx, cancel := context.WithTimeout(c.Request.Context(), touchTimeout)
		defer cancel()
		h.Auth.TouchGuest(ctx, claims.GuestId)
		utils.Success(c, dto.TokenResponse{Kind: utils.KindGuest, GuestID: claims.GuestId})
		return
	}
	guest, _, token, err := h.ensureGuest(c)
	if err != nil {
		writeError(c, err)
		return
	}
	utils.Success(c, dto.TokenResponse{
		Token:     token,
		Kind:      utils.KindGuest,
		GuestID:   guest.ID,
		ExpiresIn: int64(h.Auth.GuestTTL().Seconds()),
	})
}

// ensureGuest mints a guest session for an anonymous request and attaches it
// to the context.
func (h *Handler) ensureGuest(c *gin.Context) (*model.Guest, *utils.Claims, string, error) {
	guest, claims, token, err := h.Auth.NewGuestSession(c.Request.Context(), c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		return nil, nil, "", err
	}
	utils.SetClaims(c, claims)
	setTokenCookie(c, utils.CookieGuestToken, token, h.Auth.GuestTTL())
	return guest, claims, token, nil
}

// Register creates an account.
func (h *Handler) Register(c *gin.Context) {
	var req dto.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.FailStatus(c, http.StatusBadRequest, "invalid request")
		return
	}
	user, token, err := h.Auth.Register(c.Request.Context(), req.Email, req.Password)
	switch {
	case errors.Is(err, service.ErrInvalidEmail), errors.Is(err, service.ErrWeakPassword):
		utils.Fail(c, err)
		return
	case errors.Is(err, service.ErrEmailTaken):
		utils.FailStatus(c, http.StatusConflict, err.Error())
		return
	case err != nil:
		writeError(c, err)
		return
	}
	h.respondUser(c, user, token)
}

// Login authenticates a user and returns a token.
func (h *Handler) Login(c *gin.Context) {
	var req dto.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.FailStatus(c, http.StatusBadRequest, "invalid request")
		return
	}
	user, token, err := h.Auth.Login(c.Request.Context(), req.Email, req.Password)
	if errors.Is(err, service.ErrBadCredentials) {
		utils.FailStatus(c, http.StatusUnauthorized, err.Error())
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	h.respondUser(c, user, token)
}

func (h *Handler) respondUser(c *gin.Context, user *model.User, token string) {
	setTokenCookie(c, utils.CookieAuthToken, token, h.Auth.TokenTTL())
	utils.Success(c, dto.TokenResponse{
		Token:     token,
		Kind:      utils.KindUser,
		UserID:    user.ID,
		Email:     user.Email,
		Plan:      user.Plan,
		ExpiresIn: int64(h.Auth.TokenTTL().Seconds()),
	})
}
