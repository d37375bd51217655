package handler

import (
	"Zyncrate/config"
	"Zyncrate/internal/lifecycle"
	"Zyncrate/internal/service"
	"Zyncrate/model"
	"Zyncrate/utils"
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// FileLifecycle is what the HTTP layer needs from the lifecycle manager.
type FileLifecycle interface {
	Create(ctx context.Context, req lifecycle.CreateRequest) (*model.File, error)
	Resolve(ctx context.Context, key string) (lifecycle.Decision, error)
	Authorize(ctx context.Context, key string, secret *string) (lifecycle.Decision, error)
	Consume(ctx context.Context, key string, actor lifecycle.Actor) (*lifecycle.Download, error)
}

// Authenticator issues user and guest tokens.
type Authenticator interface {
	Register(ctx context.Context, email, password string) (*model.User, string, error)
	Login(ctx context.Context, email, password string) (*model.User, string, error)
	NewGuestSession(ctx context.Context, ip, userAgent string) (*model.Guest, *utils.Claims, string, error)
	TouchGuest(ctx context.Context, guestID uint64)
	GuestTTL() time.Duration
	TokenTTL() time.Duration
}

// Policy resolves plan limits and stores overrides.
type Policy interface {
	Limits(ctx context.Context) config.Limits
	LimitsFor(ctx context.Context, claims *utils.Claims) lifecycle.Limits
	Set(ctx context.Context, key, value string) error
}

// Cleaner runs one cleanup pass.
type Cleaner interface {
	Run(ctx context.Context) (service.CleanupReport, error)
}

// FileLister lists an owner's live files.
type FileLister interface {
	ListByOwner(ctx context.Context, userID, guestID *uint64, limit int) ([]model.File, error)
}

// ShareNotifier mails share links.
type ShareNotifier interface {
	NotifyShare(to string, file *model.File)
}

// Deps groups the collaborators of Handler. Cleaner, Lister and Notifier are
// optional.
type Deps struct {
	Files    FileLifecycle
	Auth     Authenticator
	Policy   Policy
	Cleaner  Cleaner
	Lister   FileLister
	Notifier ShareNotifier

	BaseURL             string
	DefaultMaxDownloads int
}

// Handler serves the public API.
type Handler struct {
	Deps
}

// New creates a Handler.
func New(deps Deps) *Handler {
	return &Handler{Deps: deps}
}

func actorFrom(c *gin.Context) lifecycle.Actor {
	actor := lifecycle.Actor{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
	}
	claims, ok := utils.CurrentClaims(c)
	if !ok {
		return actor
	}
	if claims.IsUser() {
		id := claims.UserId
		actor.UserID = &id
	} else {
		id := claims.GuestId
		actor.GuestSessionID = &id
	}
	return actor
}

// outcomeStatus maps a refused decision onto an HTTP status and message.
func outcomeStatus(o lifecycle.Outcome) (int, string) {
	switch o {
	case lifecycle.OutcomeNotFound:
		return http.StatusNotFound, "file not found"
	case lifecycle.OutcomeExpired:
		return http.StatusGone, "file has expired"
	case lifecycle.OutcomeUnauthorized:
		return http.StatusForbidden, "invalid or missing key"
	case lifecycle.OutcomeLimitReached:
		return http.StatusForbidden, "download limit reached"
	default:
		return http.StatusOK, ""
	}
}

func writeOutcome(c *gin.Context, o lifecycle.Outcome) {
	status, msg := outcomeStatus(o)
	utils.FailStatus(c, status, msg)
}

// writeError maps lifecycle errors; anything unknown is a 500.
func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, lifecycle.ErrFileTooLarge):
		utils.FailStatus(c, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, lifecycle.ErrInvalidRequest):
		utils.FailStatus(c, http.StatusBadRequest, err.Error())
	default:
		log.Printf("[http] %s %s: %v", c.Request.Method, c.FullPath(), err)
		utils.FailStatus(c, http.StatusInternalServerError, "internal error")
	}
}
