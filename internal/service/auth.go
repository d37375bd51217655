package service

import (
	"Zyncrate/model"
	"Zyncrate/utils"
	"context"
	"errors"
	"log"
	"net/mail"
	"strings"
	"time"

	"gorm.io/gorm"
)

var (
	ErrInvalidEmail   = errors.New("invalid email")
	ErrWeakPassword   = errors.New("password must be at least 6 characters")
	ErrEmailTaken     = errors.New("email already registered")
	ErrBadCredentials = errors.New("invalid email or password")
)

const minPasswordLen = 6

// UserStore is the users table.
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// GuestStore is the guests table.
type GuestStore interface {
	Create(ctx context.Context, guest *model.Guest) error
	Touch(ctx context.Context, id uint64, now time.Time) error
}

// AuthService issues user and guest tokens.
type AuthService struct {
	users    UserStore
	guests   GuestStore
	secret   string
	tokenTTL time.Duration
	guestTTL time.Duration
}

// NewAuthService creates an AuthService.
func NewAuthService(users UserStore, guests GuestStore, secret string, tokenTTL, guestTTL time.Duration) *AuthService {
	return &AuthService{users: users, guests: guests, secret: secret, tokenTTL: tokenTTL, guestTTL: guestTTL}
}

// Register creates a free-plan user and returns a login token.
func (s *AuthService) Register(ctx context.Context, email, password string) (*model.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, "", ErrInvalidEmail
	}
	if len(password) < minPasswordLen {
		return nil, "", ErrWeakPassword
	}
	// 对密码进行加密
	hash, err := utils.GetPwd(password)
	if err != nil {
		return nil, "", err
	}
	user := &model.User{Email: email, PasswordHash: hash, Plan: model.PlanFree}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, "", ErrEmailTaken
		}
		return nil, "", err
	}
	token, err := s.userToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

// Login checks credentials and returns a token.
func (s *AuthService) Login(ctx context.Context, email, password string) (*model.User, string, error) {
	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, "", ErrBadCredentials
	}
	if err != nil {
		return nil, "", err
	}
	// 使用 bcrypt 验证密码
	if !utils.CheckPwd(password, user.PasswordHash) {
		return nil, "", ErrBadCredentials
	}
	token, err := s.userToken(user)
	if err != nil {
		return nil, "", err
	}
	return user, token, nil
}

func (s *AuthService) userToken(user *model.User) (string, error) {
	return utils.GenerateToken(s.secret, utils.Claims{
		Kind:   utils.KindUser,
		UserId: user.ID,
		Email:  user.Email,
		Plan:   user.Plan,
	}, s.tokenTTL)
}

// NewGuestSession records an anonymous session and returns its token.
func (s *AuthService) NewGuestSession(ctx context.Context, ip, userAgent string) (*model.Guest, *utils.Claims, string, error) {
	now := time.Now()
	guest := &model.Guest{
		Token:        utils.GetToken(),
		IPAddress:    ip,
		UserAgent:    userAgent,
		CreatedAt:    now,
		ExpiresAt:    now.Add(s.guestTTL),
		LastActivity: now,
	}
	if err := s.guests.Create(ctx, guest); err != nil {
		return nil, nil, "", err
	}
	claims := utils.Claims{Kind: utils.KindGuest, GuestId: guest.ID}
	claims.ID = guest.Token
	token, err := utils.GenerateToken(s.secret, claims, s.guestTTL)
	if err != nil {
		return nil, nil, "", err
	}
	return guest, &claims, token, nil
}

// TouchGuest records guest activity. Failures are logged only.
func (s *AuthService) TouchGuest(ctx context.Context, guestID uint64) {
	if err := s.guests.Touch(ctx, guestID, time.Now()); err != nil {
		log.Printf("[auth] touch guest %d: %v", guestID, err)
	}
}

// GuestTTL is how long guest sessions last.
func (s *AuthService) GuestTTL() time.Duration {
	return s.guestTTL
}

// TokenTTL is how long user tokens last.
func (s *AuthService) TokenTTL() time.Duration {
	return s.tokenTTL
}
