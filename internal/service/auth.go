package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"campustrade-api/internal/config"
	"campustrade-api/internal/model"
	"campustrade-api/internal/repository"
	"campustrade-api/pkg/uid"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthService registers users and resolves bearer tokens to identities.
type AuthService struct {
	store    repository.Store
	sessions *TokenService
	jwt      *JWTService
	cfg      config.AuthConfig
	log      *zap.Logger
}

// NewAuthService creates an auth service. With sessions set, logins receive
// Redis session tokens; otherwise they receive JWTs.
func NewAuthService(store repository.Store, sessions *TokenService, jwtService *JWTService, cfg config.AuthConfig, log *zap.Logger) *AuthService {
	return &AuthService{
		store:    store,
		sessions: sessions,
		jwt:      jwtService,
		cfg:      cfg,
		log:      log.Named("auth"),
	}
}

// Register creates an account. Configured admin emails get administrator rights.
func (s *AuthService) Register(ctx context.Context, email, username, password string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	username = strings.TrimSpace(username)
	if email == "" {
		return nil, invalid("email", "email is required")
	}
	if err := checkUsername(username); err != nil {
		return nil, err
	}
	if err := checkPassword("password", password); err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, storeErr("failed to hash password", err)
	}

	u := &model.User{
		ID:           uid.New(),
		Email:        email,
		Username:     username,
		PasswordHash: string(hash),
		IsAdmin:      s.cfg.IsAdminEmail(email),
	}
	if err := s.store.Users().Create(ctx, u); err != nil {
		if isDuplicate(err) {
			return nil, ErrEmailTaken
		}
		return nil, storeErr("failed to create user", err)
	}

	s.log.Info("user registered", zap.String("user_id", u.ID), zap.Bool("admin", u.IsAdmin))
	return u, nil
}

// Login checks credentials and issues a token. login is an email address or
// a username, matched case-insensitively.
func (s *AuthService) Login(ctx context.Context, login, password string) (string, *model.User, error) {
	u, err := s.store.Users().GetByLogin(ctx, login)
	if err != nil {
		return "", nil, storeErr("failed to get user", err)
	}
	if u == nil {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	data := model.TokenData{UserID: u.ID, Username: u.Username, IsAdmin: u.IsAdmin}
	var token string
	if s.sessions != nil {
		token, err = s.sessions.Issue(ctx, data)
	} else {
		token, err = s.jwt.Issue(ctx, data)
	}
	if err != nil {
		return "", nil, storeErr("failed to issue token", err)
	}

	at := time.Now().UTC()
	if err := s.store.Users().TouchLogin(ctx, u.ID, at); err != nil {
		s.log.Warn("failed to record login", zap.String("user_id", u.ID), zap.Error(err))
	} else {
		u.LastLoginAt = &at
	}
	return token, u, nil
}

// Authenticate resolves a session token or JWT.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*model.TokenData, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}

	var (
		data *model.TokenData
		err  error
	)
	switch {
	case IsSessionToken(token):
		if s.sessions == nil {
			return nil, ErrInvalidToken
		}
		data, err = s.sessions.Validate(ctx, token)
	case s.jwt != nil:
		data, err = s.jwt.Validate(ctx, token)
	default:
		return nil, ErrInvalidToken
	}
	if err != nil {
		if errors.Is(err, ErrInvalidToken) {
			return nil, err
		}
		return nil, storeErr("failed to validate token", err)
	}
	return data, nil
}

// Logout revokes a session token. JWTs simply expire.
func (s *AuthService) Logout(ctx context.Context, token string) error {
	if s.sessions == nil || !IsSessionToken(token) {
		return nil
	}
	if err := s.sessions.Revoke(ctx, token); err != nil {
		return storeErr("failed to revoke token", err)
	}
	return nil
}

// User returns a user's public profile.
func (s *AuthService) User(ctx context.Context, id string) (*model.User, error) {
	u, err := s.store.Users().GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("failed to get user", err)
	}
	if u == nil {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// TokenTTL returns the lifetime of issued tokens.
func (s *AuthService) TokenTTL() time.Duration {
	if s.cfg.TokenTTL > 0 {
		return s.cfg.TokenTTL
	}
	return DefaultTokenTTL
}

// Refresh extends a session token in place, or reissues a JWT.
func (s *AuthService) Refresh(ctx context.Context, token string) (string, error) {
	data, err := s.Authenticate(ctx, token)
	if err != nil {
		return "", err
	}
	if IsSessionToken(token) {
		if err := s.sessions.Refresh(ctx, token); err != nil {
			return "", storeErr("failed to refresh token", err)
		}
		return token, nil
	}

	fresh, err := s.jwt.Issue(ctx, *data)
	if err != nil {
		return "", storeErr("failed to issue token", err)
	}
	return fresh, nil
}
