package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"campustrade-api/internal/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

const (
	// TokenPrefix marks opaque session tokens.
	TokenPrefix = "cmt_"

	// DefaultTokenTTL is used when no lifetime is configured.
	DefaultTokenTTL = 24 * time.Hour

	// TokenRedisKeyPrefix is the Redis key prefix for sessions.
	TokenRedisKeyPrefix = "campustrade:session:"
)

// TokenIssuer issues and checks bearer tokens.
type TokenIssuer interface {
	Issue(ctx context.Context, data model.TokenData) (string, error)
	Validate(ctx context.Context, token string) (*model.TokenData, error)
	Revoke(ctx context.Context, token string) error
}

// TokenService keeps opaque session tokens in Redis.
type TokenService struct {
	redis redis.UniversalClient
	ttl   time.Duration
}

// NewTokenService creates a session token service.
func NewTokenService(client redis.UniversalClient, ttl time.Duration) *TokenService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &TokenService{redis: client, ttl: ttl}
}

// Issue creates a session token and stores its data in Redis.
func (s *TokenService) Issue(ctx context.Context, data model.TokenData) (string, error) {
	tokenBytes := make([]byte, 32)
	if _, err := rand.Read(tokenBytes); err != nil {
		return "", fmt.Errorf("failed to generate token: %w", err)
	}
	token := TokenPrefix + hex.EncodeToString(tokenBytes)

	data.CreatedAt = time.Now().UTC()
	data.ExpiresAt = data.CreatedAt.Add(s.ttl)

	payload, err := json.Marshal(data)
	if err != nil {
		return "", fmt.Errorf("failed to serialize token data: %w", err)
	}
	if err := s.redis.Set(ctx, TokenRedisKeyPrefix+token, payload, s.ttl).Err(); err != nil {
		return "", fmt.Errorf("failed to store token: %w", err)
	}
	return token, nil
}

// Validate returns the data bound to a live session token.
func (s *TokenService) Validate(ctx context.Context, token string) (*model.TokenData, error) {
	if !IsSessionToken(token) {
		return nil, ErrInvalidToken
	}

	key := TokenRedisKeyPrefix + token
	payload, err := s.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}

	var data model.TokenData
	if err := json.Unmarshal(payload, &data); err != nil {
		return nil, fmt.Errorf("failed to parse token data: %w", err)
	}
	if time.Now().After(data.ExpiresAt) {
		s.redis.Del(ctx, key)
		return nil, ErrInvalidToken
	}
	return &data, nil
}

// Revoke deletes a session.
func (s *TokenService) Revoke(ctx context.Context, token string) error {
	if err := s.redis.Del(ctx, TokenRedisKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

// Refresh extends the lifetime of a live session.
func (s *TokenService) Refresh(ctx context.Context, token string) error {
	data, err := s.Validate(ctx, token)
	if err != nil {
		return err
	}
	data.ExpiresAt = time.Now().UTC().Add(s.ttl)

	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to serialize token data: %w", err)
	}
	return s.redis.Set(ctx, TokenRedisKeyPrefix+token, payload, s.ttl).Err()
}

// IsSessionToken reports whether token has the session token shape.
func IsSessionToken(token string) bool {
	return strings.HasPrefix(token, TokenPrefix) && len(token) > len(TokenPrefix)
}

// JWTService issues stateless HS256 tokens. Revocation is not supported;
// tokens lapse at expiry.
type JWTService struct {
	secret []byte
	ttl    time.Duration
	issuer string
}

type jwtClaims struct {
	Username string `json:"username"`
	IsAdmin  bool   `json:"is_admin"`
	jwt.RegisteredClaims
}

// NewJWTService creates a JWT issuer.
func NewJWTService(secret string, ttl time.Duration, issuer string) *JWTService {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &JWTService{secret: []byte(secret), ttl: ttl, issuer: issuer}
}

// Issue signs a token for data.UserID.
func (s *JWTService) Issue(ctx context.Context, data model.TokenData) (string, error) {
	now := time.Now().UTC()
	claims := jwtClaims{
		Username: data.Username,
		IsAdmin:  data.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   data.UserID,
			Issuer:    s.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return token, nil
}

// Validate verifies the signature and expiry.
func (s *JWTService) Validate(ctx context.Context, token string) (*model.TokenData, error) {
	var claims jwtClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return nil, ErrInvalidToken.Wrap(err)
	}
	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	data := &model.TokenData{
		UserID:   claims.Subject,
		Username: claims.Username,
		IsAdmin:  claims.IsAdmin,
	}
	if claims.IssuedAt != nil {
		data.CreatedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		data.ExpiresAt = claims.ExpiresAt.Time
	}
	return data, nil
}

// Revoke is a no-op for stateless tokens.
func (s *JWTService) Revoke(ctx context.Context, token string) error {
	return nil
}

var (
	_ TokenIssuer = (*TokenService)(nil)
	_ TokenIssuer = (*JWTService)(nil)
)
