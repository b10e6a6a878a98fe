package service

import (
	"context"
	"fmt"
	"time"

	"github.com/boddenberg/banking-aggregator-bfa-go/internal/domain"
	"github.com/boddenberg/banking-aggregator-bfa-go/internal/port"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

const (
	tokenIssuer     = "bfa-api"
	tokenTypeAccess = "access"
)

// Claims are the custom claims carried by access tokens. The subject is the
// user id.
type Claims struct {
	Type string `json:"type"`
	jwt.RegisteredClaims
}

// IdentityService answers "who is the current user" from HS256 bearer tokens
// and the user store. Login and registration live elsewhere.
type IdentityService struct {
	users     port.UserStore
	jwtSecret []byte
	accessTTL time.Duration
	logger    *zap.Logger
}

// NewIdentityService creates the identity provider.
func NewIdentityService(users port.UserStore, jwtSecret string, accessTTL time.Duration, logger *zap.Logger) *IdentityService {
	return &IdentityService{
		users:     users,
		jwtSecret: []byte(jwtSecret),
		accessTTL: accessTTL,
		logger:    logger,
	}
}

// IssueAccessToken signs an access token for userID.
func (s *IdentityService) IssueAccessToken(userID string) (string, time.Time, error) {
	now := time.Now()
	expires := now.Add(s.accessTTL)
	claims := Claims{
		Type: tokenTypeAccess,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
			Issuer:    tokenIssuer,
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return signed, expires, nil
}

// ValidateAccessToken parses and verifies an access token.
func (s *IdentityService) ValidateAccessToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, &domain.ErrUnauthorized{Message: "invalid or expired token"}
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "invalid token"}
	}
	if claims.Type != tokenTypeAccess {
		return nil, &domain.ErrUnauthorized{Message: "invalid token type"}
	}
	if claims.Subject == "" {
		return nil, &domain.ErrUnauthorized{Message: "token has no subject"}
	}
	return claims, nil
}

// CurrentUser returns the user record for an authenticated user id. A user
// that no longer exists is treated as not logged in.
func (s *IdentityService) CurrentUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, &domain.ErrUnauthorized{Message: "not logged in"}
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	if user == nil {
		s.logger.Warn("token subject has no user record", zap.String("user_id", userID))
		return nil, &domain.ErrUnauthorized{Message: "not logged in"}
	}
	return user, nil
}
