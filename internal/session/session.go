// Package session issues and verifies the signed bearer tokens used by every
// protected route.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/campusconnect/backend/internal/models"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrMissing   = errors.New("missing token")
	ErrMalformed = errors.New("malformed token")
	ErrExpired   = errors.New("token expired")
	ErrRevoked   = errors.New("token revoked")
)

const (
	PurposeAccess = "access"
	PurposeReset  = "reset"
)

const revokedPrefix = "session:revoked:"

// Claims carried by every token. Subject is the user id.
type Claims struct {
	Role    models.Role `json:"role,omitempty"`
	Purpose string      `json:"purpose"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret      []byte
	expiry      time.Duration
	resetExpiry time.Duration
	redis       *redis.Client
	log         logrus.FieldLogger

	now   func() time.Time
	newID func() string
}

// NewIssuer builds an Issuer. rdb may be nil, in which case logout cannot revoke
// tokens before they expire.
func NewIssuer(secret string, expiry, resetExpiry time.Duration, rdb *redis.Client, log logrus.FieldLogger) *Issuer {
	return &Issuer{
		secret:      []byte(secret),
		expiry:      expiry,
		resetExpiry: resetExpiry,
		redis:       rdb,
		log:         log,
		now:         time.Now,
		newID:       uuid.NewString,
	}
}

// Issue signs an access token for subject and returns it with its expiry.
func (i *Issuer) Issue(subject string, role models.Role) (string, time.Time, error) {
	return i.sign(subject, role, PurposeAccess, i.expiry)
}

// IssueReset signs a single-purpose password reset token.
func (i *Issuer) IssueReset(subject string) (string, error) {
	token, _, err := i.sign(subject, "", PurposeReset, i.resetExpiry)
	return token, err
}

func (i *Issuer) sign(subject string, role models.Role, purpose string, ttl time.Duration) (string, time.Time, error) {
	now := i.now()
	claims := Claims{
		Role:    role,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			ID:        i.newID(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("signing token: %w", err)
	}
	// the signed exp has whole-second precision; report that instant, not now+ttl
	return signed, claims.ExpiresAt.Time, nil
}

// Verify checks signature, expiry and revocation of an access token. A token is valid
// strictly before its expiry instant.
func (i *Issuer) Verify(ctx context.Context, token string) (*Claims, error) {
	claims, err := i.parse(token, PurposeAccess)
	if err != nil {
		return nil, err
	}
	if i.revoked(ctx, claims.ID) {
		return nil, ErrRevoked
	}
	return claims, nil
}

// VerifyReset checks a password reset token. Callers revoke it once used.
func (i *Issuer) VerifyReset(ctx context.Context, token string) (*Claims, error) {
	claims, err := i.parse(token, PurposeReset)
	if err != nil {
		return nil, err
	}
	if i.revoked(ctx, claims.ID) {
		return nil, ErrRevoked
	}
	return claims, nil
}

func (i *Issuer) parse(token, purpose string) (*Claims, error) {
	if token == "" {
		return nil, ErrMissing
	}
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.now),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, ErrExpired
	case err != nil:
		return nil, ErrMalformed
	}
	if claims.Purpose != purpose || claims.Subject == "" {
		return nil, ErrMalformed
	}
	return claims, nil
}

// Revoke blacklists the token id until the token would have expired anyway.
func (i *Issuer) Revoke(ctx context.Context, claims *Claims) error {
	if i.redis == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(i.now())
	if ttl <= 0 {
		return nil
	}
	return i.redis.Set(ctx, revokedPrefix+claims.ID, "1", ttl).Err()
}

// revoked fails open: a token is only rejected when redis confirms the blacklist entry.
func (i *Issuer) revoked(ctx context.Context, id string) bool {
	if i.redis == nil || id == "" {
		return false
	}
	n, err := i.redis.Exists(ctx, revokedPrefix+id).Result()
	if err != nil {
		i.log.WithError(err).Warn("Revocation lookup failed")
		return false
	}
	return n > 0
}

// FromHeader extracts the token from an "Authorization: Bearer <token>" header value.
func FromHeader(header string) (string, error) {
	if header == "" {
		return "", ErrMissing
	}
	parts := strings.Split(header, " ")
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", ErrMalformed
	}
	return parts[1], nil
}
