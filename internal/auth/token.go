package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// DefaultTokenTTL is the lifetime of a session token when none is configured.
const DefaultTokenTTL = time.Hour

var (
	ErrMissingSecret  = errors.New("token secret is not configured")
	ErrTokenMalformed = errors.New("token is malformed or invalid")
	ErrMissingUserID  = errors.New("token is missing userId")
	ErrTokenExpired   = errors.New("token has expired")
)

// Claims are the session token claims.
type Claims struct {
	UserID int `json:"userId,omitempty"`
	jwt.RegisteredClaims
}

// Issuer signs session tokens.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewIssuer returns an Issuer signing with secret. A blank secret is rejected
// so that unsigned tokens are never produced.
func NewIssuer(secret string, ttl time.Duration) (*Issuer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}, nil
}

// Issue returns a token binding userID that expires after the issuer's TTL.
func (i *Issuer) Issue(userID int) (string, error) {
	now := i.now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// TTL returns the lifetime of issued tokens.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Verifier checks session tokens.
type Verifier struct {
	secret []byte
	now    func() time.Time
}

// NewVerifier returns a Verifier for secret. An empty secret is accepted here
// and reported as ErrMissingSecret on every Verify call.
func NewVerifier(secret string) *Verifier {
	if strings.TrimSpace(secret) == "" {
		secret = ""
	}
	return &Verifier{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Verify checks the token's signature, identity claim and expiry, in that
// order, and returns the user id it carries.
func (v *Verifier) Verify(tokenString string) (int, error) {
	if len(v.secret) == 0 {
		return 0, ErrMissingSecret
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}

	if claims.UserID < 1 {
		return 0, ErrMissingUserID
	}

	// Expiry is checked here rather than by the parser so that it is reported
	// separately from signature failures.
	if claims.ExpiresAt == nil {
		return 0, fmt.Errorf("%w: missing exp", ErrTokenMalformed)
	}
	if !v.now().Before(claims.ExpiresAt.Time) {
		return 0, ErrTokenExpired
	}

	return claims.UserID, nil
}
