package token

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims structure for custom claims in JWT
// 舊 token 帶 user_id，新版只帶 sub
type Claims struct {
	MemberID  string `json:"user_id,omitempty"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
	Role      string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// UserID resolve identity from user_id or sub
func (c *Claims) UserID() string {
	if c.MemberID != "" {
		return c.MemberID
	}
	return c.Subject
}

// DisplayName first + last name
func (c *Claims) DisplayName() string {
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

var (
	// ErrMissingToken no credential in request
	ErrMissingToken = errors.New("missing token")
	// ErrInvalidToken signature / claims invalid
	ErrInvalidToken = errors.New("invalid token")
)

// Verifier verify HMAC signed token
type Verifier struct {
	secret           []byte
	verifyExpiration bool
}

// NewVerifier create Verifier
func NewVerifier(secret string, verifyExpiration bool) *Verifier {
	return &Verifier{secret: []byte(secret), verifyExpiration: verifyExpiration}
}

// Verify parses a JWT and extracts the Claims
func (v *Verifier) Verify(tokenStr string) (*Claims, error) {
	if tokenStr == "" {
		return nil, ErrMissingToken
	}

	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{
		jwt.SigningMethodHS256.Alg(),
		jwt.SigningMethodHS384.Alg(),
		jwt.SigningMethodHS512.Alg(),
	})}
	if !v.verifyExpiration {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.UserID() == "" {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Sign generates a HS256 token, used by tests and local tooling
func Sign(secret string, claims Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims.IssuedAt = jwt.NewNumericDate(now)
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
