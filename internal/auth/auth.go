// Package auth issues and verifies user sessions. It is the application-side
// adapter for the authentication provider: JWT session tokens plus bcrypt
// password hashing.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

// Claims is the payload inside every session token.
type Claims struct {
	UserID  string `json:"user_id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
	Purpose string `json:"purpose,omitempty"`
	jwt.RegisteredClaims
}

const (
	purposeSession       = ""
	purposePasswordReset = "password_reset"
)

// Provider issues and verifies sessions for a user id + email pair.
type Provider struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewProvider returns a provider signing with the given HMAC secret.
func NewProvider(secret string, ttl time.Duration) *Provider {
	return &Provider{
		secret: []byte(secret),
		ttl:    ttl,
		now:    time.Now,
	}
}

// IssueSession creates a signed session token.
func (p *Provider) IssueSession(userID, email string, isAdmin bool) (string, error) {
	return p.sign(userID, email, isAdmin, purposeSession, p.ttl)
}

// IssuePasswordReset creates a short-lived token usable only for the
// password-reset flow.
func (p *Provider) IssuePasswordReset(userID, email string) (string, error) {
	return p.sign(userID, email, false, purposePasswordReset, time.Hour)
}

func (p *Provider) sign(userID, email string, isAdmin bool, purpose string, ttl time.Duration) (string, error) {
	now := p.now()
	claims := Claims{
		UserID:  userID,
		Email:   email,
		IsAdmin: isAdmin,
		Purpose: purpose,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "kollektiv",
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(p.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifySession validates a session token and returns its claims.
func (p *Provider) VerifySession(tokenString string) (*Claims, error) {
	return p.verify(tokenString, purposeSession)
}

// VerifyPasswordReset validates a password-reset token.
func (p *Provider) VerifyPasswordReset(tokenString string) (*Claims, error) {
	return p.verify(tokenString, purposePasswordReset)
}

func (p *Provider) verify(tokenString, purpose string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{},
		func(token *jwt.Token) (any, error) {
			if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
			}
			return p.secret, nil
		},
		jwt.WithTimeFunc(func() time.Time { return p.now() }),
	)
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Purpose != purpose {
		return nil, errors.New("token purpose mismatch")
	}
	return claims, nil
}

// HashPassword hashes a plaintext password with bcrypt.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hashed), nil
}

// CheckPassword reports whether a plaintext password matches its hash.
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
