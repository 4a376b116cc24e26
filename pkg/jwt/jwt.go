package jwt

import (
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrExpiredToken  = errors.New("token has expired")
	ErrInvalidClaim  = errors.New("invalid token claims")
	ErrWrongTokenUse = errors.New("token used for wrong purpose")
)

// Token use labels distinguishing access tokens from refresh tokens
const (
	UseAccess  = "access"
	UseRefresh = "refresh"
)

// UserClaims represents the JWT claims for a member session
type UserClaims struct {
	UserID   string `json:"user_id"`
	Email    string `json:"email,omitempty"`
	TokenUse string `json:"token_use"`
	jwt.RegisteredClaims
}

// TokenManager handles JWT token generation and validation
type TokenManager struct {
	secret     []byte
	issuer     string
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenManager creates a new TokenManager
func NewTokenManager(secret, issuer string, accessTTLMinutes, refreshTTLHours int) *TokenManager {
	return &TokenManager{
		secret:     []byte(secret),
		issuer:     issuer,
		accessTTL:  time.Duration(accessTTLMinutes) * time.Minute,
		refreshTTL: time.Duration(refreshTTLHours) * time.Hour,
	}
}

// GeneratePair creates a fresh access/refresh token pair for a user
func (tm *TokenManager) GeneratePair(userID, email string) (access, refresh string, err error) {
	access, err = tm.generateToken(userID, email, UseAccess, tm.accessTTL)
	if err != nil {
		return "", "", err
	}
	refresh, err = tm.generateToken(userID, email, UseRefresh, tm.refreshTTL)
	if err != nil {
		return "", "", err
	}
	return access, refresh, nil
}

func (tm *TokenManager) generateToken(userID, email, use string, ttl time.Duration) (string, error) {
	now := time.Now()

	claims := UserClaims{
		UserID:   userID,
		Email:    email,
		TokenUse: use,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tm.issuer,
			Subject:   userID,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}

	return signedToken, nil
}

// ValidateToken validates a JWT token and returns the claims.
// wantUse restricts which kind of token is accepted.
func (tm *TokenManager) ValidateToken(tokenString, wantUse string) (*UserClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &UserClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return tm.secret, nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*UserClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaim
	}
	if claims.TokenUse != wantUse {
		return nil, ErrWrongTokenUse
	}

	return claims, nil
}

// ExpiresWithin reports whether the token's exp claim falls inside the
// given window. The signature is NOT verified; this is a client-side
// hint for deciding when to refresh, never an authorization check.
func ExpiresWithin(tokenString string, window time.Duration) (bool, error) {
	parser := jwt.NewParser()
	claims := jwt.MapClaims{}
	if _, _, err := parser.ParseUnverified(tokenString, claims); err != nil {
		return false, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false, ErrInvalidClaim
	}
	return time.Until(exp.Time) < window, nil
}

// TimingSafeCompare performs a timing-safe comparison of two strings
// This prevents timing attacks when comparing tokens
func TimingSafeCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
