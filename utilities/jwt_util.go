package utilities

import (
	"errors"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token expiration times
const (
	AccessTokenExpiry  = time.Minute * 15
	RefreshTokenExpiry = time.Hour * 24 * 7
)

// Claims struct
type Claims struct {
	UserID uint   `json:"user_id"`
	Email  string `json:"email"`
	jwt.RegisteredClaims
}

func accessSecret() []byte {
	if secret := os.Getenv("JWT_ACCESS_SECRET"); secret != "" {
		return []byte(secret)
	}
	return []byte("dev-access-secret")
}

func refreshSecret() []byte {
	if secret := os.Getenv("JWT_REFRESH_SECRET"); secret != "" {
		return []byte(secret)
	}
	return []byte("dev-refresh-secret")
}

// GenerateTokens creates both access and refresh tokens for a user.
// Token issuance normally happens in the auth service that fronts this
// API; this is kept for local development and tests.
func GenerateTokens(userID uint, email string) (string, string, error) {
	accessToken, err := generateToken(userID, email, accessSecret(), AccessTokenExpiry)
	if err != nil {
		return "", "", err
	}

	refreshToken, err := generateToken(userID, email, refreshSecret(), RefreshTokenExpiry)
	if err != nil {
		return "", "", err
	}

	return accessToken, refreshToken, nil
}

// ValidateToken verifies the token and extracts claims
func ValidateToken(tokenStr string, isRefresh bool) (*Claims, error) {
	secret := accessSecret()
	if isRefresh {
		secret = refreshSecret()
	}

	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return secret, nil
	})
	if err != nil {
		return nil, errors.New("invalid or malformed token")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token claims")
	}

	if claims.ExpiresAt != nil && claims.ExpiresAt.Time.Before(time.Now()) {
		return nil, errors.New("token has expired")
	}

	return claims, nil
}

// Helper function to generate JWT token
func generateToken(userID uint, email string, secret []byte, expiry time.Duration) (string, error) {
	claims := &Claims{
		UserID: userID,
		Email:  email,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Subject:   email,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(secret)
}
