package auth

import (
	"fmt"
	"time"

	"github.com/BradenHooton/loginsentry/internal/models"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ServiceTokenManager issues and validates the bearer tokens that upstream
// authentication services present when posting login events.
type ServiceTokenManager struct {
	secret []byte
	expiry time.Duration
}

// NewServiceTokenManager creates a new ServiceTokenManager
func NewServiceTokenManager(secret string, expiry time.Duration) *ServiceTokenManager {
	return &ServiceTokenManager{
		secret: []byte(secret),
		expiry: expiry,
	}
}

// GenerateToken creates a signed token for the named calling service
func (tm *ServiceTokenManager) GenerateToken(service string) (string, error) {
	claims := &models.ServiceClaims{
		Service: service,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tm.expiry)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			NotBefore: jwt.NewNumericDate(time.Now()),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(tm.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign service token: %w", err)
	}
	return tokenString, nil
}

// ValidateToken parses and verifies a service token
func (tm *ServiceTokenManager) ValidateToken(tokenString string) (*models.ServiceClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.ServiceClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return tm.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(*models.ServiceClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.Service == "" {
		return nil, fmt.Errorf("token missing service claim")
	}

	return claims, nil
}
