package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"google.golang.org/grpc/credentials"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims represents the JWT claims presented to the actuator
type Claims struct {
	Detector string `json:"detector"`
	jwt.RegisteredClaims
}

// TokenConfig holds the signing settings
type TokenConfig struct {
	Secret   string        // HS256 key, falls back to DOORWATCH_JWT_SECRET
	Detector string        // Identifies this detector instance to the actuator
	Expiry   time.Duration // Token lifetime (default 1h)
}

// TokenManager signs short-lived HS256 tokens that authenticate the detector
// to its actuator. It implements credentials.PerRPCCredentials and caches the
// current token until shortly before it expires.
type TokenManager struct {
	secretKey []byte
	detector  string
	expiry    time.Duration

	mu        sync.Mutex
	token     string
	expiresAt time.Time

	now func() time.Time
}

// NewTokenManager creates a token manager. Without a secret a random one is
// generated, which only makes sense when the actuator does not verify tokens.
func NewTokenManager(cfg TokenConfig) *TokenManager {
	secret := cfg.Secret
	if secret == "" {
		secret = os.Getenv("DOORWATCH_JWT_SECRET")
	}
	if secret == "" {
		randomBytes := make([]byte, 32)
		rand.Read(randomBytes)
		secret = hex.EncodeToString(randomBytes)
	}

	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = time.Hour
	}
	detector := cfg.Detector
	if detector == "" {
		detector = "doorwatch"
	}

	return &TokenManager{
		secretKey: []byte(secret),
		detector:  detector,
		expiry:    expiry,
		now:       time.Now,
	}
}

// GenerateToken creates a new signed token
func (m *TokenManager) GenerateToken() (string, time.Time, error) {
	now := m.now()
	expiresAt := now.Add(m.expiry)

	claims := &Claims{
		Detector: m.detector,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    "doorwatch",
			Subject:   m.detector,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(m.secretKey)
	if err != nil {
		return "", time.Time{}, err
	}

	return tokenString, expiresAt, nil
}

// ValidateToken validates a token and returns its claims
func (m *TokenManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return m.secretKey, nil
	}, jwt.WithTimeFunc(m.now))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Token returns the cached token, signing a new one within a minute of expiry
func (m *TokenManager) Token() (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && m.now().Add(time.Minute).Before(m.expiresAt) {
		return m.token, nil
	}

	token, expiresAt, err := m.GenerateToken()
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	m.token, m.expiresAt = token, expiresAt
	return token, nil
}

// Header returns an HTTP header carrying the bearer token, for the websocket handshake
func (m *TokenManager) Header() (http.Header, error) {
	token, err := m.Token()
	if err != nil {
		return nil, err
	}
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h, nil
}

// GetRequestMetadata implements credentials.PerRPCCredentials
func (m *TokenManager) GetRequestMetadata(ctx context.Context, uri ...string) (map[string]string, error) {
	token, err := m.Token()
	if err != nil {
		return nil, err
	}
	return map[string]string{"authorization": "Bearer " + token}, nil
}

// RequireTransportSecurity implements credentials.PerRPCCredentials. The
// actuator link is plaintext gRPC.
func (m *TokenManager) RequireTransportSecurity() bool {
	return false
}

var _ credentials.PerRPCCredentials = (*TokenManager)(nil)
