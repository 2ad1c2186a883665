package service

import (
	"fmt"
	"time"

	"github.com/DianaPortal/NTT-AccountService/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// AuthService issues and validates the HS256 bearer tokens protecting the
// /v1 routes. Credentials come from configuration; there is no user store.
type AuthService struct {
	username     string
	passwordHash string
	jwtSecret    []byte
	accessTTL    time.Duration
	logger       *zap.Logger
}

// JWTClaims are the claims carried by an access token.
type JWTClaims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

func NewAuthService(username, passwordBcrypt, jwtSecret string, accessTTL time.Duration, logger *zap.Logger) *AuthService {
	return &AuthService{
		username:     username,
		passwordHash: passwordBcrypt,
		jwtSecret:    []byte(jwtSecret),
		accessTTL:    accessTTL,
		logger:       logger,
	}
}

// Login verifies the configured credentials and returns a signed token.
func (s *AuthService) Login(req *domain.LoginRequest) (*domain.LoginResponse, error) {
	if req == nil || req.Username != s.username {
		return nil, &domain.ErrUnauthorized{Message: "Credenciales inválidas"}
	}
	if err := bcrypt.CompareHashAndPassword([]byte(s.passwordHash), []byte(req.Password)); err != nil {
		s.logger.Warn("auth: failed login attempt", zap.String("username", req.Username))
		return nil, &domain.ErrUnauthorized{Message: "Credenciales inválidas"}
	}

	now := time.Now()
	claims := JWTClaims{
		Username: req.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   req.Username,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.accessTTL)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, err
	}

	return &domain.LoginResponse{
		TokenType: "Bearer",
		Token:     token,
		ExpiresIn: int64(s.accessTTL.Seconds()),
	}, nil
}

// ValidateAccessToken parses a bearer token and returns its claims.
func (s *AuthService) ValidateAccessToken(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return s.jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido o expirado"}
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return nil, &domain.ErrUnauthorized{Message: "Token inválido o expirado"}
	}
	return claims, nil
}
