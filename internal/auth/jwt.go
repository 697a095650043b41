package auth

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type jwtClaims struct {
	TokenType string `json:"typ"`
	jwt.RegisteredClaims
}

// JWTService signs and verifies HS256 JSON Web Tokens of a single type
type JWTService struct {
	secret    []byte
	tokenType string
}

func NewJWTService(secret, tokenType string) *JWTService {
	return &JWTService{secret: []byte(secret), tokenType: tokenType}
}

// CreateToken issues a token for userID with a fresh token id
func (s *JWTService) CreateToken(userID int64, duration time.Duration) (string, error) {
	if len(s.secret) == 0 {
		return "", ErrInvalidToken
	}

	jti, err := uuid.NewV7()
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims := jwtClaims{
		TokenType: s.tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti.String(),
			Subject:   strconv.FormatInt(userID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
		},
	}

	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// VerifyToken validates signature, expiry and token type
func (s *JWTService) VerifyToken(tokenStr string) (*TokenClaims, error) {
	if len(s.secret) == 0 || strings.TrimSpace(tokenStr) == "" {
		return nil, ErrInvalidToken
	}

	var claims jwtClaims
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	_, err := parser.ParseWithClaims(tokenStr, &claims, func(_ *jwt.Token) (any, error) {
		return s.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	if claims.TokenType != s.tokenType {
		return nil, ErrInvalidToken
	}

	userID, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || userID <= 0 {
		return nil, ErrInvalidToken
	}

	out := &TokenClaims{
		ID:     claims.ID,
		UserID: userID,
		Type:   claims.TokenType,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out, nil
}
