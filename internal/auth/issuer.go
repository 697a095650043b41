package auth

import (
	"fmt"
	"time"
)

// Supported token formats
const (
	FormatJWT    = "jwt"
	FormatPaseto = "paseto"
)

// TokenPair is an access token with its matching refresh token
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// Issuer mints and parses access and refresh tokens, each signed with its own secret
type Issuer struct {
	access     TokenService
	refresh    TokenService
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewIssuer(access, refresh TokenService, accessTTL, refreshTTL time.Duration) *Issuer {
	return &Issuer{
		access:     access,
		refresh:    refresh,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

// NewTokenServices builds the access and refresh token services for format
func NewTokenServices(format, accessSecret, refreshSecret string) (access, refresh TokenService, err error) {
	switch format {
	case FormatJWT, "":
		return NewJWTService(accessSecret, TokenTypeAccess), NewJWTService(refreshSecret, TokenTypeRefresh), nil
	case FormatPaseto:
		a, err := NewPasetoService(PasetoKeyFromSecret(accessSecret), TokenTypeAccess)
		if err != nil {
			return nil, nil, err
		}
		r, err := NewPasetoService(PasetoKeyFromSecret(refreshSecret), TokenTypeRefresh)
		if err != nil {
			return nil, nil, err
		}
		return a, r, nil
	default:
		return nil, nil, fmt.Errorf("unknown token format %q", format)
	}
}

// AccessTTL is how long issued access tokens stay valid
func (i *Issuer) AccessTTL() time.Duration { return i.accessTTL }

// RefreshTTL is how long issued refresh tokens stay valid
func (i *Issuer) RefreshTTL() time.Duration { return i.refreshTTL }

// IssueAccessToken creates a new access token for userID
func (i *Issuer) IssueAccessToken(userID int64) (string, error) {
	token, err := i.access.CreateToken(userID, i.accessTTL)
	if err != nil {
		return "", fmt.Errorf("failed to create access token: %w", err)
	}
	return token, nil
}

// IssueTokenPair creates a new access and refresh token for userID
func (i *Issuer) IssueTokenPair(userID int64) (TokenPair, error) {
	access, err := i.IssueAccessToken(userID)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := i.refresh.CreateToken(userID, i.refreshTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("failed to create refresh token: %w", err)
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// ParseAccessToken verifies an access token
func (i *Issuer) ParseAccessToken(token string) (*TokenClaims, error) {
	return parse(i.access, token)
}

// ParseRefreshToken verifies a refresh token
func (i *Issuer) ParseRefreshToken(token string) (*TokenClaims, error) {
	return parse(i.refresh, token)
}

func parse(svc TokenService, token string) (*TokenClaims, error) {
	claims, err := svc.VerifyToken(token)
	if err != nil {
		return nil, err
	}
	if claims.ID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
