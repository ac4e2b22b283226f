package jwtauth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt"
	"github.com/google/uuid"

	"github.com/ixdlabs/go-backend-template/internal/backend/domain/models"
)

const (
	TypeAccess  = "access"
	TypeRefresh = "refresh"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrWrongType    = errors.New("unexpected token type")
)

// TokenUser is the user info embedded into access tokens so that
// handlers can act without a database round trip.
type TokenUser struct {
	ID        uuid.UUID       `json:"id"`
	Type      models.UserType `json:"type"`
	Username  string          `json:"username"`
	FirstName string          `json:"first_name"` //nolint:tagliatelle
	LastName  string          `json:"last_name"`  //nolint:tagliatelle
}

type AccessClaims struct {
	Type  string    `json:"type"`
	User  TokenUser `json:"user"`
	Scope string    `json:"scope"`
	jwt.StandardClaims
}

type RefreshClaims struct {
	Type  string `json:"type"`
	Scope string `json:"scope"`
	jwt.StandardClaims
}

// Scope renders the space separated OAuth2 scope string for a user.
func Scope(t models.UserType) string {
	return strings.Join(t.Scopes(), " ")
}

func NewAccessToken(u models.User, ttl time.Duration, secret string) (string, error) {
	now := time.Now()
	claims := AccessClaims{
		Type: TypeAccess,
		User: TokenUser{
			ID:        u.ID,
			Type:      u.Type,
			Username:  u.Username,
			FirstName: u.FirstName,
			LastName:  u.LastName,
		},
		Scope: Scope(u.Type),
		StandardClaims: jwt.StandardClaims{
			Subject:   u.ID.String(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token error: %w", err)
	}

	return token, nil
}

func NewRefreshToken(u models.User, ttl time.Duration, secret string) (string, error) {
	now := time.Now()
	claims := RefreshClaims{
		Type:  TypeRefresh,
		Scope: Scope(u.Type),
		StandardClaims: jwt.StandardClaims{
			Subject:   u.ID.String(),
			IssuedAt:  now.Unix(),
			ExpiresAt: now.Add(ttl).Unix(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token error: %w", err)
	}

	return token, nil
}

func ParseAccess(token, secret string) (AccessClaims, error) {
	var claims AccessClaims
	if err := parse(token, secret, &claims); err != nil {
		return AccessClaims{}, err
	}

	if claims.Type != TypeAccess {
		return AccessClaims{}, ErrWrongType
	}

	return claims, nil
}

func ParseRefresh(token, secret string) (RefreshClaims, error) {
	var claims RefreshClaims
	if err := parse(token, secret, &claims); err != nil {
		return RefreshClaims{}, err
	}

	if claims.Type != TypeRefresh {
		return RefreshClaims{}, ErrWrongType
	}

	return claims, nil
}

func parse(token, secret string, claims jwt.Claims) error {
	t, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("%w: unexpected signing method %v", ErrInvalidToken, t.Header["alg"])
		}

		return []byte(secret), nil
	})
	if err != nil {
		return fmt.Errorf("parse token error: %w", err)
	}

	if !t.Valid {
		return ErrInvalidToken
	}

	return nil
}
