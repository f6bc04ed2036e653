package credentials

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when the token cannot be parsed as a JWT
	ErrInvalidToken = errors.New("invalid token")

	// ErrNoExpiry is returned when the token has no exp claim
	ErrNoExpiry = errors.New("token has no exp claim")
)

// TokenInfo is what the client can learn from an access token locally
type TokenInfo struct {
	Subject   string
	Email     string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// Expired reports whether the token is past its exp claim
func (i *TokenInfo) Expired() bool {
	return !i.ExpiresAt.IsZero() && time.Now().After(i.ExpiresAt)
}

// InspectToken reads the claims of an access token without verifying its
// signature. The server is the authority on validity; the client only uses
// the claims for display and bookkeeping.
func InspectToken(tokenString string) (*TokenInfo, error) {
	if tokenString == "" {
		return nil, ErrInvalidToken
	}

	token, _, err := new(jwt.Parser).ParseUnverified(tokenString, jwt.MapClaims{})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	info := &TokenInfo{}
	info.Subject, _ = claims.GetSubject()
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		info.ExpiresAt = exp.Time
	}
	if iat, err := claims.GetIssuedAt(); err == nil && iat != nil {
		info.IssuedAt = iat.Time
	}

	// email can be in either "email" or "username"
	if email, ok := claims["email"].(string); ok {
		info.Email = email
	} else if username, ok := claims["username"].(string); ok {
		info.Email = username
	}
	if role, ok := claims["role"].(string); ok {
		info.Role = role
	}

	return info, nil
}

// TokenExpiry returns the exp claim of an access token
func TokenExpiry(tokenString string) (time.Time, error) {
	info, err := InspectToken(tokenString)
	if err != nil {
		return time.Time{}, err
	}
	if info.ExpiresAt.IsZero() {
		return time.Time{}, ErrNoExpiry
	}
	return info.ExpiresAt, nil
}
