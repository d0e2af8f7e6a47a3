// Package auth mints and validates WOPI access tokens.
//
// Tokens are HS256 JWTs bound to one file: the WOPI client passes them back
// verbatim in the access_token query parameter of every request for that
// file. The subject is the user the host issued the token to.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/marmos91/dittowopi/internal/clock"
)

var (
	// ErrInvalidToken is returned for tokens that fail signature, expiry or
	// claim checks.
	ErrInvalidToken = errors.New("invalid access token")

	// ErrFileMismatch is returned when a valid token was issued for another file.
	ErrFileMismatch = errors.New("access token was issued for a different file")

	// ErrNoSecret is returned by NewIssuer without a signing secret.
	ErrNoSecret = errors.New("auth: signing secret is required")
)

const defaultTTL = 10 * time.Hour

// Claims are the JWT claims carried by an access token.
type Claims struct {
	jwt.RegisteredClaims

	// FileID is the file the token grants access to.
	FileID string `json:"fid"`

	// Container is the storage container of the file.
	Container string `json:"ctr,omitempty"`

	// UserName is a display name for CheckFileInfo.UserFriendlyName.
	UserName string `json:"name,omitempty"`
}

// Grant describes who a token is for.
type Grant struct {
	UserID    string
	UserName  string
	FileID    string
	Container string
}

// IssuerConfig configures an Issuer.
type IssuerConfig struct {
	// Secret is the HMAC key.
	Secret []byte

	// Issuer is written to and required in the iss claim.
	Issuer string

	// TTL is the token lifetime. Defaults to 10h.
	TTL time.Duration

	// Clock is optional.
	Clock clock.Clock
}

// Issuer mints and validates access tokens.
type Issuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	clock  clock.Clock
}

// NewIssuer creates an Issuer.
func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrNoSecret
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = defaultTTL
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}

	return &Issuer{
		secret: cfg.Secret,
		issuer: cfg.Issuer,
		ttl:    ttl,
		clock:  clk,
	}, nil
}

// Issue mints a token for grant and returns it with its expiry.
func (i *Issuer) Issue(grant Grant) (string, time.Time, error) {
	if grant.FileID == "" {
		return "", time.Time{}, fmt.Errorf("%w: file id is required", ErrInvalidToken)
	}

	now := i.clock.Now()
	expires := now.Add(i.ttl)

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   grant.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		FileID:    grant.FileID,
		Container: grant.Container,
		UserName:  grant.UserName,
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign access token: %w", err)
	}
	return token, expires, nil
}

// Validate parses token and checks it grants access to fileID.
func (i *Issuer) Validate(token, fileID string) (*Claims, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrInvalidToken)
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(i.clock.Now),
	}
	if i.issuer != "" {
		opts = append(opts, jwt.WithIssuer(i.issuer))
	}

	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	if claims.FileID != fileID {
		return nil, ErrFileMismatch
	}
	return claims, nil
}
