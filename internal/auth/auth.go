// Package auth validates inbound bearer credentials against the account
// store. Credentials are issued and revoked elsewhere; this package only
// resolves them to an owner id.
package auth

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthorized = errors.New("unauthorized")

type PersonalAccessToken struct {
	UserID  int64
	Expired time.Time
}

type TokenRepo interface {
	GetPATByHash(ctx context.Context, hash string) (*PersonalAccessToken, error)
	GetUserIDByUsername(ctx context.Context, username string) (int64, error)
}

type Authenticator struct {
	repo   TokenRepo
	secret []byte
}

func NewAuthenticator(repo TokenRepo, jwtSecret string) *Authenticator {
	return &Authenticator{repo: repo, secret: []byte(jwtSecret)}
}

// Authenticate resolves an Authorization header to an owner id. Supported
// schemes: PAT (sha256 of the raw token looked up in the token table) and
// JWT/Bearer (HS256, subject resolved to a user).
func (a *Authenticator) Authenticate(ctx context.Context, header string) (int64, error) {
	if header == "" {
		return 0, fmt.Errorf("%w: missing Authorization header", ErrUnauthorized)
	}

	prefix, token, ok := strings.Cut(header, " ")
	if !ok {
		return 0, fmt.Errorf("%w: invalid Authorization header", ErrUnauthorized)
	}

	switch prefix {
	case "PAT":
		return a.authenticatePAT(ctx, token)
	case "JWT", "Bearer":
		return a.authenticateJWT(ctx, token)
	default:
		return 0, fmt.Errorf("%w: unsupported scheme %q", ErrUnauthorized, prefix)
	}
}

func (a *Authenticator) authenticatePAT(ctx context.Context, token string) (int64, error) {
	hash := fmt.Sprintf("%x", sha256.Sum256([]byte(token)))

	stored, err := a.repo.GetPATByHash(ctx, hash)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: invalid PAT token", ErrUnauthorized)
	}
	if err != nil {
		return 0, err
	}
	if stored.Expired.Before(time.Now()) {
		return 0, fmt.Errorf("%w: expired PAT token", ErrUnauthorized)
	}
	return stored.UserID, nil
}

func (a *Authenticator) authenticateJWT(ctx context.Context, token string) (int64, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrUnauthorized, err)
	}

	sub, err := parsed.Claims.GetSubject()
	if err != nil || sub == "" {
		return 0, fmt.Errorf("%w: token has no subject", ErrUnauthorized)
	}

	userID, err := a.repo.GetUserIDByUsername(ctx, sub)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, fmt.Errorf("%w: user not found", ErrUnauthorized)
	}
	if err != nil {
		return 0, err
	}
	return userID, nil
}
