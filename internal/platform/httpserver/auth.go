package httpserver

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"animevote/contexts/anime-voting/voting-engine/domain/entities"

	"github.com/golang-jwt/jwt/v5"
)

var (
	errMissingToken = errors.New("bearer token is required")
	errInvalidToken = errors.New("bearer token is invalid")
)

// Claims is the token payload issued by the external auth service. The user
// id travels in the standard subject claim.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// TokenVerifier checks HS256 bearer tokens and turns them into actors.
type TokenVerifier struct {
	secret []byte
}

func NewTokenVerifier(secret string) TokenVerifier {
	return TokenVerifier{secret: []byte(strings.TrimSpace(secret))}
}

// Actor resolves the caller. Without an Authorization header it returns a
// guest actor along with errMissingToken; a header that does not verify
// yields errInvalidToken.
func (v TokenVerifier) Actor(r *http.Request) (entities.Actor, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return entities.Actor{Role: entities.RoleGuest}, errMissingToken
	}
	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
		return entities.Actor{}, errInvalidToken
	}
	if len(v.secret) == 0 {
		return entities.Actor{}, fmt.Errorf("%w: verification secret is not configured", errInvalidToken)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(strings.TrimSpace(raw), claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return entities.Actor{}, fmt.Errorf("%w: %w", errInvalidToken, err)
	}
	subject := strings.TrimSpace(claims.Subject)
	if subject == "" {
		return entities.Actor{}, fmt.Errorf("%w: subject claim is empty", errInvalidToken)
	}
	return entities.Actor{
		UserID: subject,
		Role:   entities.ParseRole(claims.Role),
	}, nil
}

// IssueToken signs a token the verifier accepts. The auth service owns token
// issuance in production; this is used by votectl and tests.
func IssueToken(secret string, userID string, role entities.Role, ttl time.Duration) (string, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return "", errors.New("jwt secret is required")
	}
	now := time.Now().UTC()
	claims := Claims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  strings.TrimSpace(userID),
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
