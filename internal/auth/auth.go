// Package auth validates the bearer tokens clients present when they connect.
package auth

import (
	"errors"
	"net/http"
	"strings"

	jwt "github.com/golang-jwt/jwt/v5"

	"liveroom/backend/internal/apperr"
	"liveroom/backend/internal/models"
)

// QueryParam carries the token for clients that cannot set headers on a websocket upgrade.
const QueryParam = "access_token"

// Claims is the token payload issued by the account service.
type Claims struct {
	Name string      `json:"name"`
	Role models.Role `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator turns a bearer token into an Identity.
type Authenticator struct {
	secret []byte
	parser *jwt.Parser
}

// NewAuthenticator builds an HS256 validator. An empty issuer disables the iss check.
func NewAuthenticator(secret, issuer string) *Authenticator {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}
	return &Authenticator{secret: []byte(secret), parser: jwt.NewParser(opts...)}
}

// Authenticate validates raw and returns the identity it names.
func (a *Authenticator) Authenticate(raw string) (models.Identity, error) {
	if raw == "" {
		return models.Identity{}, apperr.New(apperr.CodeAuthenticationFailed, "token missing")
	}

	claims := &Claims{}
	_, err := a.parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	if err != nil {
		msg := "invalid token"
		if errors.Is(err, jwt.ErrTokenExpired) {
			msg = "token expired"
		}
		return models.Identity{}, apperr.Wrap(apperr.CodeAuthenticationFailed, msg, err)
	}
	if claims.Subject == "" {
		return models.Identity{}, apperr.New(apperr.CodeAuthenticationFailed, "token has no subject")
	}

	role := claims.Role
	if role != models.RoleHost {
		role = models.RoleParticipant
	}
	name := strings.TrimSpace(claims.Name)
	if name == "" {
		name = claims.Subject
	}

	return models.Identity{ID: claims.Subject, DisplayName: name, Role: role}, nil
}

// AuthenticateRequest reads the token from the Authorization header or the query string.
func (a *Authenticator) AuthenticateRequest(r *http.Request) (models.Identity, error) {
	return a.Authenticate(TokenFromRequest(r))
}

// TokenFromRequest extracts a bearer token, preferring the header.
func TokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if len(h) > 7 && strings.EqualFold(h[:7], "Bearer ") {
			return strings.TrimSpace(h[7:])
		}
		return ""
	}
	return r.URL.Query().Get(QueryParam)
}
