package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Scopes checked by Authorize.
const (
	ScopeRead  = "injuries:read"
	ScopeWrite = "injuries:write"
)

const claimsKey = "claims"

// Claims are the validated token fields the API relies on.
type Claims struct {
	Subject   string
	Scopes    []string
	ExpiresAt time.Time
}

// HasScope reports whether scope was granted.
func (c *Claims) HasScope(scope string) bool {
	return slices.Contains(c.Scopes, scope)
}

// TokenValidator validates a bearer token.
type TokenValidator interface {
	Validate(ctx context.Context, token string) (*Claims, error)
}

// HMACValidator validates HS256 tokens signed with a shared secret.
type HMACValidator struct {
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
}

// NewHMACValidator creates a validator. Empty issuer or audience are not checked.
func NewHMACValidator(secret, issuer, audience string) (*HMACValidator, error) {
	if len(secret) < 32 {
		return nil, errors.New("jwt secret must be at least 32 bytes")
	}
	return &HMACValidator{secret: []byte(secret), issuer: issuer, audience: audience, leeway: 30 * time.Second}, nil
}

// Validate checks signature, expiry, issuer and audience and extracts the claims.
func (v *HMACValidator) Validate(_ context.Context, tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(v.leeway),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var mc jwt.MapClaims
	_, err := jwt.ParseWithClaims(tokenString, &mc, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	claims := &Claims{Scopes: scopesFrom(mc)}
	if claims.Subject, err = mc.GetSubject(); err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}
	if exp, err := mc.GetExpirationTime(); err == nil && exp != nil {
		claims.ExpiresAt = exp.Time
	}
	return claims, nil
}

// scopesFrom accepts the space separated OAuth2 "scope" claim or a "scopes" array.
func scopesFrom(mc jwt.MapClaims) []string {
	var scopes []string
	if s, ok := mc["scope"].(string); ok {
		scopes = append(scopes, strings.Fields(s)...)
	}
	if list, ok := mc["scopes"].([]any); ok {
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				scopes = append(scopes, s)
			}
		}
	}
	return scopes
}

// Authenticate requires a valid bearer token and stores its claims on the context.
func Authenticate(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		scheme, token, ok := strings.Cut(c.GetHeader("Authorization"), " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(token) == "" {
			c.Header("WWW-Authenticate", `Bearer realm="injurystore"`)
			writeError(c, http.StatusUnauthorized, "unauthorized", "missing or malformed bearer token")
			return
		}
		claims, err := validator.Validate(c.Request.Context(), strings.TrimSpace(token))
		if err != nil {
			c.Header("WWW-Authenticate", `Bearer realm="injurystore", error="invalid_token"`)
			writeError(c, http.StatusUnauthorized, "unauthorized", "invalid token")
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// Authorize requires injuries:read for safe methods and injuries:write otherwise.
func Authorize() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFrom(c)
		if !ok {
			writeError(c, http.StatusUnauthorized, "unauthorized", "not authenticated")
			return
		}
		need := ScopeWrite
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			need = ScopeRead
		}
		if !claims.HasScope(need) {
			writeError(c, http.StatusForbidden, "forbidden", "missing scope "+need)
			return
		}
		c.Next()
	}
}

// ClaimsFrom returns the claims stored by Authenticate.
func ClaimsFrom(c *gin.Context) (*Claims, bool) {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*Claims)
	return claims, ok
}
