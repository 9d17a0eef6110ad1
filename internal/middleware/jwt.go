package middleware // reusable HTTP middleware for the echo server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

var (
	errNoBearer      = errors.New("missing bearer token")
	errInvalidToken  = errors.New("invalid or expired token")
	errInvalidClaims = errors.New("invalid claims")
)

// JWTAuth returns an Echo middleware that validates a Bearer access token
// issued by utils.NewAccessToken and stores its "sub" and "role" claims in
// the context (see UserID and Role).  Requests without a valid token are
// answered with 401 before reaching the handler, which is the Unauthorized
// rejection of the scan endpoint.
func JWTAuth(secret string) echo.MiddlewareFunc {
	// Build the verifier once at registration time; it is reused for every
	// request.
	verify := verifier(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		// The returned handler runs for each incoming request.
		return func(c echo.Context) error {
			// Any verification failure ends the request with 401 and the
			// shared failure body.
			if err := verify(c); err != nil {
				return reject(c, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
			}
			return next(c)
		}
	}
}

// OptionalJWTAuth sets the operator when a valid token is present and lets
// anonymous requests through untouched.
func OptionalJWTAuth(secret string) echo.MiddlewareFunc {
	verify := verifier(secret)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A bad or missing token is not an error here; the handler
			// decides what an anonymous caller may do.
			_ = verify(c)
			return next(c)
		}
	}
}

// verifier returns the check shared by JWTAuth and OptionalJWTAuth.  On
// success the operator id and role are stored in the context.
func verifier(secret string) func(c echo.Context) error {
	// Only HS256 is accepted and every access token must carry an exp
	// claim.
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	// The signing method is already pinned by the parser, so the key
	// function only supplies the secret.
	keyFunc := func(*jwt.Token) (interface{}, error) { return []byte(secret), nil }

	return func(c echo.Context) error {
		// Read the Authorization header.  It must start with "Bearer "
		// followed by the JWT.
		auth := c.Request().Header.Get("Authorization")
		if !strings.HasPrefix(auth, "Bearer ") {
			return errNoBearer
		}
		// Remove the prefix to obtain the raw token string.
		raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

		// Parse and verify signature, algorithm and expiry in one call.
		claims := jwt.MapClaims{}
		tok, err := parser.ParseWithClaims(raw, claims, keyFunc)
		if err != nil || !tok.Valid {
			return errInvalidToken
		}
		// Subject and role are both required; downstream code reads them
		// as plain strings through UserID and Role.
		sub, _ := claims["sub"].(string)
		role, _ := claims["role"].(string)
		if sub == "" || role == "" {
			return errInvalidClaims
		}
		c.Set(CtxUserID, sub)
		c.Set(CtxRole, role)
		return nil
	}
}
