package server

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/mohammad-safakhou/confscout/session"
)

// withIdentity resolves the caller's session identity. Identity issuance
// lives in the external auth layer; here a valid bearer token's subject is
// honored when a secret is configured, and everything else falls back to
// the shared anonymous identity.
func withIdentity(next echo.HandlerFunc, secret []byte) echo.HandlerFunc {
	return func(c echo.Context) error {
		identity := session.AnonymousIdentity
		if tok := extractToken(c); tok != "" && len(secret) > 0 {
			parsed, err := jwt.Parse(tok, func(t *jwt.Token) (interface{}, error) { return secret, nil })
			if err == nil && parsed.Valid {
				if claims, ok := parsed.Claims.(jwt.MapClaims); ok {
					if sub, ok := claims["sub"].(string); ok && sub != "" {
						identity = sub
					}
				}
			}
		}
		c.Set("identity", identity)
		return next(c)
	}
}

func extractToken(c echo.Context) string {
	if h := c.Request().Header.Get("Authorization"); len(h) > 7 && h[:7] == "Bearer " {
		return h[7:]
	}
	if ck, err := c.Cookie("auth"); err == nil {
		return ck.Value
	}
	return ""
}

func identityOf(c echo.Context) string {
	if v, ok := c.Get("identity").(string); ok && v != "" {
		return v
	}
	return session.AnonymousIdentity
}
