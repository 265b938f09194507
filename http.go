package auth

import (
	"github.com/gofiber/fiber/v2"
)

// RouteAuthenticator guards routes with the access token and writes the
// access cookie on login and logout.
type RouteAuthenticator struct {
	tokens  *TokenService
	cookies *CookieCodec
	routes  *RouteTable
	Logger  Logger
}

// NewHTTPAuthenticator creates a RouteAuthenticator from cfg
func NewHTTPAuthenticator(tokens *TokenService, cfg Config) *RouteAuthenticator {
	return &RouteAuthenticator{
		tokens:  tokens,
		cookies: NewCookieCodec(cfg.GetCookieName(), cfg.GetCookieDomain(), cfg.GetAccessTokenTTL()),
		routes:  NewRouteTable(cfg.GetCookieName(), cfg.GetPublicRoutes()...),
		Logger:  defLogger{},
	}
}

// WithLogger sets the logger
func (a *RouteAuthenticator) WithLogger(logger Logger) *RouteAuthenticator {
	if logger != nil {
		a.Logger = logger
	}
	return a
}

// Routes returns the route classification table
func (a *RouteAuthenticator) Routes() *RouteTable {
	return a.routes
}

// Cookies returns the cookie codec
func (a *RouteAuthenticator) Cookies() *CookieCodec {
	return a.cookies
}

// SetCookieToken attaches the access cookie carrying token to the response
func (a *RouteAuthenticator) SetCookieToken(c *fiber.Ctx, token string) {
	c.Append(fiber.HeaderSetCookie, a.cookies.Wrap(token).String())
}

// Logout attaches the cleared access cookie. There is nothing to revoke:
// the client dropping the cookie is the whole logout.
func (a *RouteAuthenticator) Logout(c *fiber.Ctx) {
	c.Append(fiber.HeaderSetCookie, a.cookies.Clear().String())
}
