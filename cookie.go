package auth

import (
	"net/http"
	"time"
)

// CookieReader reads a request cookie by name. *fiber.Ctx satisfies it.
type CookieReader interface {
	Cookies(key string, defaultValue ...string) string
}

// CookieCodec maps access tokens to and from the access cookie. Every cookie
// it emits is HttpOnly, Secure and SameSite=Strict.
type CookieCodec struct {
	name   string
	domain string
	maxAge time.Duration
}

// NewCookieCodec creates a codec for the given cookie name and domain whose
// cookies live for maxAge.
func NewCookieCodec(name, domain string, maxAge time.Duration) *CookieCodec {
	if name == "" {
		name = "jwt"
	}
	return &CookieCodec{
		name:   name,
		domain: domain,
		maxAge: maxAge,
	}
}

// Name returns the configured cookie name
func (c *CookieCodec) Name() string {
	return c.name
}

// Wrap builds the access cookie carrying token
func (c *CookieCodec) Wrap(token string) *http.Cookie {
	cookie := c.base()
	cookie.Value = token
	cookie.MaxAge = int(c.maxAge / time.Second)
	return cookie
}

// Unwrap returns the access token from the request cookies, or false if
// the cookie is absent or empty.
func (c *CookieCodec) Unwrap(cookies CookieReader) (string, bool) {
	if cookies == nil {
		return "", false
	}
	token := cookies.Cookies(c.name)
	return token, token != ""
}

// Clear builds a cookie with the same attributes as Wrap and an empty value
// that tells the client to drop it immediately (Max-Age=0).
func (c *CookieCodec) Clear() *http.Cookie {
	cookie := c.base()
	// net/http renders a negative MaxAge as Max-Age=0
	cookie.MaxAge = -1
	return cookie
}

func (c *CookieCodec) base() *http.Cookie {
	return &http.Cookie{
		Name:     c.name,
		Domain:   c.domain,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteStrictMode,
	}
}
