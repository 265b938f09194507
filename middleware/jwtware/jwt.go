package jwtware

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/gofiber/fiber/v2"
)

var (
	defaultTokenLookup       = "header:" + fiber.HeaderAuthorization
	ErrJWTMissingOrMalformed = errors.New("missing or malformed JWT")
)

// TokenValidator validates a raw token and returns the claims the request
// should carry from then on.
type TokenValidator[T any] interface {
	Validate(token string) (T, error)
}

// TokenValidatorFunc adapts a function to TokenValidator
type TokenValidatorFunc[T any] func(token string) (T, error)

// Validate implements TokenValidator
func (f TokenValidatorFunc[T]) Validate(token string) (T, error) {
	return f(token)
}

// ValidationListener is invoked after a token has been validated but before
// the success handler runs.
type ValidationListener[T any] func(c *fiber.Ctx, claims T) error

type Config[T any] struct {
	// Filter skips the middleware when it returns true
	Filter         func(*fiber.Ctx) bool
	SuccessHandler fiber.Handler
	// ErrorHandler receives ErrJWTMissingOrMalformed when no token was found
	// and the validator error otherwise.
	ErrorHandler fiber.ErrorHandler
	ContextKey   string
	// TokenLookup is a comma separated list of <source>:<name> pairs, e.g.
	// "header:Authorization,cookie:jwt". Sources: header, query, param, cookie.
	TokenLookup string
	// TokenLookupFunc picks the lookup per request, falling back to
	// TokenLookup when it returns an empty string.
	TokenLookupFunc func(*fiber.Ctx) string
	AuthScheme      string
	TokenValidator  TokenValidator[T]

	// Extractors adds lookup sources or replaces the built in ones, keyed by
	// source name.
	Extractors map[string]ExtractorFactory

	// ContextEnricher propagates claims to the request's user context
	ContextEnricher func(c context.Context, claims T) context.Context

	ValidationListeners []ValidationListener[T]

	extractors sync.Map
}

func New[T any](config ...*Config[T]) fiber.Handler {
	cfg := GetDefaultConfig(config...)
	return func(c *fiber.Ctx) error {
		if cfg.Filter != nil && cfg.Filter(c) {
			return c.Next()
		}

		raw, err := ExtractRawTokenFromContext(c, cfg.getExtractors(c))
		if err != nil || raw == "" {
			return cfg.ErrorHandler(c, ErrJWTMissingOrMalformed)
		}

		claims, err := cfg.TokenValidator.Validate(raw)
		if err != nil {
			return cfg.ErrorHandler(c, err)
		}

		if err := cfg.runValidationListeners(c, claims); err != nil {
			return cfg.ErrorHandler(c, err)
		}

		c.Locals(cfg.ContextKey, claims)

		if cfg.ContextEnricher != nil {
			c.SetUserContext(cfg.ContextEnricher(c.UserContext(), claims))
		}

		return cfg.SuccessHandler(c)
	}
}

func ExtractRawTokenFromContext(c *fiber.Ctx, extractors []JWTExtractor) (string, error) {
	var raw string
	err := ErrJWTMissingOrMalformed

	for _, extractor := range extractors {
		raw, err = extractor(c)
		if raw != "" && err == nil {
			break
		}
	}

	return raw, err
}

func GetDefaultConfig[T any](config ...*Config[T]) *Config[T] {
	cfg := &Config[T]{}
	if len(config) > 0 && config[0] != nil {
		cfg = config[0]
	}

	if cfg.SuccessHandler == nil {
		cfg.SuccessHandler = func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	if cfg.ErrorHandler == nil {
		cfg.ErrorHandler = func(c *fiber.Ctx, err error) error {
			if errors.Is(err, ErrJWTMissingOrMalformed) {
				return c.Status(fiber.StatusBadRequest).SendString(ErrJWTMissingOrMalformed.Error())
			}
			return c.Status(fiber.StatusUnauthorized).SendString("Invalid or expired token")
		}
	}

	if cfg.TokenValidator == nil {
		panic("AUTH: JWT middleware configuration: TokenValidator is required.")
	}

	if cfg.ContextKey == "" {
		cfg.ContextKey = "user"
	}

	if cfg.TokenLookup == "" {
		cfg.TokenLookup = defaultTokenLookup
	}

	if cfg.AuthScheme == "" {
		cfg.AuthScheme = "Bearer"
	}

	return cfg
}

func (cfg *Config[T]) getExtractors(c *fiber.Ctx) []JWTExtractor {
	lookup := cfg.TokenLookup
	if cfg.TokenLookupFunc != nil {
		if l := cfg.TokenLookupFunc(c); l != "" {
			lookup = l
		}
	}

	if cached, ok := cfg.extractors.Load(lookup); ok {
		return cached.([]JWTExtractor)
	}

	extractors := buildExtractors(lookup, cfg.AuthScheme, cfg.Extractors)
	cfg.extractors.Store(lookup, extractors)
	return extractors
}

func (cfg *Config[T]) runValidationListeners(c *fiber.Ctx, claims T) error {
	for _, listener := range cfg.ValidationListeners {
		if listener == nil {
			continue
		}
		if err := listener(c, claims); err != nil {
			return err
		}
	}
	return nil
}

func GetExtractors(tokenLookup string, authSchemes ...string) []JWTExtractor {
	authScheme := ""
	if len(authSchemes) > 0 {
		authScheme = authSchemes[0]
	}
	return buildExtractors(tokenLookup, authScheme, nil)
}

func buildExtractors(tokenLookup, authScheme string, custom map[string]ExtractorFactory) []JWTExtractor {
	extractors := make([]JWTExtractor, 0)

	authScheme = strings.TrimSpace(authScheme)
	if authScheme == "" {
		authScheme = "Bearer"
	}

	// header:Authorization,cookie:jwt,query:auth_token,param:token
	for _, rootPart := range strings.Split(tokenLookup, ",") {
		parts := strings.SplitN(strings.TrimSpace(rootPart), ":", 2)
		if len(parts) != 2 {
			continue
		}

		source, name := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if factory, ok := custom[source]; ok && factory != nil {
			extractors = append(extractors, factory(name))
			continue
		}

		switch source {
		case "header":
			extractors = append(extractors, jwtFromHeader(name, authScheme))
		case "query":
			extractors = append(extractors, jwtFromQuery(name))
		case "param":
			extractors = append(extractors, jwtFromParam(name))
		case "cookie":
			extractors = append(extractors, jwtFromCookie(name))
		}
	}

	return extractors
}

type JWTExtractor func(c *fiber.Ctx) (string, error)

// ExtractorFactory builds the extractor for the name of a <source>:<name> pair
type ExtractorFactory func(name string) JWTExtractor

// jwtFromHeader returns a function that extracts token from the request header.
func jwtFromHeader(header string, authScheme string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		a := c.Get(header)
		l := len(authScheme)
		if len(a) > l+1 && strings.EqualFold(a[:l], authScheme) && a[l] == ' ' {
			if token := strings.TrimSpace(a[l:]); token != "" {
				return token, nil
			}
		}
		return "", ErrJWTMissingOrMalformed
	}
}

// jwtFromQuery returns a function that extracts token from the query string.
func jwtFromQuery(param string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Query(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromParam returns a function that extracts token from the url param string.
func jwtFromParam(param string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Params(param)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// jwtFromCookie returns a function that extracts token from the named cookie.
func jwtFromCookie(name string) JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token := c.Cookies(name)
		if token == "" {
			return "", ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}
