package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/goliatone/go-planner-auth/middleware/jwtware"
)

var (
	errResetTokenMisused = errors.New("reset token not accepted here")
	bearerExtractors     = jwtware.GetExtractors("header:" + fiber.HeaderAuthorization)
)

// Middleware returns the authentication handler. Public routes pass through.
// Protected routes must carry a valid token, in the Authorization header for
// header routes and in the access cookie otherwise. The identity decoded from
// the token is stored in Locals and in the request user context.
//
// Mount it after ErrorTranslator and before any route.
func (a *RouteAuthenticator) Middleware() fiber.Handler {
	return jwtware.New(&jwtware.Config[Identity]{
		Filter: func(c *fiber.Ctx) bool {
			return a.routes.IsPublic(c.Path())
		},
		ContextKey:  IdentityLocalsKey,
		TokenLookup: "cookie:" + a.cookies.Name(),
		TokenLookupFunc: func(c *fiber.Ctx) string {
			return a.routes.TokenLookup(c.Path())
		},
		TokenValidator:  jwtware.TokenValidatorFunc[Identity](a.validate),
		ContextEnricher: WithIdentity,
		ErrorHandler:    a.authError,
		Extractors: map[string]jwtware.ExtractorFactory{
			"cookie": a.cookieExtractor,
		},
		ValidationListeners: []jwtware.ValidationListener[Identity]{
			a.checkPurpose,
		},
	})
}

// RequireRole rejects requests whose identity lacks role
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := GetIdentity(c)
		if !ok {
			return ErrTokenMissing
		}
		if !identity.HasAuthority(role) {
			return annotate(ErrAccessDenied, nil, map[string]any{
				"required": role,
			})
		}
		return c.Next()
	}
}

func (a *RouteAuthenticator) validate(token string) (Identity, error) {
	claims, err := a.tokens.Diagnose(token)
	if err != nil {
		return Identity{}, ErrTokenInvalid
	}
	return IdentityFromClaims(claims), nil
}

// cookieExtractor reads the access cookie through the codec. The lookup
// always names the codec's cookie.
func (a *RouteAuthenticator) cookieExtractor(string) jwtware.JWTExtractor {
	return func(c *fiber.Ctx) (string, error) {
		token, ok := a.cookies.Unwrap(c)
		if !ok {
			return "", jwtware.ErrJWTMissingOrMalformed
		}
		return token, nil
	}
}

// checkPurpose accepts reset tokens only from the Authorization header of a
// header route. Header extraction runs before the cookie fallback, so a
// Bearer value present in the header is the token that was validated.
func (a *RouteAuthenticator) checkPurpose(c *fiber.Ctx, identity Identity) error {
	if !identity.IsReset() {
		return nil
	}
	if !a.routes.UsesHeader(c.Path()) {
		return errResetTokenMisused
	}
	raw, err := jwtware.ExtractRawTokenFromContext(c, bearerExtractors)
	if err != nil || raw == "" {
		return errResetTokenMisused
	}
	return nil
}

func (a *RouteAuthenticator) authError(c *fiber.Ctx, err error) error {
	if errors.Is(err, jwtware.ErrJWTMissingOrMalformed) {
		a.Logger.Info("credentials not found", "path", c.Path())
		return ErrTokenMissing
	}
	if errors.Is(err, errResetTokenMisused) {
		a.Logger.Warn("reset token used outside password update", "path", c.Path())
		return ErrTokenInvalid
	}
	a.Logger.Info("token rejected", "path", c.Path())
	return ErrTokenInvalid
}
