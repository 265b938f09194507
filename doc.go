// Package auth provides stateless authentication and the account lifecycle
// for the planner service.
//
// Tokens:
//   - TokenService signs HS512 access tokens carrying an AccountSnapshot.
//     Nothing is stored server side; a token is valid while its signature
//     checks out and now is before exp.
//   - CookieCodec maps tokens to the HttpOnly, Secure, SameSite=Strict access
//     cookie. Logout sends the same cookie with Max-Age=0.
//
// Request pipeline:
//   - RouteAuthenticator.Middleware classifies each path with a RouteTable.
//     Public routes pass through, header routes read a Bearer token and every
//     other route reads the access cookie. A valid token attaches an Identity
//     to the request; GetIdentity and IdentityFromContext read it back.
//   - ErrorTranslator renders every error as {"exception": "<Kind>"} with the
//     status mapped by StatusFor.
//
// Account lifecycle:
//   - RegisterAuthRoutes mounts register, activate, resend activation, login,
//     logout, password reset and password update handlers. Each handler runs
//     a command (RegisterAccountHandler, ActivateAccountHandler, ...) against
//     a RepositoryManager backed by Bun.
//   - Notifications go through a Notifier that only enqueues; see the notify
//     package for the worker pool.
//
// Activity sinks:
//   - ActivitySink receives registration, activation, login and password
//     events. Sinks run best-effort (errors are logged) so you can forward to
//     metrics or a queue without blocking authentication.
package auth
