package auth

import (
	"net/http"
	"sort"

	goerrors "github.com/goliatone/go-errors"
)

// Error kinds. The kind is the symbolic tag clients receive in the
// error envelope and is stored as the TextCode of every sentinel below.
const (
	KindDuplicateAccount   = "DuplicateAccount"
	KindRoleNotFound       = "RoleNotFound"
	KindActivationNotFound = "ActivationNotFound"
	KindAlreadyActivated   = "AlreadyActivated"
	KindAccountNotFound    = "AccountNotFound"
	KindBadCredentials     = "BadCredentials"
	KindAccountDisabled    = "AccountDisabled"
	KindTokenMissing       = "TokenMissing"
	KindTokenInvalid       = "TokenInvalid"
	KindInvalidPayload     = "InvalidPayload"
	KindAccessDenied       = "AccessDenied"
	KindInternalError      = "InternalError"
)

// kindStatus must hold every kind declared above.
var kindStatus = map[string]int{
	KindDuplicateAccount:   http.StatusBadRequest,
	KindRoleNotFound:       http.StatusBadRequest,
	KindActivationNotFound: http.StatusBadRequest,
	KindAlreadyActivated:   http.StatusBadRequest,
	KindAccountNotFound:    http.StatusBadRequest,
	KindInvalidPayload:     http.StatusBadRequest,
	KindBadCredentials:     http.StatusUnauthorized,
	KindAccountDisabled:    http.StatusUnauthorized,
	KindTokenMissing:       http.StatusUnauthorized,
	KindTokenInvalid:       http.StatusUnauthorized,
	KindAccessDenied:       http.StatusForbidden,
	KindInternalError:      http.StatusInternalServerError,
}

// ErrDuplicateAccount is returned when the username or the email is taken
var ErrDuplicateAccount = goerrors.New("username or email already exists", goerrors.CategoryConflict).
	WithTextCode(KindDuplicateAccount).
	WithCode(goerrors.CodeBadRequest)

// ErrRoleNotFound means the default role is missing from the store.
// This is a deployment defect, not something the caller can fix.
var ErrRoleNotFound = goerrors.New("default role not found", goerrors.CategoryNotFound).
	WithTextCode(KindRoleNotFound).
	WithCode(goerrors.CodeBadRequest)

// ErrActivationNotFound no activation record for the given token
var ErrActivationNotFound = goerrors.New("activation not found", goerrors.CategoryNotFound).
	WithTextCode(KindActivationNotFound).
	WithCode(goerrors.CodeBadRequest)

// ErrAlreadyActivated the account was activated before
var ErrAlreadyActivated = goerrors.New("account already activated", goerrors.CategoryConflict).
	WithTextCode(KindAlreadyActivated).
	WithCode(goerrors.CodeBadRequest)

// ErrAccountNotFound no account matches the identifier
var ErrAccountNotFound = goerrors.New("account not found", goerrors.CategoryNotFound).
	WithTextCode(KindAccountNotFound).
	WithCode(goerrors.CodeBadRequest)

// ErrBadCredentials covers both unknown identifiers and wrong passwords
var ErrBadCredentials = goerrors.New("the credentials provided are invalid", goerrors.CategoryAuth).
	WithTextCode(KindBadCredentials).
	WithCode(goerrors.CodeUnauthorized)

// ErrAccountDisabled credentials are valid but the account is not activated
var ErrAccountDisabled = goerrors.New("account is not activated", goerrors.CategoryAuth).
	WithTextCode(KindAccountDisabled).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenMissing a protected route was called without credentials
var ErrTokenMissing = goerrors.New("token not found", goerrors.CategoryAuth).
	WithTextCode(KindTokenMissing).
	WithCode(goerrors.CodeUnauthorized)

// ErrTokenInvalid token is malformed, tampered, expired or unsupported
var ErrTokenInvalid = goerrors.New("token validation failed", goerrors.CategoryAuth).
	WithTextCode(KindTokenInvalid).
	WithCode(goerrors.CodeUnauthorized)

// ErrInvalidPayload request body could not be parsed or validated
var ErrInvalidPayload = goerrors.New("invalid request payload", goerrors.CategoryValidation).
	WithTextCode(KindInvalidPayload).
	WithCode(goerrors.CodeBadRequest)

// ErrAccessDenied identity lacks the authority the route requires
var ErrAccessDenied = goerrors.New("access denied", goerrors.CategoryAuthz).
	WithTextCode(KindAccessDenied).
	WithCode(goerrors.CodeForbidden)

// ErrInternal is what clients see for any failure we do not classify
var ErrInternal = goerrors.New("internal error", goerrors.CategoryInternal).
	WithTextCode(KindInternalError).
	WithCode(goerrors.CodeInternal)

// ErrNoEmptyString is returned when hashing an empty password
var ErrNoEmptyString = goerrors.New("password must not be empty", goerrors.CategoryValidation).
	WithTextCode(KindInvalidPayload).
	WithCode(goerrors.CodeBadRequest)

// Kinds returns every error kind known to the translator, sorted.
func Kinds() []string {
	out := make([]string, 0, len(kindStatus))
	for k := range kindStatus {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// KindOf resolves the symbolic kind of err, following wrapped sources.
// Errors that do not carry one of our kinds resolve to KindInternalError.
func KindOf(err error) string {
	if err == nil {
		return ""
	}

	var richErr *goerrors.Error
	for cur := err; goerrors.As(cur, &richErr) && richErr != nil; cur = richErr.Source {
		if _, ok := kindStatus[richErr.TextCode]; ok {
			return richErr.TextCode
		}
	}

	return KindInternalError
}

// StatusFor returns the HTTP status for a kind. Unknown kinds map to 500.
func StatusFor(kind string) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// IsKind reports whether err resolves to kind
func IsKind(err error, kind string) bool {
	return err != nil && KindOf(err) == kind
}

func internalError(err error, message string) error {
	return goerrors.Wrap(err, goerrors.CategoryInternal, message)
}

// annotate returns a copy of a sentinel carrying the source error and
// metadata. Sentinels are shared and must never be mutated in place.
func annotate(base *goerrors.Error, source error, meta map[string]any) *goerrors.Error {
	clone := base.Clone()
	if clone == nil {
		clone = base
	}
	if source != nil {
		clone.Source = source
	}
	if len(meta) > 0 {
		clone.WithMetadata(meta)
	}
	return clone
}
