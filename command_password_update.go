package auth

import (
	"context"
	"errors"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// UpdatePasswordMessage sets a new password for the authenticated identity
type UpdatePasswordMessage struct {
	Identity Identity
	Password string
	// OnResponse receives whether exactly one account was updated
	OnResponse func(updated bool)
}

func (e UpdatePasswordMessage) Type() string { return "password.update" }

func (e UpdatePasswordMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Password, validation.Required, validation.Length(1, 72)),
	)
}

type UpdatePasswordHandler struct {
	repo     RepositoryManager
	tokens   *TokenService
	activity ActivitySink
	logger   Logger
}

func (h *UpdatePasswordHandler) Execute(ctx context.Context, event UpdatePasswordMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password update",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UpdatePasswordHandler) execute(ctx context.Context, event UpdatePasswordMessage) error {
	logger := h.logger
	if logger == nil {
		logger = defLogger{}
	}

	if event.Identity.Email == "" {
		return ErrTokenMissing
	}

	if event.Identity.IsReset() {
		if err := h.checkResetToken(ctx, event.Identity); err != nil {
			return err
		}
	}

	hash, err := HashPassword(event.Password)
	if err != nil {
		return err
	}

	rows, err := h.repo.Accounts().UpdatePasswordByEmail(ctx, event.Identity.Email, hash)
	if err != nil {
		return internalError(err, "failed to update password")
	}

	updated := rows == 1
	if !updated {
		logger.Error("password update touched unexpected row count", "rows", rows, "account_id", event.Identity.ID)
	} else {
		logger.Info("password updated", "account_id", event.Identity.ID)
		emitActivity(ctx, h.activity, logger, ActivityEvent{
			EventType: ActivityEventPasswordUpdateSuccess,
			AccountID: event.Identity.ID,
		})
	}

	if event.OnResponse != nil {
		event.OnResponse(updated)
	}

	return nil
}

// checkResetToken rejects a reset token once the password it was issued
// for has changed, so each token authorizes a single update.
func (h *UpdatePasswordHandler) checkResetToken(ctx context.Context, identity Identity) error {
	if h.tokens == nil {
		return internalError(errors.New("token service not configured"), "cannot verify reset token")
	}

	account, err := h.repo.Accounts().FindByEmail(ctx, identity.Email)
	if err != nil {
		if isNotFound(err) {
			return ErrTokenInvalid
		}
		return internalError(err, "failed to load account")
	}

	if !h.tokens.MatchesFingerprint(identity.ResetFingerprint, account.PasswordHash) {
		return annotate(ErrTokenInvalid, nil, map[string]any{"reason": "reset token already used"})
	}
	return nil
}
