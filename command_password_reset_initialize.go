package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// InitializePasswordResetMessage requests a reset link for Email. The
// handler succeeds whether or not an account exists for it.
type InitializePasswordResetMessage struct {
	Email string
}

func (e InitializePasswordResetMessage) Type() string { return "password.reset.init" }

func (e InitializePasswordResetMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Email, validation.Required, validation.Length(1, 254)),
	)
}

type InitializePasswordResetHandler struct {
	repo     RepositoryManager
	tokens   *TokenService
	notifier Notifier
	activity ActivitySink
	logger   Logger
	ttl      time.Duration
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	logger := h.logger
	if logger == nil {
		logger = defLogger{}
	}

	account, err := h.repo.Accounts().FindByIdentifier(ctx, strings.TrimSpace(event.Email))
	if err != nil {
		if isNotFound(err) {
			logger.Info("password reset requested for unknown account")
			return nil
		}
		return internalError(err, "failed to load account")
	}

	ttl := h.ttl
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}

	token, err := h.tokens.IssueReset(account.Snapshot(), account.PasswordHash, ttl)
	if err != nil {
		return internalError(err, "failed to issue reset token")
	}

	if err := normalizeNotifier(h.notifier).NotifyPasswordReset(ctx, account.Email, account.Username, token); err != nil {
		logger.Error("failed to enqueue password reset notification", "account_id", account.ID, "error", err)
	}

	emitActivity(ctx, h.activity, logger, ActivityEvent{
		EventType: ActivityEventPasswordResetRequest,
		AccountID: account.ID,
	})

	return nil
}
