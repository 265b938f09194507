package auth

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

// ResendActivationMessage asks for the activation link again. Identifier is
// a username or an email.
type ResendActivationMessage struct {
	Identifier string
}

func (e ResendActivationMessage) Type() string { return "account.activation.resend" }

func (e ResendActivationMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Identifier, validation.Required, validation.Length(1, 254)),
	)
}

type ResendActivationHandler struct {
	repo     RepositoryManager
	notifier Notifier
	activity ActivitySink
	logger   Logger
}

func (h *ResendActivationHandler) Execute(ctx context.Context, event ResendActivationMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during activation resend",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ResendActivationHandler) execute(ctx context.Context, event ResendActivationMessage) error {
	logger := h.logger
	if logger == nil {
		logger = defLogger{}
	}

	account, err := h.repo.Accounts().FindByIdentifier(ctx, strings.TrimSpace(event.Identifier))
	if err != nil {
		if isNotFound(err) {
			return ErrAccountNotFound
		}
		return internalError(err, "failed to load account")
	}

	if account.IsActivated() {
		return ErrAlreadyActivated
	}

	if account.Activation == nil {
		logger.Error("account has no activation record", "account_id", account.ID)
		return annotate(ErrInternal, nil, map[string]any{"account_id": account.ID})
	}

	// the token is never regenerated: the link mailed at registration stays valid
	if err := normalizeNotifier(h.notifier).NotifyActivation(ctx, account.Email, account.Username, account.Activation.Token); err != nil {
		logger.Error("failed to enqueue activation notification", "account_id", account.ID, "error", err)
	}

	emitActivity(ctx, h.activity, logger, ActivityEvent{
		EventType: ActivityEventActivationResent,
		AccountID: account.ID,
	})

	return nil
}
