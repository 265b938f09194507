package auth

import (
	"context"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	goerrors "github.com/goliatone/go-errors"
)

type ActivateAccountMessage struct {
	Token string
	// OnResponse receives whether exactly one record was activated
	OnResponse func(activated bool)
}

func (e ActivateAccountMessage) Type() string { return "account.activate" }

func (e ActivateAccountMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Token, validation.Required, validation.Length(1, 255)),
	)
}

type ActivateAccountHandler struct {
	repo     RepositoryManager
	activity ActivitySink
	logger   Logger
}

func (h *ActivateAccountHandler) Execute(ctx context.Context, event ActivateAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account activation",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *ActivateAccountHandler) execute(ctx context.Context, event ActivateAccountMessage) error {
	logger := h.logger
	if logger == nil {
		logger = defLogger{}
	}

	token := strings.TrimSpace(event.Token)

	record, err := h.repo.Activations().FindByToken(ctx, token)
	if err != nil {
		if isNotFound(err) {
			return ErrActivationNotFound
		}
		return internalError(err, "failed to load activation record")
	}

	if record.Activated {
		return ErrAlreadyActivated
	}

	rows, err := h.repo.Activations().Activate(ctx, token)
	if err != nil {
		return internalError(err, "failed to activate account")
	}

	activated := rows == 1
	if !activated {
		// a concurrent request flipped it first, or the store is inconsistent
		logger.Warn("activation updated unexpected row count", "rows", rows, "account_id", record.AccountID)
	} else {
		logger.Info("account activated", "account_id", record.AccountID)
		emitActivity(ctx, h.activity, logger, ActivityEvent{
			EventType: ActivityEventAccountActivated,
			AccountID: record.AccountID,
		})
	}

	if event.OnResponse != nil {
		event.OnResponse(activated)
	}

	return nil
}
