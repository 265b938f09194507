package auth

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type RegisterAccountMessage struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (e RegisterAccountMessage) Type() string { return "account.register" }

// Validate will run validation rules
func (e RegisterAccountMessage) Validate() error {
	return validation.ValidateStruct(&e,
		validation.Field(&e.Username, validation.Required, validation.Length(1, 100)),
		validation.Field(&e.Email, validation.Required, validation.Length(3, 254), is.Email),
		validation.Field(&e.Password, validation.Required, validation.Length(1, 72)),
	)
}

type RegisterAccountHandler struct {
	repo        RepositoryManager
	notifier    Notifier
	activity    ActivitySink
	logger      Logger
	defaultRole string
}

func (h *RegisterAccountHandler) Execute(ctx context.Context, event RegisterAccountMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during account registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterAccountHandler) execute(ctx context.Context, event RegisterAccountMessage) error {
	logger := h.log()
	username := strings.TrimSpace(event.Username)
	email := strings.TrimSpace(event.Email)

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	account := &Account{Username: username, Email: email}
	activation := &ActivationRecord{Token: uuid.NewString()}

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		accounts := h.repo.Accounts()

		taken, err := accounts.ExistsByUsernameTx(ctx, tx, username)
		if err != nil {
			return internalError(err, "failed to check username")
		}
		if taken {
			return annotate(ErrDuplicateAccount, nil, map[string]any{"field": "username"})
		}

		taken, err = accounts.ExistsByEmailTx(ctx, tx, email)
		if err != nil {
			return internalError(err, "failed to check email")
		}
		if taken {
			return annotate(ErrDuplicateAccount, nil, map[string]any{"field": "email"})
		}

		role, err := h.repo.Roles().FindByNameTx(ctx, tx, h.roleName())
		if err != nil {
			if isNotFound(err) {
				return annotate(ErrRoleNotFound, err, map[string]any{"role": h.roleName()})
			}
			return internalError(err, "failed to load default role")
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			return err
		}
		account.PasswordHash = hash

		if _, err := accounts.CreateTx(ctx, tx, account); err != nil {
			if IsKind(err, KindDuplicateAccount) {
				return err
			}
			return internalError(err, "could not create account")
		}

		if err := accounts.AssignRoleTx(ctx, tx, account, role); err != nil {
			return internalError(err, "could not assign default role")
		}

		activation.AccountID = account.ID
		if _, err := h.repo.Activations().CreateTx(ctx, tx, activation); err != nil {
			return internalError(err, "could not create activation record")
		}

		return nil
	})

	if err != nil {
		if IsKind(err, KindRoleNotFound) {
			logger.Error("default role missing from store", "role", h.roleName())
		}
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "account registration transaction failed")
	}

	logger.Info("account registered", "account_id", account.ID)

	emitActivity(ctx, h.activity, logger, ActivityEvent{
		EventType: ActivityEventAccountRegistered,
		AccountID: account.ID,
		Metadata:  map[string]any{"username": account.Username},
	})

	if err := normalizeNotifier(h.notifier).NotifyActivation(ctx, account.Email, account.Username, activation.Token); err != nil {
		logger.Error("failed to enqueue activation notification", "account_id", account.ID, "error", err)
	}

	return nil
}

func (h *RegisterAccountHandler) roleName() string {
	if h.defaultRole == "" {
		return RoleUser
	}
	return h.defaultRole
}

func (h *RegisterAccountHandler) log() Logger {
	if h.logger == nil {
		return defLogger{}
	}
	return h.logger
}
