package auth

import (
	"context"
	"database/sql"
	"errors"
	"log"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Accounts() Accounts
	Roles() Roles
	Activations() Activations
}

type mngr struct {
	db          *bun.DB
	accounts    Accounts
	roles       Roles
	activations Activations
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:          db,
		accounts:    NewAccountsRepository(db),
		roles:       NewRolesRepository(db),
		activations: NewActivationsRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.db == nil {
		return errors.New("repository db should be initialized")
	}

	if m.accounts == nil {
		return errors.New("repository accounts should be initialized")
	}

	if m.roles == nil {
		return errors.New("repository roles should be initialized")
	}

	if m.activations == nil {
		return errors.New("repository activations should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Accounts() Accounts {
	return m.accounts
}

func (m mngr) Roles() Roles {
	return m.roles
}

func (m mngr) Activations() Activations {
	return m.activations
}

func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, sql.ErrNoRows) || repository.IsRecordNotFound(err) || goerrors.IsNotFound(err)
}
