package auth

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// Accounts stores accounts. Username and email lookups ignore case.
type Accounts interface {
	AccountFinder

	ExistsByUsername(ctx context.Context, username string) (bool, error)
	ExistsByUsernameTx(ctx context.Context, tx bun.IDB, username string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	ExistsByEmailTx(ctx context.Context, tx bun.IDB, email string) (bool, error)

	FindByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*Account, error)
	FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error)
	FindByIdentifier(ctx context.Context, identifier string) (*Account, error)

	CreateTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error)
	AssignRoleTx(ctx context.Context, tx bun.IDB, account *Account, role *Role) error

	UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) (int64, error)
	UpdatePasswordByEmailTx(ctx context.Context, tx bun.IDB, email, passwordHash string) (int64, error)
}

// Roles stores named roles
type Roles interface {
	FindByName(ctx context.Context, name string) (*Role, error)
	FindByNameTx(ctx context.Context, tx bun.IDB, name string) (*Role, error)
	Seed(ctx context.Context, names ...string) error
}

// Activations stores activation records
type Activations interface {
	FindByToken(ctx context.Context, token string) (*ActivationRecord, error)
	FindByTokenTx(ctx context.Context, tx bun.IDB, token string) (*ActivationRecord, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *ActivationRecord) (*ActivationRecord, error)
	// Activate flips activated to true for the record with token, only if it
	// was false, and returns the number of rows updated.
	Activate(ctx context.Context, token string) (int64, error)
	ActivateTx(ctx context.Context, tx bun.IDB, token string) (int64, error)
}

type accounts struct {
	db *bun.DB
}

var _ Accounts = (*accounts)(nil)

func NewAccountsRepository(db *bun.DB) Accounts {
	return &accounts{db: db}
}

func (a *accounts) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	return a.ExistsByUsernameTx(ctx, a.db, username)
}

func (a *accounts) ExistsByUsernameTx(ctx context.Context, tx bun.IDB, username string) (bool, error) {
	return tx.NewSelect().
		Model((*Account)(nil)).
		Where("lower(?TableAlias.username) = lower(?)", strings.TrimSpace(username)).
		Exists(ctx)
}

func (a *accounts) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return a.ExistsByEmailTx(ctx, a.db, email)
}

func (a *accounts) ExistsByEmailTx(ctx context.Context, tx bun.IDB, email string) (bool, error) {
	return tx.NewSelect().
		Model((*Account)(nil)).
		Where("lower(?TableAlias.email) = lower(?)", strings.TrimSpace(email)).
		Exists(ctx)
}

func (a *accounts) FindByUsername(ctx context.Context, username string) (*Account, error) {
	return a.FindByUsernameTx(ctx, a.db, username)
}

func (a *accounts) FindByUsernameTx(ctx context.Context, tx bun.IDB, username string) (*Account, error) {
	return a.findOne(ctx, tx, "username", username)
}

func (a *accounts) FindByEmail(ctx context.Context, email string) (*Account, error) {
	return a.FindByEmailTx(ctx, a.db, email)
}

func (a *accounts) FindByEmailTx(ctx context.Context, tx bun.IDB, email string) (*Account, error) {
	return a.findOne(ctx, tx, "email", email)
}

// FindByIdentifier looks the identifier up as a username first and as an
// email second.
func (a *accounts) FindByIdentifier(ctx context.Context, identifier string) (*Account, error) {
	return findByIdentifier(ctx, a, identifier)
}

func findByIdentifier(ctx context.Context, finder AccountFinder, identifier string) (*Account, error) {
	account, err := finder.FindByUsername(ctx, identifier)
	if err == nil {
		return account, nil
	}
	if !isNotFound(err) {
		return nil, err
	}
	return finder.FindByEmail(ctx, identifier)
}

func (a *accounts) findOne(ctx context.Context, tx bun.IDB, column, value string) (*Account, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{column: value})
	}

	record := &Account{}
	err := tx.NewSelect().
		Model(record).
		Where("lower(?TableAlias.?) = lower(?)", bun.Ident(column), value).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{column: value})
		}
		return nil, err
	}

	if err := a.loadRelations(ctx, tx, record); err != nil {
		return nil, err
	}

	return record, nil
}

func (a *accounts) loadRelations(ctx context.Context, tx bun.IDB, record *Account) error {
	var roles []Role
	err := tx.NewSelect().
		Model(&roles).
		Join("JOIN account_roles AS ar ON ar.role_id = rl.id").
		Where("ar.account_id = ?", record.ID).
		OrderExpr("rl.name ASC").
		Scan(ctx)
	if err != nil && !isNotFound(err) {
		return err
	}
	record.Roles = roles

	activation := &ActivationRecord{}
	err = tx.NewSelect().
		Model(activation).
		Where("?TableAlias.account_id = ?", record.ID).
		Limit(1).
		Scan(ctx)
	switch {
	case err == nil:
		record.Activation = activation
	case isNotFound(err):
		record.Activation = nil
	default:
		return err
	}

	return nil
}

func (a *accounts) CreateTx(ctx context.Context, tx bun.IDB, account *Account) (*Account, error) {
	if account.CreatedAt.IsZero() {
		account.CreatedAt = time.Now()
	}

	if _, err := tx.NewInsert().Model(account).Returning("id").Exec(ctx); err != nil {
		if isUniqueViolation(err) {
			return nil, annotate(ErrDuplicateAccount, err, nil)
		}
		return nil, err
	}

	return account, nil
}

func (a *accounts) AssignRoleTx(ctx context.Context, tx bun.IDB, account *Account, role *Role) error {
	link := &AccountRole{AccountID: account.ID, RoleID: role.ID}
	if _, err := tx.NewInsert().Model(link).Exec(ctx); err != nil {
		return err
	}
	account.Roles = append(account.Roles, *role)
	return nil
}

func (a *accounts) UpdatePasswordByEmail(ctx context.Context, email, passwordHash string) (int64, error) {
	return a.UpdatePasswordByEmailTx(ctx, a.db, email, passwordHash)
}

func (a *accounts) UpdatePasswordByEmailTx(ctx context.Context, tx bun.IDB, email, passwordHash string) (int64, error) {
	res, err := tx.NewUpdate().
		Model((*Account)(nil)).
		Set("password_hash = ?", passwordHash).
		Where("lower(email) = lower(?)", strings.TrimSpace(email)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type roles struct {
	db *bun.DB
}

var _ Roles = (*roles)(nil)

func NewRolesRepository(db *bun.DB) Roles {
	return &roles{db: db}
}

func (r *roles) FindByName(ctx context.Context, name string) (*Role, error) {
	return r.FindByNameTx(ctx, r.db, name)
}

func (r *roles) FindByNameTx(ctx context.Context, tx bun.IDB, name string) (*Role, error) {
	record := &Role{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.name = ?", name).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"role": name})
		}
		return nil, err
	}
	return record, nil
}

// Seed inserts the named roles, skipping the ones already present
func (r *roles) Seed(ctx context.Context, names ...string) error {
	if len(names) == 0 {
		return nil
	}

	records := make([]Role, 0, len(names))
	for _, name := range names {
		records = append(records, Role{Name: name})
	}

	_, err := r.db.NewInsert().
		Model(&records).
		On("CONFLICT (name) DO NOTHING").
		Returning("NULL").
		Exec(ctx)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to seed roles").
			WithMetadata(map[string]any{"roles": names})
	}
	return nil
}

type activations struct {
	db *bun.DB
}

var _ Activations = (*activations)(nil)

func NewActivationsRepository(db *bun.DB) Activations {
	return &activations{db: db}
}

func (a *activations) FindByToken(ctx context.Context, token string) (*ActivationRecord, error) {
	return a.FindByTokenTx(ctx, a.db, token)
}

func (a *activations) FindByTokenTx(ctx context.Context, tx bun.IDB, token string) (*ActivationRecord, error) {
	record := &ActivationRecord{}
	err := tx.NewSelect().
		Model(record).
		Where("?TableAlias.token = ?", token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if isNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}
	return record, nil
}

func (a *activations) CreateTx(ctx context.Context, tx bun.IDB, record *ActivationRecord) (*ActivationRecord, error) {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}
	if _, err := tx.NewInsert().Model(record).Returning("id").Exec(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (a *activations) Activate(ctx context.Context, token string) (int64, error) {
	return a.ActivateTx(ctx, a.db, token)
}

func (a *activations) ActivateTx(ctx context.Context, tx bun.IDB, token string) (int64, error) {
	res, err := tx.NewUpdate().
		Model((*ActivationRecord)(nil)).
		Set("activated = ?", true).
		Where("token = ?", token).
		Where("activated = ?", false).
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate key")
}
