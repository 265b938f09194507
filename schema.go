package auth

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// CreateSchema creates the auth tables and indexes if missing
func CreateSchema(ctx context.Context, db *bun.DB) error {
	models := []any{
		(*Role)(nil),
		(*Account)(nil),
		(*AccountRole)(nil),
		(*ActivationRecord)(nil),
	}

	for _, model := range models {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create table")
		}
	}

	indexes := []struct {
		name string
		expr string
	}{
		{name: "accounts_username_lower_idx", expr: "lower(username)"},
		{name: "accounts_email_lower_idx", expr: "lower(email)"},
	}

	for _, idx := range indexes {
		_, err := db.NewCreateIndex().
			Model((*Account)(nil)).
			Index(idx.name).
			Unique().
			IfNotExists().
			ColumnExpr(idx.expr).
			Exec(ctx)
		if err != nil {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create index").
				WithMetadata(map[string]any{"index": idx.name})
		}
	}

	return nil
}

// Bootstrap creates the schema and seeds the built in roles
func Bootstrap(ctx context.Context, repo RepositoryManager, db *bun.DB) error {
	if err := CreateSchema(ctx, db); err != nil {
		return err
	}
	return repo.Roles().Seed(ctx, RoleUser, RoleAdmin)
}
