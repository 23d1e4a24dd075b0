// Package repo holds the gorm plumbing shared by the gateway's repositories.
package repo

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/storefront/pkg/db"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
)

// Base binds a repository to a connection. A Base built inside a transaction
// shares the transaction's connection.
type Base struct {
	db *gorm.DB
}

// NewBase constructs a Base repository backed by the provided GORM connection.
func NewBase(conn *gorm.DB) Base {
	return Base{db: conn}
}

// DB returns the GORM connection bound to the supplied context (if any).
func (b Base) DB(ctx context.Context) *gorm.DB {
	if ctx == nil {
		return b.db
	}
	return b.db.WithContext(ctx)
}

// WithTx returns a copy of b that runs against tx.
func (b Base) WithTx(tx *gorm.DB) Base {
	return Base{db: tx}
}

// Translate maps gorm and driver errors onto typed errors. notFound and conflict
// become the public messages for a missing row and a unique violation.
func Translate(err error, notFound, conflict string) error {
	switch {
	case err == nil:
		return nil
	case db.IsNotFound(err):
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, notFound)
	case conflict != "" && db.IsUniqueViolation(err, ""):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, conflict)
	}
	if typed := pkgerrors.As(err); typed != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "database error")
}
