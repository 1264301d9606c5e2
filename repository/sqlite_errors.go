package repository

import (
	"fmt"
	"strings"

	"github.com/pillarworks/storefront/pkg"
)

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}

// mapWriteError turns constraint failures into domain errors: unique → 409,
// foreign key → 400. Anything else is wrapped with op.
func mapWriteError(err error, op, conflictMsg, fkMsg string) error {
	switch {
	case isUniqueViolation(err):
		return fmt.Errorf("%w: %s", pkg.ErrAlreadyExists, conflictMsg)
	case isForeignKeyViolation(err):
		return fmt.Errorf("%w: %s", pkg.ErrBadRequest, fkMsg)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}

// requireAffected returns pkg.ErrNotFound when a write touched no row.
func requireAffected(res interface{ RowsAffected() (int64, error) }) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if affected == 0 {
		return pkg.ErrNotFound
	}
	return nil
}
