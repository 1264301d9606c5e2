package services

import (
	"fmt"

	"github.com/pillarworks/storefront/pkg"
)

// validationError wraps a model Validate failure so handlers answer 422.
func validationError(err error) error {
	return fmt.Errorf("%w: %s", pkg.ErrValidation, err.Error())
}
