package components

import (
	"fmt"

	"github.com/kbukum/recpipe/errors"
)

func errNotSet(slot string) error {
	return errors.InvalidInput(slot, fmt.Sprintf("slot %q is not set", slot))
}

func errInvalid(slot string, err error) error {
	return errors.InvalidInput(slot, err.Error())
}

func errNegative(field string, v int) error {
	return errors.InvalidInput(field, fmt.Sprintf("%s must be >= 0, got %d", field, v))
}
