package util

import (
	"errors"
	"fmt"
)

// WrapErr prefixes err with message. A nil err yields an error carrying only the message.
func WrapErr(message string, err error) error {
	if err == nil {
		return errors.New(message)
	}
	return fmt.Errorf("%s; %w", message, err)
}
