package engine

import (
	"errors"
	"fmt"
)

func sprintf(format string, args ...any) string {
	return fmt.Sprintf(format, args...)
}

func asRuntimeError(err error, target **RuntimeError) bool {
	return errors.As(err, target)
}
