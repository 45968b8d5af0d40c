package formats

import (
	"errors"
	"fmt"
)

// ParsingError means model output did not match the section grammar the stage
// asked for. Callers treat it as recoverable: the step is retried once before
// the pipeline gives up.
type ParsingError struct {
	Format string
	Detail string
}

func (e *ParsingError) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("parsing %s: text does not match format", e.Format)
	}
	return fmt.Sprintf("parsing %s: %s", e.Format, e.Detail)
}

func newParsingError(format, detail string, args ...interface{}) *ParsingError {
	return &ParsingError{Format: format, Detail: fmt.Sprintf(detail, args...)}
}

func IsParsingError(err error) bool {
	var pe *ParsingError
	return errors.As(err, &pe)
}
