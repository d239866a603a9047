package aggregation

import (
	"errors"
	"fmt"
	"strings"
)

// MaxBuckets caps the number of buckets a single call may produce.
const MaxBuckets = 100_000

// ErrTooManyBuckets is returned when a range would expand past MaxBuckets.
var ErrTooManyBuckets = errors.New("range expands to too many buckets")

// ConfigurationError reports contradictory or unsupported options. It is
// raised before any record is read.
type ConfigurationError struct {
	Options []string
	Reason  string
	Err     error
}

func (e *ConfigurationError) Error() string {
	msg := fmt.Sprintf("invalid options [%s]: %s", strings.Join(e.Options, ", "), e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func configErr(reason string, options ...string) *ConfigurationError {
	return &ConfigurationError{Options: options, Reason: reason}
}

func wrapConfigErr(err error, reason string, options ...string) *ConfigurationError {
	return &ConfigurationError{Options: options, Reason: reason, Err: err}
}
