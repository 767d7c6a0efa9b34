package registry

import "github.com/gebeya-market/gebeya-backend/pkg/enums"

// NonRetryableError marks a row that can never be published as stored; the
// publisher parks it with Reason instead of retrying.
type NonRetryableError struct {
	Err    error
	Reason enums.OutboxDLQReason
}

func NewNonRetryableError(reason enums.OutboxDLQReason, err error) NonRetryableError {
	return NonRetryableError{Err: err, Reason: reason}
}

func (e NonRetryableError) Error() string {
	if e.Err == nil {
		return "non-retryable: " + string(e.Reason)
	}
	return e.Err.Error()
}

func (e NonRetryableError) Unwrap() error { return e.Err }
