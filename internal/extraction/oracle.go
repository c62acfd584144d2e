// Package extraction turns a free-form customer message into a partial order
// fragment using a language model.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/imrishuroy/go-chat-orderflow/internal/orders"
)

// Oracle extracts a fragment from one message. prior is the record assembled
// so far, or nil for the first message of a conversation. Implementations must
// not retry on failure.
type Oracle interface {
	Extract(ctx context.Context, message string, prior *orders.OrderRecord) (orders.Fragment, error)
}

// ErrMalformedOutput is wrapped by ExtractionError when the model answered with
// something that is not a well-formed fragment.
var ErrMalformedOutput = errors.New("malformed oracle output")

// ExtractionError carries the original message and the failure time so the
// caller can report and resubmit.
type ExtractionError struct {
	Message string
	At      time.Time
	Err     error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to analyze message: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }
