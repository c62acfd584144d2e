package assembly

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/imrishuroy/go-chat-orderflow/internal/extraction"
	"github.com/imrishuroy/go-chat-orderflow/internal/orders"
)

// ResultType is the caller-facing kind of a Result.
type ResultType string

const (
	ResultMissingInfo  ResultType = "missing_info"
	ResultConfirmation ResultType = "confirmation"
	ResultError        ResultType = "error"
)

// Result is what the transport layer shows to the customer after a message.
type Result struct {
	Type          ResultType
	Message       string
	Record        *orders.OrderRecord
	MissingFields []orders.Field
	OrderID       int64
}

// MarshalJSON renders the wire shape; an error result carries an empty data object.
func (r Result) MarshalJSON() ([]byte, error) {
	type wire struct {
		Type          ResultType     `json:"type"`
		Message       string         `json:"message"`
		Data          any            `json:"data"`
		MissingFields []orders.Field `json:"missing_fields,omitempty"`
		OrderID       int64          `json:"order_id,omitempty"`
	}
	w := wire{
		Type:          r.Type,
		Message:       r.Message,
		Data:          struct{}{},
		MissingFields: r.MissingFields,
		OrderID:       r.OrderID,
	}
	if r.Record != nil {
		w.Data = r.Record
	}
	return json.Marshal(w)
}

func resultFor(rec orders.OrderRecord, c orders.Completeness) Result {
	if !c.IsComplete {
		return Result{
			Type:          ResultMissingInfo,
			Message:       MissingInfoMessage(c.MissingFields),
			Record:        &rec,
			MissingFields: c.MissingFields,
			OrderID:       rec.ID,
		}
	}
	return Result{
		Type:    ResultConfirmation,
		Message: ConfirmationMessage(rec),
		Record:  &rec,
		OrderID: rec.ID,
	}
}

// ErrorResult maps an error from Process or Confirm to the error variant.
func ErrorResult(err error) Result {
	var (
		extractErr  *extraction.ExtractionError
		notFound    *orders.NotFoundError
		validateErr *orders.ValidationError
	)
	msg := "Đã có lỗi xảy ra, bạn vui lòng thử lại sau."
	switch {
	case errors.As(err, &extractErr):
		msg = "Xin lỗi, mình chưa đọc được tin nhắn này. Bạn vui lòng gửi lại giúp mình nhé."
	case errors.As(err, &notFound):
		msg = fmt.Sprintf("Không tìm thấy đơn hàng #%d.", notFound.OrderID)
	case errors.As(err, &validateErr):
		msg = "Đơn hàng chưa đủ thông tin để xác nhận. " + MissingInfoMessage(validateErr.MissingFields)
	case errors.Is(err, orders.ErrAlreadyConfirmed):
		msg = "Đơn hàng này đã được xác nhận. Bạn vui lòng bắt đầu đơn mới nếu muốn đặt thêm."
	}
	return Result{Type: ResultError, Message: msg}
}
