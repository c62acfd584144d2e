package validation

// AnalyzeMessageRequest is the payload for POST /chatbot/analyze
type AnalyzeMessageRequest struct {
	Message string `json:"message" validate:"required,notblank,max=2000"`
}

// ProcessMessageRequest is the payload for POST /chatbot/process
type ProcessMessageRequest struct {
	Message string `json:"message" validate:"required,notblank,max=2000"`
	OrderID *int64 `json:"order_id,omitempty" validate:"omitempty,min=1"` // continue an existing draft
	UserID  string `json:"user_id,omitempty" validate:"omitempty,max=128"` // enables chat history
}

// ConfirmOrderRequest is the payload for POST /chatbot/confirm
type ConfirmOrderRequest struct {
	OrderID int64 `json:"order_id" validate:"required,min=1"`
}

// HistoryMessageRequest is the payload for POST /history
type HistoryMessageRequest struct {
	UserID  string `json:"user_id" validate:"required,notblank"`
	Role    string `json:"role" validate:"required,oneof=user agent"`
	Content string `json:"content" validate:"required"`
}
