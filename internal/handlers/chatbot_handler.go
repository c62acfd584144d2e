package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-chat-orderflow/internal/assembly"
	"github.com/imrishuroy/go-chat-orderflow/internal/extraction"
	"github.com/imrishuroy/go-chat-orderflow/internal/history"
	"github.com/imrishuroy/go-chat-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-chat-orderflow/internal/logging"
	"github.com/imrishuroy/go-chat-orderflow/internal/orders"
	"github.com/imrishuroy/go-chat-orderflow/internal/validation"
)

// IdempotencyKeyHeader names the optional header that makes a message
// submission safe to retry.
const IdempotencyKeyHeader = "Idempotency-Key"

// submissionKeyPrefix namespaces client keys in the idempotency table it
// shares with the worker's "dispatch-<id>" ledger.
const submissionKeyPrefix = "process#"

// OrderService is the order assembly surface the routes need.
// *assembly.Assembler satisfies it.
type OrderService interface {
	Process(ctx context.Context, message string, orderID *int64) (assembly.Result, error)
	Confirm(ctx context.Context, id int64) (orders.OrderRecord, error)
	Drafts(ctx context.Context) ([]orders.OrderRecord, error)
	ConfirmedOrders(ctx context.Context) ([]orders.OrderRecord, error)
	ClearDrafts(ctx context.Context) error
}

// IdempotencyStore remembers message submissions. *idempotency.Store satisfies it.
type IdempotencyStore interface {
	Claim(ctx context.Context, key, requestHash string) (bool, error)
	Get(ctx context.Context, key string) (*idempotency.IdempotencyRecord, error)
	MarkDone(ctx context.Context, key string, orderID int64, responseBody string, responseStatus int) error
	MarkFailed(ctx context.Context, key, note string) error
}

// HandlerConfig groups dependencies for the chatbot and history routes.
type HandlerConfig struct {
	Orders      OrderService
	History     history.Store    // optional; nil disables transcript writes from /chatbot/process
	Idempotency IdempotencyStore // optional; nil ignores Idempotency-Key
	Logger      *zap.Logger
}

type chatbotHandler struct {
	orders      OrderService
	history     history.Store
	idempotency IdempotencyStore
	validate    *validatorv10.Validate
	logger      *zap.Logger
}

// RegisterChatbotRoutes registers the /chatbot routes.
func RegisterChatbotRoutes(r gin.IRouter, cfg HandlerConfig) {
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	h := &chatbotHandler{
		orders:      cfg.Orders,
		history:     cfg.History,
		idempotency: cfg.Idempotency,
		validate:    validation.New(),
		logger:      logger.Named("chatbot"),
	}

	g := r.Group("/chatbot")
	g.POST("/analyze", h.analyzeMessage)
	g.POST("/process", h.processMessage)
	g.POST("/confirm", h.confirmOrder)
	g.GET("/orders", h.listDrafts)
	g.DELETE("/orders", h.clearDrafts)
	g.GET("/confirmed-orders", h.listConfirmed)
}

func (h *chatbotHandler) processMessage(c *gin.Context) {
	ctx := c.Request.Context()

	raw, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request_body", "msg": err.Error()})
		return
	}
	c.Request.Body = io.NopCloser(bytes.NewReader(raw))

	var req validation.ProcessMessageRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		// BindAndValidate already wrote a 400
		return
	}

	var key string
	if h.idempotency != nil {
		if k := c.GetHeader(IdempotencyKeyHeader); k != "" {
			key = submissionKeyPrefix + k
		}
	}
	if key != "" && h.replayOrClaim(c, key, idempotency.HashRequest(raw)) {
		return
	}

	status := http.StatusOK
	res, procErr := h.orders.Process(ctx, req.Message, req.OrderID)
	if procErr != nil {
		status = statusFor(procErr)
		res = assembly.ErrorResult(procErr)
		_ = c.Error(procErr)
		h.logger.Warn("process message failed",
			zap.String("request_id", logging.RequestID(c)),
			zap.Int64p("order_id", req.OrderID),
			zap.Error(procErr))
	}

	h.recordExchange(ctx, req.UserID, req.Message, res.Message)

	body, err := json.Marshal(res)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode_failed", "detail": err.Error()})
		return
	}

	if key != "" {
		h.finishSubmission(ctx, key, res.OrderID, body, status, procErr)
	}
	c.Data(status, "application/json; charset=utf-8", body)
}

// replayOrClaim reports whether the response was already written from a
// previous submission with the same key.
func (h *chatbotHandler) replayOrClaim(c *gin.Context, key, hash string) bool {
	ctx := c.Request.Context()

	claimed, err := h.idempotency.Claim(ctx, key, hash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed", "detail": err.Error()})
		return true
	}
	if claimed {
		return false
	}

	rec, err := h.idempotency.Get(ctx, key)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "idempotency_check_failed", "detail": err.Error()})
		return true
	}
	if rec == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "idempotency_key_expired"})
		return true
	}
	if rec.RequestHash != hash {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "idempotency_key_reused"})
		return true
	}

	switch rec.Status {
	case idempotency.StatusDone:
		c.Header("Idempotent-Replayed", "true")
		c.Data(rec.ResponseStatus, "application/json; charset=utf-8", []byte(rec.ResponseBody))
	case idempotency.StatusInProgress:
		c.JSON(http.StatusAccepted, gin.H{"message": "request already in progress"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "unknown_idempotency_status"})
	}
	return true
}

// finishSubmission stores the response for replay. Server-side failures are
// marked FAILED instead so the client may retry with the same key.
func (h *chatbotHandler) finishSubmission(ctx context.Context, key string, orderID int64, body []byte, status int, procErr error) {
	var err error
	if status >= http.StatusInternalServerError {
		note := "process_failed"
		if procErr != nil {
			note = procErr.Error()
		}
		err = h.idempotency.MarkFailed(ctx, key, note)
	} else {
		err = h.idempotency.MarkDone(ctx, key, orderID, string(body), status)
	}
	if err != nil {
		h.logger.Error("idempotency update failed", zap.String("idempotency_key", key), zap.Error(err))
	}
}

func (h *chatbotHandler) recordExchange(ctx context.Context, userID, userMsg, reply string) {
	if h.history == nil || userID == "" {
		return
	}
	if _, err := h.history.Add(ctx, userID, history.RoleUser, userMsg); err != nil {
		h.logger.Warn("history append failed", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if reply == "" {
		return
	}
	if _, err := h.history.Add(ctx, userID, history.RoleAgent, reply); err != nil {
		h.logger.Warn("history append failed", zap.String("user_id", userID), zap.Error(err))
	}
}

// analyzeMessage extracts one message into a new draft and answers with the
// extracted record.
func (h *chatbotHandler) analyzeMessage(c *gin.Context) {
	var req validation.AnalyzeMessageRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	res, err := h.orders.Process(c.Request.Context(), req.Message, nil)
	if err != nil {
		_ = c.Error(err)
		h.logger.Warn("analyze message failed",
			zap.String("request_id", logging.RequestID(c)),
			zap.Error(err))
		c.JSON(statusFor(err), gin.H{
			"success": false,
			"message": assembly.ErrorResult(err).Message,
			"data":    gin.H{},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Message analyzed successfully",
		"data":    res.Record,
	})
}

func (h *chatbotHandler) confirmOrder(c *gin.Context) {
	var req validation.ConfirmOrderRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}

	rec, err := h.orders.Confirm(c.Request.Context(), req.OrderID)
	if err != nil {
		_ = c.Error(err)
		body := gin.H{
			"success": false,
			"message": assembly.ErrorResult(err).Message,
			"data":    gin.H{},
		}
		var ve *orders.ValidationError
		if errors.As(err, &ve) {
			body["missing_fields"] = ve.MissingFields
		}
		c.JSON(statusFor(err), body)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": assembly.ConfirmedMessage(rec),
		"data":    rec,
	})
}

func (h *chatbotHandler) listDrafts(c *gin.Context) {
	recs, err := h.orders.Drafts(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load_failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, nonNil(recs))
}

func (h *chatbotHandler) listConfirmed(c *gin.Context) {
	recs, err := h.orders.ConfirmedOrders(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "load_failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, nonNil(recs))
}

func (h *chatbotHandler) clearDrafts(c *gin.Context) {
	if err := h.orders.ClearDrafts(c.Request.Context()); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "clear_failed", "detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "All orders cleared"})
}

// statusFor maps assembly errors to HTTP status codes.
func statusFor(err error) int {
	var (
		extractErr  *extraction.ExtractionError
		notFound    *orders.NotFoundError
		validateErr *orders.ValidationError
	)
	switch {
	case errors.As(err, &extractErr):
		return http.StatusBadGateway
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &validateErr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, orders.ErrAlreadyConfirmed):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func nonNil(recs []orders.OrderRecord) []orders.OrderRecord {
	if recs == nil {
		return []orders.OrderRecord{}
	}
	return recs
}
