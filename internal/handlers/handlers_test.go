package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imrishuroy/go-chat-orderflow/internal/assembly"
	"github.com/imrishuroy/go-chat-orderflow/internal/extraction"
	"github.com/imrishuroy/go-chat-orderflow/internal/history"
	"github.com/imrishuroy/go-chat-orderflow/internal/idempotency"
	"github.com/imrishuroy/go-chat-orderflow/internal/orders"
	"github.com/imrishuroy/go-chat-orderflow/internal/store"
)

type cannedOracle struct {
	mu      sync.Mutex
	calls   int
	replies map[string]orders.Fragment
}

func (o *cannedOracle) Extract(ctx context.Context, message string, prior *orders.OrderRecord) (orders.Fragment, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.calls++
	frag, ok := o.replies[message]
	if !ok {
		return orders.Fragment{}, &extraction.ExtractionError{Message: message, At: time.Now(), Err: extraction.ErrMalformedOutput}
	}
	return frag, nil
}

// memIdempotency is an in-memory IdempotencyStore with the same claim rules
// as the DynamoDB store.
type memIdempotency struct {
	mu   sync.Mutex
	recs map[string]*idempotency.IdempotencyRecord
}

func (m *memIdempotency) Claim(ctx context.Context, key, hash string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if rec, ok := m.recs[key]; ok && rec.Status != idempotency.StatusFailed {
		return false, nil
	}
	m.recs[key] = &idempotency.IdempotencyRecord{IdempotencyKey: key, Status: idempotency.StatusInProgress, RequestHash: hash}
	return true, nil
}

func (m *memIdempotency) Get(ctx context.Context, key string) (*idempotency.IdempotencyRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.recs[key]
	if !ok {
		return nil, nil
	}
	cp := *rec
	return &cp, nil
}

func (m *memIdempotency) MarkDone(ctx context.Context, key string, orderID int64, body string, status int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.recs[key]
	rec.Status, rec.OrderID, rec.ResponseBody, rec.ResponseStatus = idempotency.StatusDone, orderID, body, status
	return nil
}

func (m *memIdempotency) MarkFailed(ctx context.Context, key, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec := m.recs[key]
	rec.Status, rec.Note = idempotency.StatusFailed, note
	return nil
}

type testServer struct {
	router  *gin.Engine
	oracle  *cannedOracle
	history history.Store
	idem    *memIdempotency
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dir := t.TempDir()

	oracle := &cannedOracle{replies: map[string]orders.Fragment{
		"Cho mình 2 bánh chocolate, giao lúc 14:00": {
			DeliveryTime: "14:00",
			Items:        []orders.LineItem{{Name: "Bánh chocolate", Quantity: 2}},
		},
		"Mình là Nguyễn Văn A, 0901234567, giao tới 123 Lê Lợi": {
			CustomerName: "Nguyễn Văn A",
			Phone:        "0901234567",
			Address:      "123 Lê Lợi",
		},
	}}
	asm := assembly.New(oracle,
		store.NewFileStore(filepath.Join(dir, "order_info.json")),
		store.NewFileStore(filepath.Join(dir, "confirmed_orders.json")))
	hist := history.NewFileStore(filepath.Join(dir, "chat_history.json"))
	idem := &memIdempotency{recs: map[string]*idempotency.IdempotencyRecord{}}

	r := gin.New()
	r.Use(CORS([]string{"http://localhost:3000"}))
	RegisterChatbotRoutes(r, HandlerConfig{Orders: asm, History: hist, Idempotency: idem})
	RegisterHistoryRoutes(r, hist)
	return &testServer{router: r, oracle: oracle, history: hist, idem: idem}
}

func (s *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

func TestProcessAndConfirmFlow(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/chatbot/process", `{"message":"Cho mình 2 bánh chocolate, giao lúc 14:00","user_id":"u1"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	res := decode(t, w)
	assert.Equal(t, "missing_info", res["type"])
	assert.Equal(t, float64(1), res["order_id"])
	assert.Equal(t, []any{"customerName", "phone", "address"}, res["missing_fields"])

	// confirm too early is rejected with the missing fields
	w = s.do(http.MethodPost, "/chatbot/confirm", `{"order_id":1}`, nil)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	body := decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, []any{"customerName", "phone", "address"}, body["missing_fields"])

	w = s.do(http.MethodPost, "/chatbot/process", `{"message":"Mình là Nguyễn Văn A, 0901234567, giao tới 123 Lê Lợi","order_id":1,"user_id":"u1"}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	res = decode(t, w)
	assert.Equal(t, "confirmation", res["type"])
	assert.NotContains(t, res, "missing_fields")

	w = s.do(http.MethodPost, "/chatbot/confirm", `{"order_id":1}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body = decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "CONFIRMED", body["data"].(map[string]any)["status"])

	w = s.do(http.MethodGet, "/chatbot/confirmed-orders", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var confirmed []orders.OrderRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &confirmed))
	require.Len(t, confirmed, 1)
	assert.Equal(t, int64(1), confirmed[0].ID)

	// further messages for the confirmed order conflict
	w = s.do(http.MethodPost, "/chatbot/process", `{"message":"Mình là Nguyễn Văn A, 0901234567, giao tới 123 Lê Lợi","order_id":1}`, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "error", decode(t, w)["type"])

	// both exchanges were written to history
	msgs, err := s.history.List(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	assert.Equal(t, history.RoleUser, msgs[0].Role)
	assert.Equal(t, history.RoleAgent, msgs[1].Role)
}

func TestProcess_Errors(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/chatbot/process", `{"message":"???"}`, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	res := decode(t, w)
	assert.Equal(t, "error", res["type"])
	assert.Equal(t, map[string]any{}, res["data"])

	w = s.do(http.MethodPost, "/chatbot/process", `{"message":"Cho mình 2 bánh chocolate, giao lúc 14:00","order_id":9}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = s.do(http.MethodPost, "/chatbot/process", `{"message":""}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPost, "/chatbot/confirm", `{"order_id":9}`, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestProcess_IdempotencyKeyReplays(t *testing.T) {
	s := newTestServer(t)
	hdr := map[string]string{IdempotencyKeyHeader: "k-1"}
	payload := `{"message":"Cho mình 2 bánh chocolate, giao lúc 14:00"}`

	first := s.do(http.MethodPost, "/chatbot/process", payload, hdr)
	require.Equal(t, http.StatusOK, first.Code)

	second := s.do(http.MethodPost, "/chatbot/process", payload, hdr)
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.JSONEq(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, s.oracle.calls, "retry must not be processed twice")

	w := s.do(http.MethodGet, "/chatbot/orders", "", nil)
	var drafts []orders.OrderRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &drafts))
	assert.Len(t, drafts, 1)

	reused := s.do(http.MethodPost, "/chatbot/process", `{"message":"khác"}`, hdr)
	assert.Equal(t, http.StatusUnprocessableEntity, reused.Code)
}

func TestProcess_FailedSubmissionCanBeRetried(t *testing.T) {
	s := newTestServer(t)
	hdr := map[string]string{IdempotencyKeyHeader: "k-2"}

	w := s.do(http.MethodPost, "/chatbot/process", `{"message":"???"}`, hdr)
	require.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, idempotency.StatusFailed, s.idem.recs["process#k-2"].Status)

	w = s.do(http.MethodPost, "/chatbot/process", `{"message":"???"}`, hdr)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	assert.Equal(t, 2, s.oracle.calls)
}

func TestAnalyze_CreatesDraft(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/chatbot/analyze", `{"message":"Cho mình 2 bánh chocolate, giao lúc 14:00"}`, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decode(t, w)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, "Message analyzed successfully", body["message"])
	data := body["data"].(map[string]any)
	assert.Equal(t, float64(1), data["id"])
	assert.Equal(t, "14:00", data["delivery_time"])

	w = s.do(http.MethodGet, "/chatbot/orders", "", nil)
	var drafts []orders.OrderRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &drafts))
	require.Len(t, drafts, 1)
	assert.Equal(t, orders.StatusDraft, drafts[0].Status)

	w = s.do(http.MethodPost, "/chatbot/analyze", `{"message":"???"}`, nil)
	assert.Equal(t, http.StatusBadGateway, w.Code)
	body = decode(t, w)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, map[string]any{}, body["data"])

	w = s.do(http.MethodPost, "/chatbot/analyze", `{"message":"  "}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestProcess_ClientKeysCannotShadowServerLedgers(t *testing.T) {
	s := newTestServer(t)
	payload := `{"message":"Cho mình 2 bánh chocolate, giao lúc 14:00"}`

	w := s.do(http.MethodPost, "/chatbot/process", payload, map[string]string{IdempotencyKeyHeader: "dispatch-1"})
	require.Equal(t, http.StatusOK, w.Code)

	_, taken := s.idem.recs["dispatch-1"]
	assert.False(t, taken, "client key landed in the worker's namespace")
	claimed, err := s.idem.Claim(context.Background(), "dispatch-1", "h")
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestListAndClearDrafts(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodGet, "/chatbot/orders", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `[]`, w.Body.String())

	s.do(http.MethodPost, "/chatbot/process", `{"message":"Cho mình 2 bánh chocolate, giao lúc 14:00"}`, nil)
	s.do(http.MethodPost, "/chatbot/process", `{"message":"Cho mình 2 bánh chocolate, giao lúc 14:00"}`, nil)

	w = s.do(http.MethodGet, "/chatbot/orders", "", nil)
	var drafts []orders.OrderRecord
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &drafts))
	require.Len(t, drafts, 2)
	assert.Equal(t, int64(1), drafts[0].ID)
	assert.Equal(t, int64(2), drafts[1].ID)

	w = s.do(http.MethodDelete, "/chatbot/orders", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["success"])

	w = s.do(http.MethodGet, "/chatbot/orders", "", nil)
	assert.JSONEq(t, `[]`, w.Body.String())
}

func TestHistoryRoutes(t *testing.T) {
	s := newTestServer(t)

	w := s.do(http.MethodPost, "/history", `{"user_id":"u1","role":"user","content":"xin chào"}`, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	msg := decode(t, w)
	assert.NotEmpty(t, msg["id"])
	assert.Equal(t, "user", msg["role"])

	s.do(http.MethodPost, "/history", `{"user_id":"u2","role":"agent","content":"chào bạn"}`, nil)

	w = s.do(http.MethodPost, "/history", `{"user_id":"u1","role":"bot","content":"x"}`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodGet, "/history?user_id=u1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var msgs []history.Message
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	require.Len(t, msgs, 1)
	assert.Equal(t, "xin chào", msgs[0].Content)

	w = s.do(http.MethodGet, "/history", "", nil)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &msgs))
	assert.Len(t, msgs, 2)
}

func TestCORS_Preflight(t *testing.T) {
	s := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/chatbot/process", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	req.Header.Set("Access-Control-Request-Headers", "Content-Type, Idempotency-Key")
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	w = s.do(http.MethodGet, "/chatbot/orders", "", map[string]string{"Origin": "http://localhost:3000"})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
}
