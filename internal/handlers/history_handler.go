package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-chat-orderflow/internal/history"
	"github.com/imrishuroy/go-chat-orderflow/internal/validation"
)

// RegisterHistoryRoutes registers POST and GET /history.
func RegisterHistoryRoutes(r gin.IRouter, store history.Store) {
	v := validation.New()

	r.POST("/history", func(c *gin.Context) {
		var req validation.HistoryMessageRequest
		if err := validation.BindAndValidate(c, &req, v); err != nil {
			return
		}
		msg, err := store.Add(c.Request.Context(), req.UserID, req.Role, req.Content)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "history_write_failed", "detail": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, msg)
	})

	r.GET("/history", func(c *gin.Context) {
		msgs, err := store.List(c.Request.Context(), c.Query("user_id"))
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "history_read_failed", "detail": err.Error()})
			return
		}
		if msgs == nil {
			msgs = []history.Message{}
		}
		c.JSON(http.StatusOK, msgs)
	})
}
