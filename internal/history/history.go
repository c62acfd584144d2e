// Package history keeps the chat transcript between customers and the agent.
package history

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Message roles
const (
	RoleUser  = "user"
	RoleAgent = "agent"
)

// Message is a single chat line.
type Message struct {
	ID        string    `json:"id" dynamodbav:"id"` // PK
	UserID    string    `json:"user_id" dynamodbav:"user_id"`
	Role      string    `json:"role" dynamodbav:"role"`
	Content   string    `json:"content" dynamodbav:"content"`
	Timestamp time.Time `json:"timestamp" dynamodbav:"timestamp"`
}

// Store appends and lists chat messages.
type Store interface {
	// Add persists a message and returns it with id and timestamp set.
	Add(ctx context.Context, userID, role, content string) (Message, error)
	// List returns messages oldest first; a blank userID returns everyone's.
	List(ctx context.Context, userID string) ([]Message, error)
}

// ValidRole reports whether role is user or agent.
func ValidRole(role string) bool {
	return role == RoleUser || role == RoleAgent
}

func checkRole(role string) error {
	if !ValidRole(role) {
		return fmt.Errorf("invalid role %q: must be %q or %q", role, RoleUser, RoleAgent)
	}
	return nil
}

func filterAndSort(msgs []Message, userID string) []Message {
	userID = strings.TrimSpace(userID)
	out := make([]Message, 0, len(msgs))
	for _, m := range msgs {
		if userID == "" || m.UserID == userID {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}
