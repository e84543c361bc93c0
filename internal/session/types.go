// Package session keeps in-memory chat sessions with append-only turn
// logs. Nothing is persisted: all state lives for the process lifetime
// and is lost on restart.
package session

import (
	"time"

	"github.com/google/uuid"
)

// Role constants define valid turn roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ToolCallRecord captures one tool invocation inside an assistant turn,
// in arrival order.
type ToolCallRecord struct {
	Name   string
	Input  string
	Output string
}

// Turn is a single committed entry in a session's transcript. Once
// appended it is never mutated.
type Turn struct {
	Role      string
	Text      string
	ToolCalls []ToolCallRecord
	CreatedAt time.Time
}

// Credentials hold per-session agent settings collected from the UI.
// Token and Model gate chat; SerperKey only gates the web_search tool.
type Credentials struct {
	Token     string
	Model     string
	SerperKey string
}

// Complete reports whether the credentials suffice to create an agent.
func (c Credentials) Complete() bool {
	return c.Token != "" && c.Model != ""
}

// Session is a single browser conversation.
type Session struct {
	ID          uuid.UUID
	Title       string
	CreatedAt   time.Time
	UpdatedAt   time.Time
	Credentials Credentials
	TurnCount   int
}
