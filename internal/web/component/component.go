// Package component renders the HTML fragments and pages of the chat
// interface. Everything dynamic is escaped at the point of insertion,
// so callers can pass raw user or model text.
package component

import (
	"context"
	"fmt"
	"html"
	"io"
	"time"

	"github.com/a-h/templ"

	"github.com/tezansahu/career-mentor-agent/internal/session"
)

// comp wraps a render func as a templ.Component.
func comp(f func(ctx context.Context, w io.Writer) error) templ.Component {
	return templ.ComponentFunc(f)
}

// esc shortens html.EscapeString at call sites.
func esc(s string) string { return html.EscapeString(s) }

// MessageBubbleProps describes one committed chat message.
type MessageBubbleProps struct {
	Role    string // "user" or "assistant"
	Content string
}

// MessageBubble renders a committed chat message.
func MessageBubble(props MessageBubbleProps) templ.Component {
	return comp(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="message message-%s"><div class="message-content">%s</div></div>`,
			esc(props.Role), esc(props.Content))
		return err
	})
}

// AssistantStreaming renders the placeholder bubble the client script
// fills while the response streams. The message ID tells the script
// which SSE stream to open; the message text stays server-side.
func AssistantStreaming(msgID, sessionID string) templ.Component {
	return comp(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="message message-assistant streaming" id="msg-%s" data-msg-id="%s" data-session-id="%s">`+
				`<div class="message-tools" id="msg-tools-%s"></div>`+
				`<div class="message-content" id="msg-content-%s"><span class="typing">&hellip;</span></div>`+
				`</div>`,
			esc(msgID), esc(msgID), esc(sessionID), esc(msgID), esc(msgID))
		return err
	})
}

// Tool status states.
const (
	ToolStateRunning = "running"
	ToolStateDone    = "done"
	ToolStateFailed  = "failed"
)

// ToolStatusProps describes one tool invocation for display.
type ToolStatusProps struct {
	CallID string
	Label  string // human label, e.g. "Searching the web (golang jobs)"
	State  string
}

// ToolStatus renders a tool invocation badge. The client replaces a
// previous badge with the same call ID, so running flips to done in
// place.
func ToolStatus(props ToolStatusProps) templ.Component {
	return comp(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<div class="tool-status tool-%s" data-call-id="%s">%s</div>`,
			esc(props.State), esc(props.CallID), esc(props.Label))
		return err
	})
}

// ErrorNote renders an inline error the user can act on.
func ErrorNote(message string) templ.Component {
	return comp(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w, `<div class="error-note">%s</div>`, esc(message))
		return err
	})
}

// SessionFields renders the hidden form inputs that carry the session
// binding. Sent as an out-of-band fragment after lazy session
// creation; the client script swaps them in by id.
func SessionFields(sessionID, csrfToken string) templ.Component {
	return comp(func(ctx context.Context, w io.Writer) error {
		_, err := fmt.Fprintf(w,
			`<input type="hidden" id="session-id" name="session_id" value="%s" data-swap="replace">`+
				`<input type="hidden" id="csrf-token" name="csrf_token" value="%s" data-swap="replace">`,
			esc(sessionID), esc(csrfToken))
		return err
	})
}

// SessionItem is the sidebar's view of one session.
type SessionItem struct {
	ID        string
	Title     string
	UpdatedAt time.Time
}

// SessionListItem renders one sidebar entry.
func SessionListItem(item SessionItem, active bool) templ.Component {
	return comp(func(ctx context.Context, w io.Writer) error {
		class := "session-item"
		if active {
			class += " active"
		}
		title := item.Title
		if title == "" {
			title = "New chat"
		}
		_, err := fmt.Fprintf(w,
			`<li class="%s" data-session-id="%s">`+
				`<a href="/?session_id=%s">%s</a>`+
				`<button type="button" class="session-delete" data-session-id="%s" title="Delete chat">&times;</button>`+
				`</li>`,
			esc(class), esc(item.ID), esc(item.ID), esc(title), esc(item.ID))
		return err
	})
}

// SessionList renders the inner content of the sidebar session list.
func SessionList(items []SessionItem, activeID string) templ.Component {
	return comp(func(ctx context.Context, w io.Writer) error {
		if len(items) == 0 {
			_, err := io.WriteString(w, `<li class="session-empty">No chats yet</li>`)
			return err
		}
		for _, item := range items {
			if err := SessionListItem(item, item.ID == activeID).Render(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
}

// TurnView is a transcript turn prepared for rendering.
type TurnView struct {
	Role      string
	Text      string
	ToolCalls []session.ToolCallRecord
}

// Transcript renders the committed history of a session.
func Transcript(turns []TurnView) templ.Component {
	return comp(func(ctx context.Context, w io.Writer) error {
		for _, turn := range turns {
			for _, call := range turn.ToolCalls {
				status := ToolStatus(ToolStatusProps{
					CallID: "",
					Label:  toolHistoryLabel(call),
					State:  ToolStateDone,
				})
				if err := status.Render(ctx, w); err != nil {
					return err
				}
			}
			bubble := MessageBubble(MessageBubbleProps{Role: turn.Role, Content: turn.Text})
			if err := bubble.Render(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
}

func toolHistoryLabel(call session.ToolCallRecord) string {
	if call.Input != "" {
		return fmt.Sprintf("Used %s (%s)", call.Name, call.Input)
	}
	return fmt.Sprintf("Used %s", call.Name)
}
