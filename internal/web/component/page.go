package component

import (
	"context"
	"fmt"
	"io"

	"github.com/a-h/templ"
)

// ChatPageProps carries everything the main page needs.
type ChatPageProps struct {
	SessionID string // empty in pre-session state
	CSRFToken string
	Sessions  []SessionItem
	Turns     []TurnView

	Models        []string
	ActiveModel   string
	TokenSet      bool // a token is already stored for this session or the environment
	SerperSet     bool
	CredentialsOK bool
	SettingsSaved bool // show the confirmation note after POST /settings
}

// ChatPage renders the full chat page: sidebar with settings and
// session list, transcript, and the message form.
func ChatPage(props ChatPageProps) templ.Component {
	return comp(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Career Mentor</title>
<link rel="stylesheet" href="/static/css/app.css">
<script src="/static/js/chat.js" defer></script>
</head>
<body>
<div class="app">
`); err != nil {
			return err
		}

		if err := sidebar(props).Render(ctx, w); err != nil {
			return err
		}

		if _, err := io.WriteString(w, `<main class="chat">
<div class="messages" id="messages">
`); err != nil {
			return err
		}
		if err := Transcript(props.Turns).Render(ctx, w); err != nil {
			return err
		}
		if _, err := io.WriteString(w, "</div>\n"); err != nil {
			return err
		}

		if err := messageForm(props).Render(ctx, w); err != nil {
			return err
		}

		_, err := io.WriteString(w, `</main>
</div>
</body>
</html>
`)
		return err
	})
}

func sidebar(props ChatPageProps) templ.Component {
	return comp(func(ctx context.Context, w io.Writer) error {
		if _, err := io.WriteString(w, `<aside class="sidebar">
<h1>Career Mentor</h1>
`); err != nil {
			return err
		}

		if err := settingsForm(props).Render(ctx, w); err != nil {
			return err
		}

		if _, err := fmt.Fprintf(w, `<form method="post" action="/sessions" id="new-chat-form">
<input type="hidden" name="csrf_token" value="%s">
<button type="submit" class="new-chat">New Chat</button>
</form>
<ul class="session-list" id="session-list">
`, esc(props.CSRFToken)); err != nil {
			return err
		}

		if err := SessionList(props.Sessions, props.SessionID).Render(ctx, w); err != nil {
			return err
		}

		_, err := io.WriteString(w, "</ul>\n</aside>\n")
		return err
	})
}

func settingsForm(props ChatPageProps) templ.Component {
	return comp(func(ctx context.Context, w io.Writer) error {
		tokenPlaceholder := "GitHub personal access token"
		if props.TokenSet {
			tokenPlaceholder = "token configured"
		}
		serperPlaceholder := "Serper API key (optional)"
		if props.SerperSet {
			serperPlaceholder = "key configured"
		}

		if _, err := fmt.Fprintf(w, `<form method="post" action="/settings" id="settings-form" class="settings">
<input type="hidden" name="csrf_token" value="%s">
<label>GitHub Token
<input type="password" name="token" placeholder="%s" autocomplete="off">
</label>
<label>Model
<select name="model">
`, esc(props.CSRFToken), esc(tokenPlaceholder)); err != nil {
			return err
		}

		for _, model := range props.Models {
			selected := ""
			if model == props.ActiveModel {
				selected = " selected"
			}
			if _, err := fmt.Fprintf(w, `<option value="%s"%s>%s</option>`+"\n",
				esc(model), selected, esc(model)); err != nil {
				return err
			}
		}

		note := ""
		if props.SettingsSaved {
			note = "Settings saved."
		}
		_, err := fmt.Fprintf(w, `</select>
</label>
<label>Serper Key
<input type="password" name="serper_key" placeholder="%s" autocomplete="off">
</label>
<button type="submit">Save Settings</button>
<div id="settings-note" class="settings-note">%s</div>
</form>
`, esc(serperPlaceholder), esc(note))
		return err
	})
}

func messageForm(props ChatPageProps) templ.Component {
	return comp(func(ctx context.Context, w io.Writer) error {
		hint := ""
		if !props.CredentialsOK {
			hint = `<div class="credential-hint">Add your GitHub token in the sidebar to start chatting.</div>`
		}
		_, err := fmt.Fprintf(w, `%s<form class="composer" id="chat-form" method="post" action="/chat/send">
<input type="hidden" id="session-id" name="session_id" value="%s" data-swap="replace">
<input type="hidden" id="csrf-token" name="csrf_token" value="%s" data-swap="replace">
<textarea name="content" id="chat-input" rows="2" placeholder="Ask about your career path&hellip;" required></textarea>
<button type="submit" id="chat-submit">Send</button>
</form>
`, hint, esc(props.SessionID), esc(props.CSRFToken))
		return err
	})
}
