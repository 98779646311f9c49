// Package mail renders the emails the service sends. Transport lives in
// internal/dispatcher.
package mail

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/jmehdipour/reminder/internal/model"
)

type Message struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Sender delivers one message. A nil error means the transport accepted it.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

const (
	tmplReminder           = "reminder"
	tmplWelcome            = "welcome"
	tmplFriendshipAccepted = "friendship_accepted"
	tmplInvitationAccepted = "invitation_accepted"
	tmplEventCancelled     = "event_cancelled"
)

var templates = template.Must(template.New("mail").Funcs(template.FuncMap{
	"when": func(t time.Time) string { return t.UTC().Format("Mon, 02 Jan 2006 15:04 MST") },
}).Parse(`
{{define "reminder"}}Hi {{.Name}},

"{{.Title}}" starts at {{when .StartsAt}}.

See you there.{{end}}

{{define "welcome"}}Hi {{.Name}},

Welcome aboard. Create an event and invite your friends to get reminders before it starts.{{end}}

{{define "friendship_accepted"}}Hi {{.Name}},

{{.Friend}} accepted your friend request.{{end}}

{{define "invitation_accepted"}}Hi {{.Name}},

{{.Attendee}} accepted your invitation to "{{.Title}}" on {{when .StartsAt}}.{{end}}

{{define "event_cancelled"}}Hi {{.Name}},

"{{.Title}}" planned for {{when .StartsAt}} has been cancelled.{{end}}
`))

func render(name, to, subject string, data any) (Message, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return Message{}, fmt.Errorf("render %s: %w", name, err)
	}
	return Message{To: to, Subject: subject, Body: strings.TrimSpace(buf.String())}, nil
}

// Reminder renders the notice for a due notification. The occurrence time is
// the notification's scheduled time.
func Reminder(n model.DueNotification) (Message, error) {
	return render(tmplReminder, n.RecipientEmail, "Reminder: "+n.EventTitle, map[string]any{
		"Name":     n.RecipientName,
		"Title":    n.EventTitle,
		"StartsAt": n.ScheduledAt,
	})
}

func Welcome(u model.User) (Message, error) {
	return render(tmplWelcome, u.Email, "Welcome", map[string]any{"Name": u.Name})
}

// FriendshipAccepted tells the requester that addressee accepted.
func FriendshipAccepted(requester, addressee model.User) (Message, error) {
	return render(tmplFriendshipAccepted, requester.Email, addressee.Name+" is now your friend", map[string]any{
		"Name":   requester.Name,
		"Friend": addressee.Name,
	})
}

// InvitationAccepted tells the event owner that attendee joined.
func InvitationAccepted(owner, attendee model.User, ev model.GroupEvent) (Message, error) {
	return render(tmplInvitationAccepted, owner.Email, attendee.Name+" joined "+ev.Title, map[string]any{
		"Name":     owner.Name,
		"Attendee": attendee.Name,
		"Title":    ev.Title,
		"StartsAt": ev.StartsAt,
	})
}

func EventCancelled(attendee model.User, ev model.GroupEvent) (Message, error) {
	return render(tmplEventCancelled, attendee.Email, "Cancelled: "+ev.Title, map[string]any{
		"Name":     attendee.Name,
		"Title":    ev.Title,
		"StartsAt": ev.StartsAt,
	})
}
