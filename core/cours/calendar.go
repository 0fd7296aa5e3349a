package cours

import (
	"context"
	"strings"
	"time"

	"github.com/maraakiz/maraakiz/core/user"
)

// Event is the provider-agnostic description of a cours on an external calendar.
type Event struct {
	Titre       string
	Description string
	EleveNoms   []string
	LienVisio   string
	Debut       time.Time
	Fin         time.Time
}

// FullDescription appends the students and the video link to the description.
func (ev Event) FullDescription() string {
	var b strings.Builder
	b.WriteString(ev.Description)
	if len(ev.EleveNoms) > 0 {
		b.WriteString("\n\nÉlèves: ")
		b.WriteString(strings.Join(ev.EleveNoms, ", "))
	}
	if ev.LienVisio != "" {
		b.WriteString("\n\nLien visio: ")
		b.WriteString(ev.LienVisio)
	}
	return strings.TrimSpace(b.String())
}

// CalendarProvider syncs cours with a user's external calendar.
// Every call returns the tokens in use afterwards, which differ from tok when they were refreshed.
type CalendarProvider interface {
	AuthURL(state string) string
	Exchange(ctx context.Context, code string) (user.GoogleTokens, error)
	CreateEvent(ctx context.Context, tok user.GoogleTokens, ev Event) (string, user.GoogleTokens, error)
	UpdateEvent(ctx context.Context, tok user.GoogleTokens, eventID string, ev Event) (user.GoogleTokens, error)
	DeleteEvent(ctx context.Context, tok user.GoogleTokens, eventID string) (user.GoogleTokens, error)
}

// GoogleStatus tells the frontend whether the calendar sync is usable.
type GoogleStatus struct {
	Connected bool `json:"connected"`
	HasTokens bool `json:"has_tokens"`
}

func tokensOf(usr user.User) user.GoogleTokens {
	return user.GoogleTokens{
		AccessToken:  usr.GoogleAccessToken,
		RefreshToken: usr.GoogleRefreshToken,
		Expiry:       usr.GoogleTokenExpiry.Time,
	}
}
