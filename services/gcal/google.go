// Package gcal syncs cours with Google Calendar.
package gcal

import (
	"context"
	"net/http"

	"github.com/pkg/errors"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/cours"
	"github.com/maraakiz/maraakiz/core/user"
)

const primaryCalendar = "primary"

type provider struct {
	oauth    *oauth2.Config
	timeZone string
}

var _ cours.CalendarProvider = (*provider)(nil)

// NewProvider returns nil when the Google credentials are not configured.
func NewProvider(conf *core.Config) cours.CalendarProvider {
	if !conf.GoogleEnabled() {
		return nil
	}
	return &provider{
		oauth: &oauth2.Config{
			ClientID:     conf.Google.ClientID,
			ClientSecret: conf.Google.ClientSecret,
			RedirectURL:  conf.Google.RedirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{calendar.CalendarEventsScope},
		},
		timeZone: conf.Google.TimeZone,
	}
}

func (p *provider) AuthURL(state string) string {
	// offline + forced consent so that Google always returns a refresh token
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

func (p *provider) Exchange(ctx context.Context, code string) (user.GoogleTokens, error) {
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return user.GoogleTokens{}, errors.Wrap(err, "exchanging google code")
	}
	return fromToken(tok), nil
}

func fromToken(tok *oauth2.Token) user.GoogleTokens {
	return user.GoogleTokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry.UTC(),
	}
}

// session is a calendar client whose token source remembers refreshed tokens.
type session struct {
	svc *calendar.Service
	ts  oauth2.TokenSource
	tok user.GoogleTokens
}

func (p *provider) session(ctx context.Context, tok user.GoogleTokens) (*session, error) {
	ts := p.oauth.TokenSource(ctx, &oauth2.Token{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
		TokenType:    "Bearer",
	})
	svc, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, errors.Wrap(err, "creating calendar client")
	}
	return &session{svc: svc, ts: ts, tok: tok}, nil
}

// tokens returns the tokens after the calls, keeping the refresh token when none was re-issued.
func (s *session) tokens() user.GoogleTokens {
	cur, err := s.ts.Token()
	if err != nil {
		return s.tok
	}
	out := fromToken(cur)
	if out.RefreshToken == "" {
		out.RefreshToken = s.tok.RefreshToken
	}
	return out
}

// wallClock is a date time without offset, read by Google in the event time zone.
const wallClock = "2006-01-02T15:04:05"

func (p *provider) event(ev cours.Event) *calendar.Event {
	e := &calendar.Event{
		Summary:     ev.Titre,
		Description: ev.FullDescription(),
		Start:       &calendar.EventDateTime{DateTime: ev.Debut.Format(wallClock), TimeZone: p.timeZone},
		End:         &calendar.EventDateTime{DateTime: ev.Fin.Format(wallClock), TimeZone: p.timeZone},
		Reminders: &calendar.EventReminders{
			Overrides: []*calendar.EventReminder{
				{Method: "popup", Minutes: 30},
				{Method: "popup", Minutes: 10},
			},
			// UseDefault=false must be sent explicitly for the overrides to apply
			ForceSendFields: []string{"UseDefault"},
		},
	}
	if ev.LienVisio != "" {
		e.Location = ev.LienVisio
	}
	return e
}

func (p *provider) CreateEvent(ctx context.Context, tok user.GoogleTokens, ev cours.Event) (string, user.GoogleTokens, error) {
	s, err := p.session(ctx, tok)
	if err != nil {
		return "", tok, err
	}
	created, err := s.svc.Events.Insert(primaryCalendar, p.event(ev)).Context(ctx).Do()
	if err != nil {
		return "", s.tokens(), errors.Wrap(err, "creating google event")
	}
	return created.Id, s.tokens(), nil
}

func (p *provider) UpdateEvent(ctx context.Context, tok user.GoogleTokens, eventID string, ev cours.Event) (user.GoogleTokens, error) {
	s, err := p.session(ctx, tok)
	if err != nil {
		return tok, err
	}
	if _, err = s.svc.Events.Update(primaryCalendar, eventID, p.event(ev)).Context(ctx).Do(); err != nil {
		return s.tokens(), errors.Wrap(err, "updating google event")
	}
	return s.tokens(), nil
}

func (p *provider) DeleteEvent(ctx context.Context, tok user.GoogleTokens, eventID string) (user.GoogleTokens, error) {
	s, err := p.session(ctx, tok)
	if err != nil {
		return tok, err
	}
	err = s.svc.Events.Delete(primaryCalendar, eventID).Context(ctx).Do()
	if err != nil && !isGone(err) {
		return s.tokens(), errors.Wrap(err, "deleting google event")
	}
	return s.tokens(), nil
}

// isGone reports events already deleted on the Google side.
func isGone(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone
	}
	return false
}
