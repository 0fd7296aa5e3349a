package gcal

import (
	"net/http"
	"net/url"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/cours"
)

func testConfig() *core.Config {
	return &core.Config{
		Google: core.GoogleConfig{
			ClientID:     "client-id",
			ClientSecret: "secret",
			RedirectURL:  "http://localhost:5173/calendrier/google/callback",
			TimeZone:     "Europe/Paris",
		},
	}
}

func TestNewProvider(t *testing.T) {
	assert.Nil(t, NewProvider(&core.Config{}))
	assert.NotNil(t, NewProvider(testConfig()))
}

func TestProvider_AuthURL(t *testing.T) {
	p := NewProvider(testConfig())
	u, err := url.Parse(p.AuthURL("state-123"))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "accounts.google.com", u.Host)
	assert.Equal(t, "state-123", q.Get("state"))
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "offline", q.Get("access_type"))
	assert.Equal(t, "consent", q.Get("prompt"))
}

func TestProvider_event(t *testing.T) {
	p := NewProvider(testConfig()).(*provider)
	// "09:00" typed by the user is kept as 09:00 in the calendar time zone
	dt, err := core.ParseDateTime("2024-03-04T09:00")
	require.NoError(t, err)
	debut := dt.Time
	e := p.event(cours.Event{
		Titre:     "Tajwid",
		EleveNoms: []string{"Amina B"},
		LienVisio: "https://meet.example.com/x",
		Debut:     debut,
		Fin:       debut.Add(time.Hour),
	})

	assert.Equal(t, "Tajwid", e.Summary)
	assert.Equal(t, "https://meet.example.com/x", e.Location)
	assert.Equal(t, "2024-03-04T09:00:00", e.Start.DateTime)
	assert.Equal(t, "2024-03-04T10:00:00", e.End.DateTime)
	assert.Equal(t, "Europe/Paris", e.Start.TimeZone)
	assert.Equal(t, "Europe/Paris", e.End.TimeZone)
	assert.Contains(t, e.Description, "Amina B")
	require.Len(t, e.Reminders.Overrides, 2)
	assert.Equal(t, int64(30), e.Reminders.Overrides[0].Minutes)
	assert.False(t, e.Reminders.UseDefault)
}

func TestIsGone(t *testing.T) {
	assert.True(t, isGone(errors.Wrap(&googleapi.Error{Code: http.StatusGone}, "deleting")))
	assert.True(t, isGone(&googleapi.Error{Code: http.StatusNotFound}))
	assert.False(t, isGone(&googleapi.Error{Code: http.StatusUnauthorized}))
	assert.False(t, isGone(errors.New("boom")))
}
