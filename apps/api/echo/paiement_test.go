package echoapi_test

import (
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/eleve"
	"github.com/maraakiz/maraakiz/core/paiement"
	"github.com/maraakiz/maraakiz/tests"
)

func decimalEqual(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, decimal.RequireFromString(want).Equal(got), "want %s; got %s", want, got)
}

func setEleveEmail(t *testing.T, env testEnv, e eleve.Eleve, column, email string) {
	require.NoError(t, env.db.Gorm.Model(&eleve.Eleve{}).Where("id = ?", e.ID).Update(column, email).Error)
}

func Test_paiementApi_crud(t *testing.T) {
	env := setup(t)
	prof, mk := testutil.CreateProf(t, env.db.Gorm, "Karim Benali", "karim@test.io")
	_, otherMk := testutil.CreateProf(t, env.db.Gorm, "Other Prof", "other@test.io")
	token := getToken(t, env.conf, prof)
	awa := testutil.CreateEleve(t, env.db.Gorm, mk.ID, "Awa", "Diallo", 0)
	foreign := testutil.CreateEleve(t, env.db.Gorm, otherMk.ID, "Zoe", "Martin", 0)

	today := core.DateOf(time.Now().UTC())
	overdue := testutil.CreatePaiement(t, env.db.Gorm, awa, 2, 2026, "50", "0", today.AddDays(-5))
	foreignP := testutil.CreatePaiement(t, env.db.Gorm, foreign, 2, 2026, "80", "0", today.AddDays(5))
	echeance := today.AddDays(10).String()

	tests := []httpTest{
		{name: "auth required", path: "/api/paiements", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{
			name: "invalid", method: http.MethodPost, path: "/api/paiements", token: token,
			body:     []byte(`{"eleve_id": ` + itoa(awa.ID) + `, "mois": 13, "annee": 2026, "montant_du": "10"}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "zero montant", method: http.MethodPost, path: "/api/paiements", token: token,
			body:     []byte(`{"eleve_id": ` + itoa(awa.ID) + `, "mois": 3, "annee": 2026, "montant_du": "0", "date_echeance": "` + echeance + `"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"montant_du": "montant_du must be greater than 0"}`),
		},
		{
			name: "missing echeance", method: http.MethodPost, path: "/api/paiements", token: token,
			body:     []byte(`{"eleve_id": ` + itoa(awa.ID) + `, "mois": 3, "annee": 2026, "montant_du": "100"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"date_echeance": "this field is required"}`),
		},
		{
			name: "eleve of another merkez", method: http.MethodPost, path: "/api/paiements", token: token,
			body:     []byte(`{"eleve_id": ` + itoa(foreign.ID) + `, "mois": 3, "annee": 2026, "montant_du": "100", "date_echeance": "` + echeance + `"}`),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "eleve not found"}),
		},
		{
			name: "duplicate month", method: http.MethodPost, path: "/api/paiements", token: token,
			body:     []byte(`{"eleve_id": ` + itoa(awa.ID) + `, "mois": 2, "annee": 2026, "montant_du": "100", "date_echeance": "` + echeance + `"}`),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "a paiement already exists for this eleve and month"}),
		},
		{
			name: "paiement of another merkez", method: http.MethodPost, path: "/api/paiements/" + itoa(foreignP.ID) + "/mark-paid", token: token,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "paiement not found"}),
		},
	}
	for _, tt := range tests {
		tt.run(t, env)
	}

	var p paiement.Paiement
	t.Run("create", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/paiements", token,
			[]byte(`{"eleve_id": `+itoa(awa.ID)+`, "mois": 3, "annee": 2026, "montant_du": "100", "date_echeance": "`+echeance+`", "notes": "<b>mars</b>"}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decode(t, rec, &p)
		assert.Equal(t, mk.ID, p.MerkezID)
		assert.Equal(t, paiement.StatutImpaye, p.Statut)
		assert.Equal(t, "mars", p.Notes.String)
		decimalEqual(t, "0", p.MontantPaye)
	})
	id := itoa(p.ID)

	t.Run("add partial", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/paiements/"+id+"/add-partial", token, []byte(`{"montant": "40", "methode_paiement": "Virement"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &p)
		assert.Equal(t, paiement.StatutPartiel, p.Statut)
		assert.Equal(t, "virement", p.MethodePaiement.String)
		decimalEqual(t, "40", p.MontantPaye)

		rec = env.do(http.MethodPost, "/api/paiements/"+id+"/add-partial?montant=10.5&methode_paiement=especes&notes=2e%20versement", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &p)
		assert.Equal(t, paiement.StatutPartiel, p.Statut)
		assert.Equal(t, paiement.MethodeEspeces, p.MethodePaiement.String)
		assert.Equal(t, "2e versement", p.Notes.String)
		decimalEqual(t, "50.5", p.MontantPaye)

		httpTest{
			name: "bad montant param", method: http.MethodPost, path: "/api/paiements/" + id + "/add-partial?montant=abc", token: token,
			wantCode: http.StatusBadRequest, wantData: []byte(`{"montant": "must be a number"}`),
		}.run(t, env)
		httpTest{
			name: "too much", method: http.MethodPost, path: "/api/paiements/" + id + "/add-partial", token: token,
			body:     []byte(`{"montant": "49.6"}`),
			wantCode: http.StatusBadRequest,
			wantData: []byte(`{"montant": "montant must be greater than 0 and at most the remaining amount"}`),
		}.run(t, env)
	})

	t.Run("mark paid", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/paiements/"+id+"/mark-paid", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &p)
		assert.Equal(t, paiement.StatutPaye, p.Statut)
		assert.Equal(t, paiement.MethodeEspeces, p.MethodePaiement.String)
		assert.Equal(t, today, p.DatePaiement)
		decimalEqual(t, "100", p.MontantPaye)
	})

	t.Run("query", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/paiements", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var details []paiement.Detail
		decode(t, rec, &details)
		require.Len(t, details, 2)
		assert.Equal(t, p.ID, details[0].ID)
		assert.Equal(t, overdue.ID, details[1].ID)
		assert.Equal(t, "Awa", details[1].ElevePrenom)
		assert.Equal(t, paiement.StatutEnRetard, details[1].Statut)
		decimalEqual(t, "50", details[1].MontantRestant)

		rec = env.do(http.MethodGet, "/api/paiements?statut=en_retard", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &details)
		require.Len(t, details, 1)
		assert.Equal(t, overdue.ID, details[0].ID)

		rec = env.do(http.MethodGet, "/api/paiements/student/"+itoa(awa.ID), token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &details)
		assert.Len(t, details, 2)

		httpTest{
			name: "student of another merkez", path: "/api/paiements/student/" + itoa(foreign.ID), token: token,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "eleve not found"}),
		}.run(t, env)
	})

	t.Run("stats", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/paiements/stats/overview", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var stats paiement.Stats
		decode(t, rec, &stats)
		decimalEqual(t, "150", stats.TotalDu)
		decimalEqual(t, "100", stats.TotalPaye)
		decimalEqual(t, "50", stats.TotalRestant)
		assert.Equal(t, 1, stats.EnRetardCount)
		assert.Equal(t, 1, stats.ImpayeCount, "en_retard counts as unpaid")
	})

	t.Run("update", func(t *testing.T) {
		rec := env.do(http.MethodPut, "/api/paiements/"+itoa(overdue.ID), token, []byte(`{"montant_du": "30", "montant_paye": "30"}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got paiement.Paiement
		decode(t, rec, &got)
		assert.Equal(t, paiement.StatutPaye, got.Statut)
		assert.Equal(t, today, got.DatePaiement)

		httpTest{
			name: "invalid statut", method: http.MethodPut, path: "/api/paiements/" + itoa(overdue.ID), token: token,
			body: []byte(`{"statut": "rembourse"}`), wantCode: http.StatusBadRequest,
		}.run(t, env)
	})

	t.Run("delete", func(t *testing.T) {
		rec := env.do(http.MethodDelete, "/api/paiements/"+id, token)
		require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
		rec = env.do(http.MethodDelete, "/api/paiements/"+id, token)
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	})
}

func Test_paiementApi_archive(t *testing.T) {
	env := setup(t)
	prof, mk := testutil.CreateProf(t, env.db.Gorm, "Karim Benali", "karim@test.io")
	token := getToken(t, env.conf, prof)
	awa := testutil.CreateEleve(t, env.db.Gorm, mk.ID, "Awa", "Diallo", 0)
	bilal := testutil.CreateEleve(t, env.db.Gorm, mk.ID, "Bilal", "Amrani", 0)
	echeance := core.NewDate(2026, time.January, 5)
	testutil.CreatePaiement(t, env.db.Gorm, awa, 1, 2026, "100", "100", echeance)
	testutil.CreatePaiement(t, env.db.Gorm, bilal, 1, 2026, "80", "20", echeance)

	tests := []httpTest{
		{
			name: "invalid month", method: http.MethodPost, path: "/api/paiements/archive-month", token: token,
			body: []byte(`{"mois": 0, "annee": 2026}`), wantCode: http.StatusBadRequest,
			wantData: []byte(`{"mois": "this field is required"}`),
		},
		{
			name: "empty month query params", method: http.MethodPost, path: "/api/paiements/archive-month?mois=2&annee=2026", token: token,
			wantCode: http.StatusNotFound,
			wantData: marshallObj(t, httpErr{Error: "no paiement for this month"}),
		},
		{
			name: "archive", method: http.MethodPost, path: "/api/paiements/archive-month", token: token,
			body: []byte(`{"mois": 1, "annee": 2026}`), wantData: []byte(`{"archived": 2}`),
		},
		{name: "archived are hidden", path: "/api/paiements", token: token, wantData: []byte(`[]`)},
		{
			name: "archived stats", path: "/api/paiements/stats/overview", token: token,
			wantData: []byte(`{"total_du": 0, "total_paye": 0, "total_restant": 0, "en_retard_count": 0, "impaye_count": 0}`),
		},
	}
	for _, tt := range tests {
		tt.run(t, env)
	}

	t.Run("archived months", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/paiements/archived-months", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var months []paiement.ArchivedMonth
		decode(t, rec, &months)
		require.Len(t, months, 1)
		assert.Equal(t, 1, months[0].Mois)
		assert.Equal(t, 2026, months[0].Annee)
		assert.Equal(t, 2, months[0].Count)
		decimalEqual(t, "180", months[0].TotalDu)
		decimalEqual(t, "120", months[0].TotalPaye)
	})

	t.Run("include archived", func(t *testing.T) {
		rec := env.do(http.MethodGet, "/api/paiements?include_archived=true&mois=1&annee=2026", token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var details []paiement.Detail
		decode(t, rec, &details)
		assert.Len(t, details, 2)
	})

	httpTest{
		name: "unarchive with query params", method: http.MethodPost, path: "/api/paiements/unarchive-month?mois=1&annee=2026", token: token,
		wantData: []byte(`{"unarchived": 2}`),
	}.run(t, env)
	httpTest{name: "no archived months", path: "/api/paiements/archived-months", token: token, wantData: []byte(`[]`)}.run(t, env)
}

func Test_paiementApi_link(t *testing.T) {
	env := setup(t)
	prof, mk := testutil.CreateProf(t, env.db.Gorm, "Karim Benali", "karim@test.io")
	token := getToken(t, env.conf, prof)
	awa := testutil.CreateEleve(t, env.db.Gorm, mk.ID, "Awa", "Diallo", 0)
	today := core.DateOf(time.Now().UTC())
	p := testutil.CreatePaiement(t, env.db.Gorm, awa, 3, 2026, "100", "40", today.AddDays(10))
	paid := testutil.CreatePaiement(t, env.db.Gorm, awa, 2, 2026, "100", "100", today.AddDays(-20))
	sendPath := "/api/paiements/" + itoa(p.ID) + "/send-link"

	tests := []httpTest{
		{
			name: "no email", method: http.MethodPost, path: sendPath, token: token,
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "neither the eleve nor the parent has an email"}),
		},
		{
			name: "already paid", method: http.MethodPost, path: "/api/paiements/" + itoa(paid.ID) + "/send-link", token: token,
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "this paiement is already paid"}),
		},
		{
			name: "malformed token", path: "/api/paiements/pay/not-a-token",
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "payment link not found"}),
		},
		{
			name: "unknown token", path: "/api/paiements/pay/" + uuid.New().String(),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "payment link not found"}),
		},
	}
	for _, tt := range tests {
		tt.run(t, env)
	}

	setEleveEmail(t, env, awa, "email_parent", "parent@test.io")
	env.mailSvc.Reset()

	var res paiement.LinkResult
	t.Run("send link", func(t *testing.T) {
		rec := env.do(http.MethodPost, sendPath, token)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		decode(t, rec, &res)
		assert.True(t, res.Success)
		assert.True(t, strings.HasPrefix(res.LienPaiement, "http://front.test/paiement/"), res.LienPaiement)
		assert.WithinDuration(t, time.Now().Add(env.conf.Payments.LinkTTL), res.LienExpiration, time.Minute)

		sent := env.mailSvc.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, "parent@test.io", sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, res.LienPaiement)
		assert.Contains(t, sent[0].TextContent, "60.00")
	})
	payPath := "/api/paiements/pay/" + strings.TrimPrefix(res.LienPaiement, "http://front.test/paiement/")

	t.Run("public view", func(t *testing.T) {
		rec := env.do(http.MethodGet, payPath, "")
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var pub paiement.Public
		decode(t, rec, &pub)
		assert.Equal(t, p.ID, pub.ID)
		assert.Equal(t, "Karim Benali", pub.MerkezNom)
		assert.Equal(t, "Diallo", pub.EleveNom)
		decimalEqual(t, "60", pub.MontantRestant)
	})

	t.Run("confirm", func(t *testing.T) {
		env.mailSvc.Reset()
		rec := env.do(http.MethodPost, payPath+"/confirm", "", []byte(`{}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var pub paiement.Public
		decode(t, rec, &pub)
		assert.Equal(t, paiement.StatutPaye, pub.Statut)
		decimalEqual(t, "0", pub.MontantRestant)

		sent := env.mailSvc.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, mk.Email, sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, "Awa Diallo")
		assert.Contains(t, sent[0].TextContent, paiement.MethodeEnLigne)

		// the link is single use
		httpTest{
			name: "used link", path: payPath,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "payment link not found"}),
		}.run(t, env)
	})

	t.Run("expired link", func(t *testing.T) {
		expired := testutil.CreatePaiement(t, env.db.Gorm, awa, 4, 2026, "100", "0", today.AddDays(30))
		tok := uuid.New().String()
		require.NoError(t, env.db.Gorm.Model(&paiement.Paiement{}).Where("id = ?", expired.ID).Updates(map[string]interface{}{
			"lien_token":      tok,
			"lien_expiration": time.Now().UTC().Add(-time.Hour),
		}).Error)

		httpTest{
			name: "view", path: "/api/paiements/pay/" + tok,
			wantCode: http.StatusGone, wantData: marshallObj(t, httpErr{Error: "payment link expired"}),
		}.run(t, env)
		httpTest{
			name: "confirm", method: http.MethodPost, path: "/api/paiements/pay/" + tok + "/confirm", body: []byte(`{}`),
			wantCode: http.StatusGone, wantData: marshallObj(t, httpErr{Error: "payment link expired"}),
		}.run(t, env)
	})
}

func Test_paiementApi_reminders(t *testing.T) {
	env := setup(t)
	prof, mk := testutil.CreateProf(t, env.db.Gorm, "Karim Benali", "karim@test.io")
	token := getToken(t, env.conf, prof)
	awa := testutil.CreateEleve(t, env.db.Gorm, mk.ID, "Awa", "Diallo", 0)
	bilal := testutil.CreateEleve(t, env.db.Gorm, mk.ID, "Bilal", "Amrani", 0)
	setEleveEmail(t, env, awa, "email", "awa@test.io")
	today := core.DateOf(time.Now().UTC())

	testutil.CreatePaiement(t, env.db.Gorm, awa, 1, 2026, "100", "25", today.AddDays(-3))
	testutil.CreatePaiement(t, env.db.Gorm, awa, 2, 2026, "100", "0", today.AddDays(3))  // not due yet
	testutil.CreatePaiement(t, env.db.Gorm, bilal, 1, 2026, "100", "0", today.AddDays(-3)) // no email

	env.mailSvc.Reset()
	httpTest{name: "first run", method: http.MethodPost, path: "/api/paiements/reminders", token: token, wantData: []byte(`{"sent": 1}`)}.run(t, env)

	sent := env.mailSvc.SentMessages()
	require.Len(t, sent, 1)
	assert.Equal(t, "awa@test.io", sent[0].To[0].Address)
	assert.Contains(t, sent[0].TextContent, "75.00")

	httpTest{name: "reminded recently", method: http.MethodPost, path: "/api/paiements/reminders", token: token, wantData: []byte(`{"sent": 0}`)}.run(t, env)
}
