package echoapi_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maraakiz/maraakiz/core/note"
	"github.com/maraakiz/maraakiz/core/user"
	"github.com/maraakiz/maraakiz/tests"
)

func Test_noteApi(t *testing.T) {
	env := setup(t)
	prof, mk := testutil.CreateProf(t, env.db.Gorm, "Karim Benali", "karim@test.io")
	other, otherMk := testutil.CreateProf(t, env.db.Gorm, "Other Prof", "other@test.io")
	awaUsr := testutil.CreateUser(t, env.db.Gorm, "Awa Diallo", "awa@test.io", user.TypeEleve, 0)
	saraUsr := testutil.CreateUser(t, env.db.Gorm, "Sara Diallo", "sara@test.io", user.TypeEleve, 0)
	awa := testutil.CreateEleve(t, env.db.Gorm, mk.ID, "Awa", "Diallo", awaUsr.ID)
	bilal := testutil.CreateEleve(t, env.db.Gorm, mk.ID, "Bilal", "Amrani", 0)

	debut := time.Now().Add(24 * time.Hour).Truncate(time.Hour)
	withAwa := testutil.CreateCours(t, env.db.Gorm, mk.ID, "Arabe", debut, awa.ID)
	empty := testutil.CreateCours(t, env.db.Gorm, mk.ID, "Tajwid", debut.Add(2*time.Hour))
	foreign := testutil.CreateCours(t, env.db.Gorm, otherMk.ID, "Fiqh", debut)

	token := getToken(t, env.conf, prof)
	otherToken := getToken(t, env.conf, other)
	awaToken := getToken(t, env.conf, awaUsr)
	saraToken := getToken(t, env.conf, saraUsr)

	tests := []httpTest{
		{
			name: "merkez required", method: http.MethodPost, path: "/api/notes-cours", token: awaToken,
			body:     []byte(`{"cours_id": ` + itoa(withAwa.ID) + `}`),
			wantCode: http.StatusForbidden, wantData: marshallObj(t, errNoMerkez),
		},
		{
			name: "no cours", method: http.MethodPost, path: "/api/notes-cours", token: token,
			body:     []byte(`{"resume": "x"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"cours_id": "this field is required"}`),
		},
		{
			name: "bad progression", method: http.MethodPost, path: "/api/notes-cours", token: token,
			body:     []byte(`{"cours_id": ` + itoa(withAwa.ID) + `, "progression_pourcentage": 150}`),
			wantCode: http.StatusBadRequest,
		},
		{
			name: "foreign cours", method: http.MethodPost, path: "/api/notes-cours", token: token,
			body:     []byte(`{"cours_id": ` + itoa(foreign.ID) + `}`),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "cours not found"}),
		},
		{
			name: "cours without eleve", method: http.MethodPost, path: "/api/notes-cours", token: token,
			body:     []byte(`{"cours_id": ` + itoa(empty.ID) + `}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"eleve_id": "the cours has no enrolled eleve"}`),
		},
		{
			name: "eleve not enrolled", method: http.MethodPost, path: "/api/notes-cours", token: token,
			body:     []byte(`{"cours_id": ` + itoa(withAwa.ID) + `, "eleve_id": ` + itoa(bilal.ID) + `}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"eleve_id": "this eleve is not enrolled in the cours"}`),
		},
		{
			name: "no note yet", path: "/api/notes-cours/cours/" + itoa(withAwa.ID), token: token,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "note not found"}),
		},
	}
	for _, tt := range tests {
		tt.run(t, env)
	}

	var n note.Note
	t.Run("create", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/notes-cours", token, []byte(`{
			"cours_id": `+itoa(withAwa.ID)+`,
			"resume": "<i>Fractions</i>",
			"devoirs": "Exercices 1 à 4",
			"progression_pourcentage": 40
		}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decode(t, rec, &n)
		assert.Equal(t, awa.ID, n.EleveID, "defaults to the first enrolled eleve")
		assert.Equal(t, mk.ID, n.MerkezID)
		assert.Equal(t, "Fractions", n.Resume.String)
		assert.Equal(t, "Exercices 1 à 4", n.Devoirs.String)
		assert.Equal(t, 40, n.ProgressionPourcentage.Int)
		assert.Empty(t, n.Fichiers)

		httpTest{
			name: "one note per cours", method: http.MethodPost, path: "/api/notes-cours", token: token,
			body:     []byte(`{"cours_id": ` + itoa(withAwa.ID) + `}`),
			wantCode: http.StatusBadRequest, wantData: marshallObj(t, httpErr{Error: "notes already exist for this cours"}),
		}.run(t, env)
	})

	t.Run("access", func(t *testing.T) {
		path := "/api/notes-cours/cours/" + itoa(withAwa.ID)
		for _, tok := range []string{token, awaToken} {
			var got note.Note
			rec := env.do(http.MethodGet, path, tok)
			require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
			decode(t, rec, &got)
			assert.Equal(t, n.ID, got.ID)
		}

		tests := []httpTest{
			{name: "other merkez", path: path, token: otherToken, wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "note not found"})},
			{name: "other eleve", path: path, token: saraToken, wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "no access to these notes"})},
			{
				name: "eleve notes of other merkez", path: "/api/notes-cours/eleve/" + itoa(awa.ID), token: otherToken,
				wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "eleve not found"}),
			},
			{name: "eleve without notes", path: "/api/notes-cours/eleve/" + itoa(bilal.ID), token: token, wantData: []byte(`[]`)},
		}
		for _, tt := range tests {
			tt.run(t, env)
		}

		var notes []note.Note
		decode(t, env.do(http.MethodGet, "/api/notes-cours/eleve/"+itoa(awa.ID), awaToken), &notes)
		require.Len(t, notes, 1)
		assert.Equal(t, n.ID, notes[0].ID)
	})

	t.Run("update", func(t *testing.T) {
		path := "/api/notes-cours/" + itoa(n.ID)
		httpTest{
			name: "other merkez", method: http.MethodPut, path: path, token: otherToken, body: []byte(`{"note": "A"}`),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "note not found"}),
		}.run(t, env)

		rec := env.do(http.MethodPut, path, token, []byte(`{"note": "A", "devoirs": "", "progression_pourcentage": 60}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got note.Note
		decode(t, rec, &got)
		assert.Equal(t, "A", got.Note.String)
		assert.False(t, got.Devoirs.Valid, "an empty string clears the field")
		assert.Equal(t, "Fractions", got.Resume.String, "omitted fields are kept")
		assert.Equal(t, 60, got.ProgressionPourcentage.Int)
	})

	t.Run("upload", func(t *testing.T) {
		path := "/api/notes-cours/" + itoa(n.ID) + "/upload"
		req, rec := newUploadRequest(t, path, token, nil, "exercices.pdf", []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n"))
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var got note.Note
		decode(t, rec, &got)
		require.Len(t, got.Fichiers, 1)
		assert.Equal(t, "exercices.pdf", got.Fichiers[0].Nom)
		assert.Equal(t, "application/pdf", got.Fichiers[0].Type)
		assert.Regexp(t, `^/uploads/notes/[0-9a-f-]{36}\.pdf$`, got.Fichiers[0].URL)

		req, rec = newUploadRequest(t, path, otherToken, nil, "exercices.pdf", []byte("%PDF-1.4\n"))
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNotFound, rec.Code, rec.Body.String())
	})

	t.Run("delete", func(t *testing.T) {
		path := "/api/notes-cours/" + itoa(n.ID)
		httpTest{name: "other merkez", method: http.MethodDelete, path: path, token: otherToken, wantCode: http.StatusNotFound}.run(t, env)
		httpTest{name: "owner", method: http.MethodDelete, path: path, token: token, wantCode: http.StatusNoContent}.run(t, env)
		httpTest{
			name: "gone", path: "/api/notes-cours/cours/" + itoa(withAwa.ID), token: token,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "note not found"}),
		}.run(t, env)
	})
}
