package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maraakiz/maraakiz/core/ressource"
	"github.com/maraakiz/maraakiz/core/user"
	"github.com/maraakiz/maraakiz/tests"
)

var (
	pdfContent = []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n")
	pngContent = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01")
)

func uploadRessource(t *testing.T, env testEnv, token string, fields map[string]string, filename string, content []byte) ressource.Ressource {
	t.Helper()
	req, rec := newUploadRequest(t, "/api/bibliotheque/upload", token, fields, filename, content)
	env.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var r ressource.Ressource
	decode(t, rec, &r)
	return r
}

func ressourceIDs(t *testing.T, env testEnv, path, token string) []int {
	t.Helper()
	rec := env.do(http.MethodGet, path, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var res []ressource.Ressource
	decode(t, rec, &res)
	ids := make([]int, len(res))
	for i, r := range res {
		ids[i] = r.ID
	}
	return ids
}

func Test_ressourceApi(t *testing.T) {
	env := setup(t)
	prof, mk := testutil.CreateProf(t, env.db.Gorm, "Karim Benali", "karim@test.io")
	other, otherMk := testutil.CreateProf(t, env.db.Gorm, "Other Prof", "other@test.io")
	awaUsr := testutil.CreateUser(t, env.db.Gorm, "Awa Diallo", "awa@test.io", user.TypeEleve, 0)
	saraUsr := testutil.CreateUser(t, env.db.Gorm, "Sara Diallo", "sara@test.io", user.TypeEleve, 0)
	awa := testutil.CreateEleve(t, env.db.Gorm, mk.ID, "Awa", "Diallo", awaUsr.ID)
	bilal := testutil.CreateEleve(t, env.db.Gorm, mk.ID, "Bilal", "Amrani", 0)
	zoe := testutil.CreateEleve(t, env.db.Gorm, otherMk.ID, "Zoe", "Martin", 0)

	token := getToken(t, env.conf, prof)
	otherToken := getToken(t, env.conf, other)
	awaToken := getToken(t, env.conf, awaUsr)
	saraToken := getToken(t, env.conf, saraUsr)

	t.Run("upload errors", func(t *testing.T) {
		tests := []struct {
			name     string
			token    string
			fields   map[string]string
			filename string
			content  []byte
			wantCode int
			wantBody string
		}{
			{
				name: "merkez required", token: awaToken, fields: map[string]string{"titre": "Cours"}, filename: "c.pdf", content: pdfContent,
				wantCode: http.StatusForbidden, wantBody: `{"error": "no merkez is associated with this account"}`,
			},
			{
				name: "no titre", token: token, fields: map[string]string{"titre": " <p></p> "}, filename: "c.pdf", content: pdfContent,
				wantCode: http.StatusBadRequest, wantBody: `{"titre": "this field is required"}`,
			},
			{
				name: "bad acces", token: token, fields: map[string]string{"titre": "Cours", "acces_type": "secret"}, filename: "c.pdf", content: pdfContent,
				wantCode: http.StatusBadRequest,
			},
			{
				name: "bad eleve ids", token: token, fields: map[string]string{"titre": "Cours", "eleves_autorises": "1,x"}, filename: "c.pdf", content: pdfContent,
				wantCode: http.StatusBadRequest, wantBody: `{"eleves_autorises": "must be a comma separated list of eleve ids"}`,
			},
			{
				name: "foreign eleve", token: token, fields: map[string]string{"titre": "Cours", "acces_type": "specifique", "eleves_autorises": itoa(zoe.ID)}, filename: "c.pdf", content: pdfContent,
				wantCode: http.StatusNotFound, wantBody: `{"error": "eleve not found"}`,
			},
			{
				name: "no file", token: token, fields: map[string]string{"titre": "Cours"},
				wantCode: http.StatusBadRequest, wantBody: `{"file": "this field is required"}`,
			},
			{
				name: "file type", token: token, fields: map[string]string{"titre": "Cours"}, filename: "c.txt", content: []byte("plain text"),
				wantCode: http.StatusBadRequest, wantBody: `{"file": "file type not allowed: text/plain"}`,
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req, rec := newUploadRequest(t, "/api/bibliotheque/upload", tt.token, tt.fields, tt.filename, tt.content)
				env.app.ServeHTTP(rec, req)
				assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())
				if tt.wantBody != "" {
					assert.JSONEq(t, tt.wantBody, rec.Body.String())
				}
			})
		}
	})

	public := uploadRessource(t, env, token, map[string]string{
		"titre": "Alphabet", "acces_type": "public", "dossier": "Tajwid", "tags": "arabe, debutant,",
	}, "alphabet.pdf", pdfContent)
	specific := uploadRessource(t, env, token, map[string]string{
		"titre": "Carte", "acces_type": "specifique", "eleves_autorises": itoa(bilal.ID),
	}, "carte.png", pngContent)
	private := uploadRessource(t, env, token, map[string]string{"titre": "Fiqh 1", "dossier": "Fiqh"}, "fiqh.pdf", pdfContent)

	t.Run("upload", func(t *testing.T) {
		assert.Equal(t, mk.ID, public.MerkezID)
		assert.Equal(t, ressource.CategorieDocument, public.Categorie)
		assert.Equal(t, "application/pdf", public.FichierType)
		assert.Equal(t, "alphabet.pdf", public.FichierNom)
		assert.Equal(t, int64(len(pdfContent)), public.FichierTaille)
		assert.Regexp(t, `^/uploads/bibliotheque/alphabet_\d{8}_\d{6}\.pdf$`, public.FichierURL)
		assert.Equal(t, []string{"arabe", "debutant"}, []string(public.Tags))
		assert.Equal(t, "Tajwid", public.Dossier.String)

		assert.Equal(t, ressource.CategorieImage, specific.Categorie)
		assert.Equal(t, []int{bilal.ID}, []int(specific.ElevesAutorises))
		assert.Equal(t, ressource.AccesPrive, private.AccesType, "prive by default")
	})

	t.Run("query", func(t *testing.T) {
		assert.Equal(t, []int{private.ID, specific.ID, public.ID}, ressourceIDs(t, env, "/api/bibliotheque", token))
		assert.Equal(t, []int{specific.ID}, ressourceIDs(t, env, "/api/bibliotheque?categorie=IMAGE", token))
		assert.Equal(t, []int{public.ID}, ressourceIDs(t, env, "/api/bibliotheque?dossier=Tajwid", token))
		assert.Empty(t, ressourceIDs(t, env, "/api/bibliotheque", otherToken))

		httpTest{name: "folders", path: "/api/bibliotheque/folders", token: token, wantData: []byte(`[{"nom": "Fiqh"}, {"nom": "Tajwid"}]`)}.run(t, env)
		httpTest{name: "no folders", path: "/api/bibliotheque/folders", token: otherToken, wantData: []byte(`[]`)}.run(t, env)
	})

	t.Run("retrieve and download", func(t *testing.T) {
		path := "/api/bibliotheque/" + itoa(public.ID)
		httpTest{
			name: "other merkez", path: path, token: otherToken,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "ressource not found"}),
		}.run(t, env)

		var r ressource.Ressource
		decode(t, env.do(http.MethodGet, path, token), &r)
		assert.Equal(t, 1, r.Vues)

		httpTest{
			name: "download", method: http.MethodPost, path: path + "/download", token: token,
			wantData: marshallObj(t, map[string]string{"fichier_url": public.FichierURL}),
		}.run(t, env)

		decode(t, env.do(http.MethodGet, path, token), &r)
		assert.Equal(t, 2, r.Vues)
		assert.Equal(t, 1, r.Telecharges)
	})

	t.Run("update", func(t *testing.T) {
		path := "/api/bibliotheque/" + itoa(private.ID)
		tests := []httpTest{
			{
				name: "blank titre", method: http.MethodPut, path: path, token: token, body: []byte(`{"titre": " <p></p> "}`),
				wantCode: http.StatusBadRequest, wantData: []byte(`{"titre": "this field cannot be blank"}`),
			},
			{name: "bad acces", method: http.MethodPut, path: path, token: token, body: []byte(`{"acces_type": "secret"}`), wantCode: http.StatusBadRequest},
			{
				name: "foreign eleve", method: http.MethodPut, path: path, token: token, body: []byte(`{"eleves_autorises": [` + itoa(zoe.ID) + `]}`),
				wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "eleve not found"}),
			},
			{
				name: "other merkez", method: http.MethodPut, path: path, token: otherToken, body: []byte(`{"titre": "Mine"}`),
				wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "ressource not found"}),
			},
		}
		for _, tt := range tests {
			tt.run(t, env)
		}

		rec := env.do(http.MethodPut, path, token, []byte(`{"acces_type": "eleves", "description": "<b>Purification</b>", "tags": ["fiqh"]}`))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var r ressource.Ressource
		decode(t, rec, &r)
		assert.Equal(t, ressource.AccesEleves, r.AccesType)
		assert.Equal(t, "Purification", r.Description.String)
		assert.Equal(t, []string{"fiqh"}, []string(r.Tags))
		assert.Equal(t, "Fiqh 1", r.Titre)
		private = r
	})

	t.Run("shared views", func(t *testing.T) {
		tests := []httpTest{
			{
				name: "student of other merkez", path: "/api/bibliotheque/student/" + itoa(awa.ID), token: otherToken,
				wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "eleve not found"}),
			},
			{
				name: "other eleve account", path: "/api/bibliotheque/student/" + itoa(awa.ID), token: saraToken,
				wantCode: http.StatusForbidden, wantData: marshallObj(t, httpErr{Error: "no access to this library"}),
			},
		}
		for _, tt := range tests {
			tt.run(t, env)
		}

		assert.Equal(t, []int{public.ID}, ressourceIDs(t, env, "/api/bibliotheque/public/merkez/"+itoa(mk.ID), ""))
		assert.Equal(t, []int{private.ID, public.ID}, ressourceIDs(t, env, "/api/bibliotheque/student/"+itoa(awa.ID), awaToken))
		assert.Equal(t, []int{private.ID, specific.ID, public.ID}, ressourceIDs(t, env, "/api/bibliotheque/student/"+itoa(bilal.ID), token))
	})

	t.Run("delete", func(t *testing.T) {
		path := "/api/bibliotheque/" + itoa(specific.ID)
		httpTest{name: "other merkez", method: http.MethodDelete, path: path, token: otherToken, wantCode: http.StatusNotFound}.run(t, env)
		httpTest{name: "owner", method: http.MethodDelete, path: path, token: token, wantCode: http.StatusNoContent}.run(t, env)
		httpTest{
			name: "gone", path: path, token: token,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "ressource not found"}),
		}.run(t, env)
		assert.Equal(t, []int{private.ID, public.ID}, ressourceIDs(t, env, "/api/bibliotheque", token))
	})
}
