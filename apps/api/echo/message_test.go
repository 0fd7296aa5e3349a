package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maraakiz/maraakiz/core/message"
	"github.com/maraakiz/maraakiz/core/user"
	"github.com/maraakiz/maraakiz/tests"
)

func Test_messageApi(t *testing.T) {
	env := setup(t)
	prof, mk := testutil.CreateProf(t, env.db.Gorm, "Karim Benali", "karim@test.io")
	awaUsr := testutil.CreateUser(t, env.db.Gorm, "Awa Diallo", "awa@test.io", user.TypeEleve, 0)
	saraUsr := testutil.CreateUser(t, env.db.Gorm, "Sara Diallo", "sara@test.io", user.TypeEleve, 0)
	testutil.CreateEleve(t, env.db.Gorm, mk.ID, "Awa", "Diallo", awaUsr.ID)
	profToken := getToken(t, env.conf, prof)
	awaToken := getToken(t, env.conf, awaUsr)
	saraToken := getToken(t, env.conf, saraUsr)

	tests := []httpTest{
		{name: "auth required", path: "/api/messages/conversations", wantCode: http.StatusUnauthorized, wantData: marshallObj(t, errMissingToken)},
		{
			name: "no recipient", method: http.MethodPost, path: "/api/messages", token: profToken,
			body:     []byte(`{"contenu": "Bonjour"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"destinataire_id": "this field is required"}`),
		},
		{
			name: "empty content", method: http.MethodPost, path: "/api/messages", token: profToken,
			body:     []byte(`{"destinataire_id": ` + itoa(awaUsr.ID) + `, "contenu": " <br> "}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"contenu": "the message cannot be empty"}`),
		},
		{
			name: "to self", method: http.MethodPost, path: "/api/messages", token: profToken,
			body:     []byte(`{"destinataire_id": ` + itoa(prof.ID) + `, "contenu": "note to self"}`),
			wantCode: http.StatusBadRequest, wantData: []byte(`{"destinataire_id": "you cannot send a message to yourself"}`),
		},
		{
			name: "unknown recipient", method: http.MethodPost, path: "/api/messages", token: profToken,
			body:     []byte(`{"destinataire_id": 999, "contenu": "hello"}`),
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "user not found"}),
		},
		{name: "no conversation yet", path: "/api/messages/conversations", token: awaToken, wantData: []byte(`[]`)},
		{name: "unread none", path: "/api/messages/unread/count", token: awaToken, wantData: []byte(`{"count": 0}`)},
	}
	for _, tt := range tests {
		tt.run(t, env)
	}

	t.Run("contacts", func(t *testing.T) {
		var contacts []message.Contact
		decode(t, env.do(http.MethodGet, "/api/messages/contacts", profToken), &contacts)
		require.Len(t, contacts, 1)
		assert.Equal(t, awaUsr.ID, contacts[0].ID)

		decode(t, env.do(http.MethodGet, "/api/messages/contacts", awaToken), &contacts)
		require.Len(t, contacts, 1)
		assert.Equal(t, prof.ID, contacts[0].ID)
		assert.Equal(t, user.TypeProf, contacts[0].UserType)

		httpTest{name: "no merkez link", path: "/api/messages/contacts", token: saraToken, wantData: []byte(`[]`)}.run(t, env)
	})

	var first message.Message
	t.Run("send", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/messages", profToken, []byte(`{"destinataire_id": `+itoa(awaUsr.ID)+`, "sujet": "Cours", "contenu": "Bonjour <b>Awa</b>"}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		decode(t, rec, &first)
		assert.Equal(t, "Bonjour Awa", first.Contenu.String)
		assert.Equal(t, "Cours", first.Sujet.String)
		assert.Equal(t, user.TypeProf, first.ExpediteurType)
		assert.Equal(t, user.TypeEleve, first.DestinataireType)
		assert.Equal(t, message.ConversationID(prof.ID, awaUsr.ID), first.ConversationID)
		assert.False(t, first.Lu)

		httpTest{name: "unread", path: "/api/messages/unread/count", token: awaToken, wantData: []byte(`{"count": 1}`)}.run(t, env)

		var convs []message.Conversation
		decode(t, env.do(http.MethodGet, "/api/messages/conversations", awaToken), &convs)
		require.Len(t, convs, 1)
		assert.Equal(t, prof.ID, convs[0].AutreUserID)
		assert.Equal(t, "Karim Benali", convs[0].AutreUserNom)
		assert.Equal(t, "Bonjour Awa", convs[0].DernierMessage)
		assert.Equal(t, 1, convs[0].NonLus)
	})

	t.Run("mark read", func(t *testing.T) {
		path := "/api/messages/" + itoa(first.ID) + "/read"
		httpTest{
			name: "by sender", method: http.MethodPut, path: path, token: profToken,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "message not found"}),
		}.run(t, env)

		rec := env.do(http.MethodPut, path, awaToken)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var m message.Message
		decode(t, rec, &m)
		assert.True(t, m.Lu)

		httpTest{name: "unread", path: "/api/messages/unread/count", token: awaToken, wantData: []byte(`{"count": 0}`)}.run(t, env)
	})

	t.Run("thread", func(t *testing.T) {
		rec := env.do(http.MethodPost, "/api/messages", awaToken, []byte(`{"destinataire_id": `+itoa(prof.ID)+`, "contenu": "Merci"}`))
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		httpTest{name: "prof unread", path: "/api/messages/unread/count", token: profToken, wantData: []byte(`{"count": 1}`)}.run(t, env)

		var msgs []message.Message
		decode(t, env.do(http.MethodGet, "/api/messages/conversation/"+itoa(awaUsr.ID), profToken), &msgs)
		require.Len(t, msgs, 2)
		assert.Equal(t, "Bonjour Awa", msgs[0].Contenu.String)
		assert.Equal(t, "Merci", msgs[1].Contenu.String)
		assert.True(t, msgs[1].Lu, "opening the thread reads it")

		httpTest{name: "prof read all", path: "/api/messages/unread/count", token: profToken, wantData: []byte(`{"count": 0}`)}.run(t, env)
	})

	t.Run("file", func(t *testing.T) {
		fields := map[string]string{"destinataire_id": itoa(awaUsr.ID)}
		req, rec := newUploadRequest(t, "/api/messages/upload", profToken, fields, "cours.txt", []byte("just some notes"))
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"file": "file type not allowed: text/plain"}`, rec.Body.String())

		req, rec = newUploadRequest(t, "/api/messages/upload", profToken, fields, "", nil)
		env.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		assert.JSONEq(t, `{"file": "this field is required"}`, rec.Body.String())

		req, rec = newUploadRequest(t, "/api/messages/upload", profToken, fields, "cours.pdf", []byte("%PDF-1.4\n%\xe2\xe3\xcf\xd3\n1 0 obj\n"))
		env.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
		var m message.Message
		decode(t, rec, &m)
		assert.False(t, m.Contenu.Valid)
		assert.Equal(t, "cours.pdf", m.FichierNom.String)
		assert.Equal(t, "application/pdf", m.FichierType.String)
		assert.Regexp(t, `^/uploads/messages/[0-9a-f-]{36}\.pdf$`, m.FichierURL.String)

		var convs []message.Conversation
		decode(t, env.do(http.MethodGet, "/api/messages/conversations", awaToken), &convs)
		require.Len(t, convs, 1)
		assert.Equal(t, "cours.pdf", convs[0].DernierMessage)
	})

	t.Run("delete", func(t *testing.T) {
		path := "/api/messages/" + itoa(first.ID)
		httpTest{
			name: "stranger", method: http.MethodDelete, path: path, token: saraToken,
			wantCode: http.StatusNotFound, wantData: marshallObj(t, httpErr{Error: "message not found"}),
		}.run(t, env)
		httpTest{name: "by recipient", method: http.MethodDelete, path: path, token: awaToken, wantCode: http.StatusNoContent}.run(t, env)

		var msgs []message.Message
		decode(t, env.do(http.MethodGet, "/api/messages/conversation/"+itoa(prof.ID), awaToken), &msgs)
		for _, m := range msgs {
			assert.NotEqual(t, first.ID, m.ID, "archived messages are hidden")
		}
		assert.Len(t, msgs, 2)
	})
}
