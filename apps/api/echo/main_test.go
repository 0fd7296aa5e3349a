package echoapi_test

import (
	"bytes"
	"encoding/json"
	"io/ioutil"
	"log"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/maraakiz/maraakiz/apps/api/echo"
	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/abonnement"
	"github.com/maraakiz/maraakiz/core/cours"
	"github.com/maraakiz/maraakiz/core/eleve"
	"github.com/maraakiz/maraakiz/core/merkez"
	"github.com/maraakiz/maraakiz/core/message"
	"github.com/maraakiz/maraakiz/core/note"
	"github.com/maraakiz/maraakiz/core/paiement"
	"github.com/maraakiz/maraakiz/core/professeur"
	"github.com/maraakiz/maraakiz/core/ressource"
	"github.com/maraakiz/maraakiz/core/user"
	"github.com/maraakiz/maraakiz/services/email"
	"github.com/maraakiz/maraakiz/services/files"
	"github.com/maraakiz/maraakiz/services/logger"
	"github.com/maraakiz/maraakiz/storage/database"
	"github.com/maraakiz/maraakiz/storage/database/gorm"
	"github.com/maraakiz/maraakiz/storage/database/sqlx"
	"github.com/maraakiz/maraakiz/tests"
)

var (
	errMissingToken = httpErr{Error: "missing or malformed jwt"}
	errNoMerkez     = httpErr{Error: "no merkez is associated with this account"}
	errForbidden    = httpErr{Error: "permission denied"}
)

type testEnv struct {
	db      *database.DB
	conf    *core.Config
	app     *echoapi.Server
	mailSvc *emailsvc.ConsoleServiceMock
}

func newTestConfig() *core.Config {
	return &core.Config{
		Env:             "TEST",
		TestMode:        true,
		AppName:         "Maraakiz API",
		SecretKey:       "s3cr3t-test-key",
		WorkDir:         core.Getwd(),
		FrontendBaseURL: "http://front.test",
		Server: core.ServerConfig{
			JWTExpirationDelta:        time.Hour,
			JWTRefreshExpirationDelta: 24 * time.Hour,
			PasswordResetTimeoutDelta: time.Hour,
			CORSAllowOrigins:          []string{"*"},
		},
		Uploads: core.UploadConfig{
			BaseURL: "/uploads",
			MaxSize: 1 << 20,
		},
		Payments: core.PaymentConfig{
			LinkTTL: 24 * time.Hour,
		},
	}
}

func setup(t *testing.T) testEnv {
	return setupCalendar(t, nil)
}

// setupCalendar wires cal as the external calendar of the cours service.
func setupCalendar(t *testing.T, cal cours.CalendarProvider) testEnv {
	conf := newTestConfig()
	logger := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)
	logger.Enable(false)

	// set up DB & repos
	db := testutil.OpenDB(t)
	usrRepo := gormrepos.NewUserRepository(db.Gorm)
	merkezRepo := gormrepos.NewMerkezRepository(db.Gorm)
	profRepo := gormrepos.NewProfesseurRepository(db.Gorm)
	eleveRepo := gormrepos.NewEleveRepository(db.Gorm)
	coursRepo := gormrepos.NewCoursRepository(db.Gorm)
	paiementRepo := gormrepos.NewPaiementRepository(db.Gorm)
	messageRepo := gormrepos.NewMessageRepository(db.Gorm)
	noteRepo := gormrepos.NewNoteRepository(db.Gorm)
	ressourceRepo := gormrepos.NewRessourceRepository(db.Gorm)
	abonnementRepo := gormrepos.NewAbonnementRepository(db.Gorm)

	// set up validation
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)

	// set up services
	core.ParseEmailTemplates(conf, logger)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	fileStorage := filesvc.NewStorage(afero.NewMemMapFs(), conf.Uploads.BaseURL, conf.Uploads.MaxSize)

	usrSvc := user.NewServiceMock(usrRepo, mailSvc, fileStorage, conf)
	merkezSvc := merkez.NewService(merkezRepo)
	eleveSvc := eleve.NewService(eleveRepo, usrSvc, mailSvc, conf)
	coursSvc := cours.NewService(coursRepo, eleveSvc, usrSvc, cal, logger)

	// set up server
	app := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		DisableReqLogs: true,
		Validate:       validate,
		Translator:     translator,
		UserSvc:        usrSvc,
		MerkezSvc:      merkezSvc,
		ProfesseurSvc:  professeur.NewService(profRepo, usrSvc, merkezSvc, mailSvc, conf),
		EleveSvc:       eleveSvc,
		CoursSvc:       coursSvc,
		PaiementSvc:    paiement.NewService(paiementRepo, sqlxrepos.NewPaiementReports(db.Sqlx), eleveSvc, mailSvc, conf),
		MessageSvc:     message.NewService(messageRepo, sqlxrepos.NewMessageReports(db.Sqlx), usrSvc, fileStorage),
		NoteSvc:        note.NewService(noteRepo, coursSvc, eleveSvc, fileStorage),
		RessourceSvc:   ressource.NewService(ressourceRepo, sqlxrepos.NewRessourceReports(db.Sqlx), eleveSvc, fileStorage),
		AbonnementSvc:  abonnement.NewService(abonnementRepo, merkezSvc),
	})

	return testEnv{
		db:      db,
		conf:    conf,
		app:     app,
		mailSvc: mailSvc,
	}
}

// do runs a JSON request against the server.
func (env testEnv) do(method, path, token string, body ...[]byte) *httptest.ResponseRecorder {
	req, rec := newAuthRequest(method, path, token, body...)
	env.app.ServeHTTP(rec, req)
	return rec
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
}

func (tt httpTest) run(t *testing.T, env testEnv) {
	t.Run(tt.name, func(t *testing.T) {
		method := tt.method
		if method == "" {
			method = http.MethodGet
		}
		rec := env.do(method, tt.path, tt.token, tt.body)
		checkCodeAndData(t, tt, rec)
	})
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

// newUploadRequest builds a multipart request holding fields and a "file" part.
func newUploadRequest(t *testing.T, path, token string, fields map[string]string, filename string, content []byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		part, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, path, &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, httptest.NewRecorder()
}

func getToken(t *testing.T, conf *core.Config, usr user.User) string {
	token, err := echoapi.GenerateToken(echoapi.GetUserClaims(usr, conf), conf.SecretKey)
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func itoa(i int) string { return strconv.Itoa(i) }

func marshallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marshallObj() failed: %v", err)
	}
	return data
}

// decode unmarshalls the response body into v.
func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	assert.Equal(t, wantCode, rec.Code, rec.Body.String())
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}
