package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io/ioutil"
	"log"
	"strconv"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/abonnement"
	"github.com/maraakiz/maraakiz/core/eleve"
	"github.com/maraakiz/maraakiz/core/merkez"
	"github.com/maraakiz/maraakiz/core/paiement"
	"github.com/maraakiz/maraakiz/core/user"
	"github.com/maraakiz/maraakiz/services/email"
	"github.com/maraakiz/maraakiz/services/files"
	"github.com/maraakiz/maraakiz/services/logger"
	"github.com/maraakiz/maraakiz/storage/database/gorm"
	"github.com/maraakiz/maraakiz/storage/database/sqlx"
	"github.com/maraakiz/maraakiz/tests"
)

type testEnv struct {
	cli     *commandLine
	mailSvc *emailsvc.ConsoleServiceMock
}

func setup(t *testing.T) testEnv {
	conf := &core.Config{
		Env:             "TEST",
		TestMode:        true,
		AppName:         "Maraakiz API",
		SecretKey:       "s3cr3t-test-key",
		WorkDir:         core.Getwd(),
		FrontendBaseURL: "http://front.test",
	}
	testLogger := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)
	testLogger.Enable(false)
	logger = testLogger

	// set up DB & services
	db := testutil.OpenDB(t)
	core.ParseEmailTemplates(conf, logger)
	mailSvc := emailsvc.NewConsoleServiceMock(conf, logger)
	fileStorage := filesvc.NewStorage(afero.NewMemMapFs(), "/uploads", 0)

	usrSvc := user.NewServiceMock(gormrepos.NewUserRepository(db.Gorm), mailSvc, fileStorage, conf)
	merkezSvc := merkez.NewService(gormrepos.NewMerkezRepository(db.Gorm))
	eleveSvc := eleve.NewService(gormrepos.NewEleveRepository(db.Gorm), usrSvc, mailSvc, conf)

	// start CLI
	return testEnv{
		cli: &commandLine{
			db:     db,
			usrSvc: usrSvc,
			paiementSvc: paiement.NewService(
				gormrepos.NewPaiementRepository(db.Gorm),
				sqlxrepos.NewPaiementReports(db.Sqlx),
				eleveSvc,
				mailSvc,
				conf,
			),
			abonnementSvc: abonnement.NewService(gormrepos.NewAbonnementRepository(db.Gorm), merkezSvc),
		},
		mailSvc: mailSvc,
	}
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case tt.wantErr != nil:
		if err != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err == nil || err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error = %v, wantErrStr %s", err, tt.wantErrStr)
		}
	case err != nil:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func Test_commandLine_usage(t *testing.T) {
	env := setup(t)

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, env.cli.run(args))
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	env := setup(t)

	origRun := gooseRunFunc
	t.Cleanup(func() { gooseRunFunc = origRun })
	gooseRunFunc = func(db *sql.DB, command string, args ...string) error {
		switch command {
		case "up", "up-by-one", "down", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, env.cli.run(args))
		})
	}
}

func Test_commandLine_migrateStatus(t *testing.T) {
	env := setup(t)
	// the real goose run on the already migrated database
	require.NoError(t, env.cli.run([]string{"admin", "migrate", "version"}))
}

func mockPassword(t *testing.T, pwd string) {
	origRead := readPasswordFunc
	t.Cleanup(func() { readPasswordFunc = origRead })
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func Test_commandLine_addUser(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	prof, _ := testutil.CreateProf(t, env.cli.db.Gorm, "Karim Benali", "karim@test.io")

	t.Run("errors", func(t *testing.T) {
		mockPassword(t, "")
		tests := []cliTest{
			{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
			{name: "email but no password", args: []string{"adduser", "-email", "admin@test.io"}, wantErr: errHelp},
		}
		for _, tt := range tests {
			tt.check(t, env.cli.run(append([]string{"admin"}, tt.args...)))
		}
	})

	t.Run("create", func(t *testing.T) {
		mockPassword(t, "Adm1n-Secret!")
		require.NoError(t, env.cli.run([]string{"admin", "adduser", "-email", "Admin@Test.io", "-nom", "Root"}))

		usr, err := env.cli.usrSvc.GetByEmail(ctx, "admin@test.io")
		require.NoError(t, err)
		assert.Equal(t, "Root", usr.Nom)
		assert.Equal(t, user.TypeAdmin, usr.UserType)
		assert.True(t, usr.IsAdmin)
		assert.True(t, usr.IsActive)
	})

	t.Run("promote existing", func(t *testing.T) {
		require.NoError(t, env.cli.db.Gorm.Model(&user.User{}).Where("id = ?", prof.ID).Update("is_active", false).Error)
		mockPassword(t, "Adm1n-Secret!")
		require.NoError(t, env.cli.run([]string{"admin", "adduser", "-email", prof.Email}))

		usr, err := env.cli.usrSvc.GetByID(ctx, prof.ID)
		require.NoError(t, err)
		assert.Equal(t, user.TypeProf, usr.UserType)
		assert.True(t, usr.IsAdmin)
		assert.True(t, usr.IsActive)
		assert.False(t, bytes.Equal(prof.PasswordHash, usr.PasswordHash), "failed to update the password")
	})
}

func Test_commandLine_resetPassword(t *testing.T) {
	env := setup(t)
	usr := testutil.CreateUser(t, env.cli.db.Gorm, "Awa Diallo", "awa@test.io", user.TypeEleve, 0)

	tests := []cliTest{
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "email but no password", args: []string{"resetpassword", "-email", "lol@test.io"}, wantErr: errHelp},
	}
	mockPassword(t, "")
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, env.cli.run(args))
		})
	}

	t.Run("user not found", func(t *testing.T) {
		mockPassword(t, "N3w-Secret!")
		err := env.cli.run([]string{"admin", "resetpassword", "-email", "lol@test.io"})
		assert.True(t, core.IsNotFound(err), "got %v", err)
	})

	t.Run("reset", func(t *testing.T) {
		mockPassword(t, "N3w-Secret!")
		require.NoError(t, env.cli.run([]string{"admin", "resetpassword", "-email", " AWA@test.io "}))

		refreshed, err := env.cli.usrSvc.GetByID(context.Background(), usr.ID)
		require.NoError(t, err)
		assert.False(t, bytes.Equal(refreshed.PasswordHash, usr.PasswordHash), "failed to update new password")
	})
}

func Test_commandLine_sendReminders(t *testing.T) {
	env := setup(t)
	db := env.cli.db.Gorm
	_, mk := testutil.CreateProf(t, db, "Karim Benali", "karim@test.io")
	_, otherMk := testutil.CreateProf(t, db, "Other Prof", "other@test.io")
	awa := testutil.CreateEleve(t, db, mk.ID, "Awa", "Diallo", 0)
	zoe := testutil.CreateEleve(t, db, otherMk.ID, "Zoe", "Martin", 0)
	require.NoError(t, db.Model(&eleve.Eleve{}).Where("id IN ?", []int{awa.ID, zoe.ID}).Update("email_parent", "parent@test.io").Error)

	today := core.DateOf(time.Now().UTC())
	p := testutil.CreatePaiement(t, db, awa, 1, 2026, "100", "0", today.AddDays(-10))
	testutil.CreatePaiement(t, db, zoe, 1, 2026, "60", "0", today.AddDays(-1))
	testutil.CreatePaiement(t, db, zoe, 2, 2026, "60", "60", today.AddDays(-1)) // paid

	require.NoError(t, env.cli.run([]string{"admin", "sendreminders"}))
	assert.Len(t, env.mailSvc.SentMessages(), 2)

	var got paiement.Paiement
	require.NoError(t, db.First(&got, p.ID).Error)
	assert.True(t, got.RappelEnvoye)
	assert.True(t, got.DateRappel.Valid)
	assert.Equal(t, paiement.StatutEnRetard, got.Statut)

	// nothing new to remind
	env.mailSvc.Reset()
	require.NoError(t, env.cli.run([]string{"admin", "sendreminders"}))
	assert.Empty(t, env.mailSvc.SentMessages())
}

func Test_commandLine_expireSubscriptions(t *testing.T) {
	env := setup(t)
	db := env.cli.db.Gorm
	now := time.Now().UTC()
	today := core.DateOf(now)

	ended := testutil.CreateMerkez(t, db, "Ended")
	running := testutil.CreateMerkez(t, db, "Running")
	abos := []abonnement.Abonnement{
		{MerkezID: ended.ID, PlanName: abonnement.PlanMensuel, StartDate: today.AddDays(-40), EndDate: today.AddDays(-9), IsActive: true, CreatedAt: now, UpdatedAt: now},
		{MerkezID: running.ID, PlanName: abonnement.PlanAnnuel, StartDate: today.AddDays(-40), EndDate: today.AddDays(325), IsActive: true, CreatedAt: now, UpdatedAt: now},
	}
	require.NoError(t, db.Create(&abos).Error)
	require.NoError(t, db.Model(&merkez.Merkez{}).Where("id IN ?", []int{ended.ID, running.ID}).Update("abonnement_actif", true).Error)

	require.NoError(t, env.cli.run([]string{"admin", "expiresubscriptions"}))

	var got []abonnement.Abonnement
	require.NoError(t, db.Order("id").Find(&got).Error)
	require.Len(t, got, 2)
	assert.False(t, got[0].IsActive)
	assert.True(t, got[1].IsActive)

	var mks []merkez.Merkez
	require.NoError(t, db.Where("id IN ?", []int{ended.ID, running.ID}).Order("id").Find(&mks).Error)
	require.Len(t, mks, 2)
	assert.False(t, mks[0].AbonnementActif)
	assert.True(t, mks[1].AbonnementActif)
}
