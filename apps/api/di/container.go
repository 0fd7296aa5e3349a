// Package di wires the API dependencies with a dig.Container.
package di

import (
	"fmt"
	"log"
	"os"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/dig"
	"gorm.io/gorm"

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
	"github.com/maraakiz/maraakiz/services/gcal"
	"github.com/maraakiz/maraakiz/services/logger"
	"github.com/maraakiz/maraakiz/storage/database"
	"github.com/maraakiz/maraakiz/storage/database/gorm"
	"github.com/maraakiz/maraakiz/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "API : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	stdLogger := log.New(os.Stdout, "DB : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)
	logger := logsvc.NewRollbarLogger(stdLogger, conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *database.DB {
	setUp := func() (*database.DB, error) {
		db, err := database.Open(conf)
		if err != nil {
			return nil, err
		}
		if err = database.Migrate(db.SQL()); err != nil {
			_ = db.Close()
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func gormDB(db *database.DB) *gorm.DB { return db.Gorm }

func sqlxDB(db *database.DB) *sqlx.DB { return db.Sqlx }

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

// newCalendar is nil when the Google credentials are not configured.
func newCalendar(conf *core.Config) cours.CalendarProvider {
	if !conf.GoogleEnabled() {
		return nil
	}
	return gcal.NewProvider(conf)
}

func newValidator() *validator.Validate {
	return validator.New()
}

// New returns a new dependency injection dig.Container
func New() *dig.Container {
	c := dig.New()

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))

	// storage
	must(c.Provide(newDB))
	must(c.Provide(gormDB))
	must(c.Provide(sqlxDB))
	must(c.Provide(gormrepos.NewUserRepository, dig.As(new(user.Repository))))
	must(c.Provide(gormrepos.NewMerkezRepository, dig.As(new(merkez.Repository))))
	must(c.Provide(gormrepos.NewProfesseurRepository, dig.As(new(professeur.Repository))))
	must(c.Provide(gormrepos.NewEleveRepository, dig.As(new(eleve.Repository))))
	must(c.Provide(gormrepos.NewCoursRepository, dig.As(new(cours.Repository))))
	must(c.Provide(gormrepos.NewPaiementRepository, dig.As(new(paiement.Repository))))
	must(c.Provide(gormrepos.NewMessageRepository, dig.As(new(message.Repository))))
	must(c.Provide(gormrepos.NewNoteRepository, dig.As(new(note.Repository))))
	must(c.Provide(gormrepos.NewRessourceRepository, dig.As(new(ressource.Repository))))
	must(c.Provide(gormrepos.NewAbonnementRepository, dig.As(new(abonnement.Repository))))
	must(c.Provide(sqlxrepos.NewPaiementReports, dig.As(new(paiement.ReportRepository))))
	must(c.Provide(sqlxrepos.NewMessageReports, dig.As(new(message.ReportRepository))))
	must(c.Provide(sqlxrepos.NewRessourceReports, dig.As(new(ressource.ReportRepository))))

	// services
	must(c.Provide(newEmailService))
	must(c.Provide(filesvc.NewLocalStorage))
	must(c.Provide(newCalendar))
	must(c.Provide(user.NewService))
	must(c.Provide(merkez.NewService))
	must(c.Provide(professeur.NewService))
	must(c.Provide(eleve.NewService))
	must(c.Provide(cours.NewService))
	must(c.Provide(paiement.NewService))
	must(c.Provide(message.NewService))
	must(c.Provide(note.NewService))
	must(c.Provide(ressource.NewService))
	must(c.Provide(abonnement.NewService))

	// API
	must(c.Provide(newValidator))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(prometheus.NewRegistry, dig.As(new(prometheus.Registerer), new(prometheus.Gatherer))))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
