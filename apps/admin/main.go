package main

import (
	"log"
	"os"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/abonnement"
	"github.com/maraakiz/maraakiz/core/eleve"
	"github.com/maraakiz/maraakiz/core/merkez"
	"github.com/maraakiz/maraakiz/core/paiement"
	"github.com/maraakiz/maraakiz/core/user"
	"github.com/maraakiz/maraakiz/services/email"
	"github.com/maraakiz/maraakiz/services/files"
	"github.com/maraakiz/maraakiz/services/logger"
	"github.com/maraakiz/maraakiz/storage/database"
	"github.com/maraakiz/maraakiz/storage/database/gorm"
	"github.com/maraakiz/maraakiz/storage/database/sqlx"
)

var logger core.Logger

func main() {
	conf, err := core.NewConfig()
	if err != nil {
		log.Fatal(err)
	}

	adminLogger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)
	adminLogger.Enable(!conf.Debug)
	logger = adminLogger

	// set up DB
	db, err := database.Open(conf)
	errAndDie(err)
	errAndDie(db.SQL().Ping())

	// set up services
	core.ParseEmailTemplates(conf, logger)
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(conf, logger)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}
	fileStorage, err := filesvc.NewLocalStorage(conf)
	errAndDie(err)

	usrSvc := user.NewService(gormrepos.NewUserRepository(db.Gorm), mailSvc, fileStorage, conf)
	merkezSvc := merkez.NewService(gormrepos.NewMerkezRepository(db.Gorm))
	eleveSvc := eleve.NewService(gormrepos.NewEleveRepository(db.Gorm), usrSvc, mailSvc, conf)

	// start CLI
	cli := commandLine{
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
	}
	err = cli.run(os.Args)

	// let the emails go out before exiting
	if w, ok := mailSvc.(interface{ Wait() }); ok {
		w.Wait()
	}
	_ = db.Close()

	if err != nil {
		if err != errHelp {
			logger.Error("admin command failed: "+err.Error(), err)
		}
		os.Exit(1)
	}
}

func errAndDie(err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
