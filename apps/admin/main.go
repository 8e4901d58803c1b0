package main

import (
	"log"
	"os"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/school"
	"github.com/ecolehub/backend/core/student"
	"github.com/ecolehub/backend/core/user"
	appfs "github.com/ecolehub/backend/fs"
	logsvc "github.com/ecolehub/backend/services/logger"
	"github.com/ecolehub/backend/storage/database"
	gormrepos "github.com/ecolehub/backend/storage/database/gormdb"
)

func main() {
	conf := core.NewConfig()
	logger := logsvc.NewRollbarLogger(log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile), conf)

	// set up DB
	db, err := database.Open(conf)
	errAndDie(logger, err)
	defer func() { _ = db.Close() }()
	errAndDie(logger, db.Ping())

	gdb, err := database.NewGorm(db, conf)
	errAndDie(logger, err)
	tx := gormrepos.NewTransactor(gdb)

	uni := core.NewUniversalTranslator()
	validate := core.NewValidate(uni)
	user.InitValidators(validate, uni)
	cat, err := core.LoadCatalog(appfs.FS, "i18n", conf.DefaultLocale)
	errAndDie(logger, err)

	schoolSvc := school.NewService(tx, gormrepos.NewSchoolRepository(gdb), validate)

	// start CLI
	cli := commandLine{
		db:         db,
		out:        os.Stdout,
		usrRepo:    gormrepos.NewUserRepository(gdb),
		schoolSvc:  schoolSvc,
		studentSvc: student.NewService(tx, gormrepos.NewStudentRepository(gdb), schoolSvc, validate),
		cat:        cat,
		uni:        uni,
		locale:     conf.DefaultLocale,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			logger.Error("admin command failed", err)
		}
		_ = db.Close()
		os.Exit(1)
	}
}

func errAndDie(logger core.Logger, err error) {
	if err != nil {
		logger.Fatal(err.Error(), err)
	}
}
