package main

import (
	"fmt"
	"log"
	"os"

	"github.com/psp-schools/psp/core"
	"github.com/psp-schools/psp/core/analytics"
	emailsvc "github.com/psp-schools/psp/services/email"
	logsvc "github.com/psp-schools/psp/services/logger"
	"github.com/psp-schools/psp/storage/database"
	sqlxrepos "github.com/psp-schools/psp/storage/database/sqlx"
)

func main() {
	std := log.New(os.Stdout, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile)

	conf, err := core.NewConfig()
	if err != nil {
		std.Fatalf("loading config: %v", err)
	}
	logger := logsvc.NewRollbarLogger(std, conf)

	// set up DB
	db, err := database.Open(conf)
	if err != nil {
		logger.Fatal(fmt.Sprintf("opening database: %v", err), err)
	}
	defer db.Close()

	// set up services
	var mailSvc core.EmailService
	if conf.Debug {
		mailSvc = emailsvc.NewConsoleService(std, conf)
	} else {
		mailSvc = emailsvc.NewSendgridService(conf, logger)
	}

	// start CLI
	cli := commandLine{
		conf:    conf,
		logger:  logger,
		db:      db.DB,
		svc:     analytics.NewService(sqlxrepos.NewAnalyticsRepository(db), logger),
		mailSvc: mailSvc,
		out:     os.Stdout,
	}
	if err := cli.run(os.Args); err != nil {
		if err != errHelp {
			std.Printf("\nerror: %s\n", err)
		}
		_ = db.Close()
		os.Exit(1)
	}
}
