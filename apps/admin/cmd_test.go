package main

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"io/ioutil"
	"log"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/psp-schools/psp/core"
	"github.com/psp-schools/psp/core/analytics"
	emailsvc "github.com/psp-schools/psp/services/email"
	logsvc "github.com/psp-schools/psp/services/logger"
	inmemdb "github.com/psp-schools/psp/storage/database/inmem"
	testutil "github.com/psp-schools/psp/tests"
)

var errBroken = errors.New("broken")

// brokenRepo fails to fetch the resources of one school.
type brokenRepo struct {
	*inmemdb.AnalyticsRepository
	brokenID int64
}

func (repo brokenRepo) FetchResources(ctx context.Context, schoolID int64) ([]analytics.ResourceRecord, error) {
	if schoolID == repo.brokenID {
		return nil, errBroken
	}
	return repo.AnalyticsRepository.FetchResources(ctx, schoolID)
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
}

type fixture struct {
	cli     *commandLine
	mailSvc *emailsvc.ConsoleService
	repo    *brokenRepo
	seeded  []testutil.Seeded
}

func setup(t *testing.T, recipients ...string) fixture {
	conf := &core.Config{
		AppName:          "PSP",
		TestMode:         true,
		DefaultFromEmail: "noreply@psp.test",
		Analytics: core.AnalyticsConfig{
			DigestSchedule:   "0 7 * * MON",
			DigestRecipients: recipients,
		},
	}
	logger := logsvc.NewRollbarLogger(log.New(ioutil.Discard, "", 0), conf)

	db, err := inmemdb.Open()
	require.NoError(t, err)
	repo := &brokenRepo{AnalyticsRepository: inmemdb.NewAnalyticsRepository(db)}
	seeded := testutil.Seed(t, repo, testutil.KiberaPrimary(), testutil.School{Name: "Mathare North"})

	mailSvc := emailsvc.NewConsoleServiceMock(conf)
	now := time.Date(2026, 2, 20, 12, 0, 0, 0, time.UTC)

	cli := &commandLine{
		conf:    conf,
		logger:  logger,
		svc:     analytics.NewServiceMock(repo, logger, now),
		mailSvc: mailSvc,
		out:     new(bytes.Buffer),
	}
	return fixture{cli: cli, mailSvc: mailSvc, repo: repo, seeded: seeded}
}

func checkErr(t *testing.T, tt cliTest, err error) {
	t.Helper()
	if err != nil {
		if tt.wantErr != nil {
			if err != tt.wantErr {
				t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
			}
		} else if tt.wantErrStr != "" {
			if err.Error() != tt.wantErrStr {
				t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
			}
		} else {
			t.Errorf("cli.run() unexpected error = %v", err)
		}
	} else if tt.wantErr != nil || tt.wantErrStr != "" {
		t.Errorf("cli.run() error = nil, wantErr %v%s", tt.wantErr, tt.wantErrStr)
	}
}

func Test_commandLine_run(t *testing.T) {
	cli := setup(t).cli

	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "migrate: no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "report: no school", args: []string{"report"}, wantErr: errHelp},
		{name: "report: bad flag", args: []string{"report", "-lol"}, wantErr: errHelp},
		{name: "report: non-int school", args: []string{"report", "-school", "lol"}, wantErrStr: `parsing id "lol": strconv.ParseInt: parsing "lol": invalid syntax`},
		{name: "digest: bad flag", args: []string{"digest", "-lol"}, wantErr: errHelp},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}
}

func Test_commandLine_migrate(t *testing.T) {
	cli := setup(t).cli

	defer func(f func(string, *sql.DB, fs.FS, string, ...string) error) { gooseRunFunc = f }(gooseRunFunc)
	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		if _, err := fs.Stat(fsys, "00001_schools.sql"); err != nil {
			return err
		}
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to", "down-to":
			if len(args) == 0 {
				return fmt.Errorf("%s must be of form: goose [OPTIONS] DRIVER DBSTRING %s VERSION", command, command)
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "create", args: []string{"migrate", "create", "grades", "sql"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)
		t.Run(tt.name, func(t *testing.T) {
			checkErr(t, tt, cli.run(args))
		})
	}
}

func Test_commandLine_report(t *testing.T) {
	fx := setup(t)
	cli := fx.cli
	id := strconv.FormatInt(fx.seeded[0].ID, 10)

	err := cli.run([]string{"admin", "report", "-school", id, "-width", "100", "-style", "notty"})
	require.NoError(t, err)
	out := cli.out.(*bytes.Buffer).String()
	assert.Contains(t, out, "School Performance Report")
	assert.Contains(t, out, "Kibera Primary")

	err = cli.run([]string{"admin", "report", "-school", "999"})
	assert.Equal(t, analytics.ErrSchoolNotFound, errors.Unwrap(err))
}

func Test_commandLine_digest(t *testing.T) {
	t.Run("no recipients", func(t *testing.T) {
		fx := setup(t)
		err := fx.cli.run([]string{"admin", "digest", "-now"})
		assert.Equal(t, errNoRecipients, err)
		assert.Empty(t, fx.mailSvc.SentMessages())
	})

	t.Run("all schools", func(t *testing.T) {
		fx := setup(t, "Head <head@psp.test>")
		require.NoError(t, fx.cli.run([]string{"admin", "digest", "-now"}))

		sent := fx.mailSvc.SentMessages()
		require.Len(t, sent, 1)
		assert.Equal(t, digestSubject, sent[0].Subject)
		assert.Equal(t, "head@psp.test", sent[0].To[0].Address)
		assert.Equal(t, "2 school reports attached.", sent[0].TextContent)
		require.Len(t, sent[0].Attachments, 2)
		assert.Equal(t, "school-report-"+strconv.FormatInt(fx.seeded[0].ID, 10)+".md", sent[0].Attachments[0].Filename)
		assert.Equal(t, "school-report-"+strconv.FormatInt(fx.seeded[1].ID, 10)+".md", sent[0].Attachments[1].Filename)
	})

	t.Run("failing school is skipped", func(t *testing.T) {
		fx := setup(t, "head@psp.test")
		fx.repo.brokenID = fx.seeded[0].ID
		require.NoError(t, fx.cli.run([]string{"admin", "digest", "-now"}))

		sent := fx.mailSvc.SentMessages()
		require.Len(t, sent, 1)
		require.Len(t, sent[0].Attachments, 1)
		assert.Equal(t, "1 school reports attached.\nReports could not be generated for: Kibera Primary.", sent[0].TextContent)
	})

	t.Run("invalid recipient", func(t *testing.T) {
		fx := setup(t, "not an address")
		assert.Error(t, fx.cli.run([]string{"admin", "digest", "-now"}))
		assert.Empty(t, fx.mailSvc.SentMessages())
	})

	t.Run("scheduled", func(t *testing.T) {
		cli := setup(t, "head@psp.test").cli
		defer func(f func() <-chan os.Signal) { stopSignal = f }(stopSignal)
		stopSignal = func() <-chan os.Signal {
			ch := make(chan os.Signal, 1)
			ch <- os.Interrupt
			return ch
		}
		assert.NoError(t, cli.run([]string{"admin", "digest"}))

		cli.conf.Analytics.DigestSchedule = "every lol"
		assert.Error(t, cli.run([]string{"admin", "digest"}))
	})
}
