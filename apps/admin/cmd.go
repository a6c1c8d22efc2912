package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"

	"github.com/psp-schools/psp/core"
	"github.com/psp-schools/psp/core/analytics"
	"github.com/psp-schools/psp/services/render"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	conf    *core.Config
	logger  core.Logger
	db      *sql.DB
	svc     *analytics.Service
	mailSvc core.EmailService
	out     io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS...]       - run a goose command (up, down, redo, status, up-to VERSION, ...)")
	fmt.Fprintln(cli.out, "  report -school ID [-width N]    - print a school's performance report")
	fmt.Fprintln(cli.out, "  digest [-now]                   - email every school's report on the configured schedule")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	reportCmd := flag.NewFlagSet("report", flag.ContinueOnError)
	reportCmd.SetOutput(cli.out)
	reportSchool := reportCmd.String("school", "", "The school's id.")
	reportWidth := reportCmd.Int("width", render.DefaultWidth, "Word wrap width.")
	reportStyle := reportCmd.String("style", render.DefaultStyle, "Glamour style: dracula, dark, light, notty, ...")

	digestCmd := flag.NewFlagSet("digest", flag.ContinueOnError)
	digestCmd.SetOutput(cli.out)
	digestNow := digestCmd.Bool("now", false, "Send the digest once and exit instead of scheduling it.")

	ctx := context.Background()

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])
	case "report":
		if err := reportCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *reportSchool == "" {
			reportCmd.Usage()
			return errHelp
		}
		schoolID, err := core.ParseID(*reportSchool)
		if err != nil {
			return err
		}
		return cli.report(ctx, schoolID, *reportWidth, *reportStyle)
	case "digest":
		if err := digestCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *digestNow {
			return cli.sendDigest(ctx)
		}
		return cli.scheduleDigest(ctx)
	default:
		cli.printUsage()
		return errHelp
	}
}
