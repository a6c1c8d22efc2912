package main

import (
	"context"
	"fmt"

	"github.com/psp-schools/psp/services/render"
)

// report prints a school's report, rendered for the terminal.
func (cli *commandLine) report(ctx context.Context, schoolID int64, width int, style string) error {
	rep, err := cli.svc.GenerateReport(ctx, schoolID)
	if err != nil {
		return err
	}
	out, err := render.Terminal(rep.Document, width, style)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cli.out, out)
	return err
}
