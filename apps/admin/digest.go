package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/psp-schools/psp/core"
	"github.com/psp-schools/psp/services/render"
)

const (
	digestSubject = "School performance reports"
	digestTimeout = 10 * time.Minute
)

var errNoRecipients = errors.New("no digest recipients configured")

// stopSignal returns the channel the digest scheduler waits on before stopping. mockable
var stopSignal = func() <-chan os.Signal {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	return ch
}

// scheduleDigest sends the digest on the configured cron schedule until interrupted.
func (cli *commandLine) scheduleDigest(ctx context.Context) error {
	schedule := cli.conf.Analytics.DigestSchedule
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))

	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(ctx, digestTimeout)
		defer cancel()
		if err := cli.sendDigest(ctx); err != nil {
			cli.logger.Error(fmt.Sprintf("sending digest: %v", err), err)
		}
	})
	if err != nil {
		return errors.Wrapf(err, "scheduling digest %q", schedule)
	}

	cli.logger.Info("digest scheduled", map[string]interface{}{"schedule": schedule})
	c.Start()
	sig := <-stopSignal()
	cli.logger.Info(fmt.Sprintf("%v: stopping digest scheduler...", sig))
	<-c.Stop().Done()
	return nil
}

// sendDigest emails every school's Markdown report to the digest recipients, in a single message.
// A school whose report fails is logged and left out.
func (cli *commandLine) sendDigest(ctx context.Context) error {
	to, err := core.ParseAddresses(cli.conf.Analytics.DigestRecipients)
	if err != nil {
		return errors.Wrap(err, "parsing digest recipients")
	}
	if len(to) == 0 {
		return errNoRecipients
	}

	schools, err := cli.svc.ListSchools(ctx)
	if err != nil {
		return err
	}

	msg := &core.EmailMessage{To: to, Subject: digestSubject}
	var failed []string
	for _, school := range schools {
		rep, err := cli.svc.GenerateReport(ctx, school.ID)
		if err != nil {
			cli.logger.Error(fmt.Sprintf("generating report: %v", err), err, map[string]interface{}{"school_id": school.ID})
			failed = append(failed, school.Name())
			continue
		}
		md, err := render.Markdown(rep.Document)
		if err == nil {
			err = msg.Attach(md, render.MarkdownFilename(rep.Document), render.MarkdownContentType)
		}
		if err != nil {
			cli.logger.Error(fmt.Sprintf("rendering report: %v", err), err, map[string]interface{}{"school_id": school.ID})
			failed = append(failed, school.Name())
		}
	}

	if len(schools) > 0 && !msg.HasAttachments() {
		return errors.Errorf("no report could be generated for %d schools", len(schools))
	}
	msg.TextContent = digestText(len(msg.Attachments), failed)

	if err = cli.mailSvc.SendMessages(ctx, msg); err != nil {
		return errors.Wrap(err, "sending digest")
	}
	cli.logger.Info("digest sent", map[string]interface{}{
		"reports": len(msg.Attachments),
		"failed":  len(failed),
	})
	return nil
}

func digestText(reports int, failed []string) string {
	var b strings.Builder
	_, _ = fmt.Fprintf(&b, "%d school reports attached.", reports)
	if len(failed) > 0 {
		_, _ = fmt.Fprintf(&b, "\nReports could not be generated for: %s.", strings.Join(failed, ", "))
	}
	return b.String()
}
