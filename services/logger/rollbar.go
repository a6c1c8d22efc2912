package logsvc

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/psp-schools/psp/core"
)

type RollbarLogger struct {
	std *log.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(!conf.Debug && conf.RollbarToken != "")
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// prepare builds rollbar's args: msg, then the first error, then all extras merged into one map.
// expected args: error, map[string]interface{}
func (l RollbarLogger) prepare(msg string, args []interface{}) []interface{} {
	var (
		err    error
		extras map[string]interface{}
	)
	for _, arg := range args {
		switch a := arg.(type) {
		case error:
			if err == nil {
				err = a
			}
		case map[string]interface{}:
			if extras == nil {
				extras = make(map[string]interface{}, len(a))
			}
			for k, v := range a {
				extras[k] = v
			}
		}
	}

	newArgs := make([]interface{}, 0, 3)
	if err != nil {
		newArgs = append(newArgs, err)
		extras = withMessage(extras, msg)
	} else {
		newArgs = append(newArgs, msg)
	}
	if extras != nil {
		newArgs = append(newArgs, extras)
	}
	return newArgs
}

func withMessage(extras map[string]interface{}, msg string) map[string]interface{} {
	if extras == nil {
		extras = make(map[string]interface{}, 1)
	}
	extras["message"] = msg
	return extras
}

// format renders msg and its args on one line, extras sorted by key.
func (l RollbarLogger) format(level, msg string, args []interface{}) string {
	var b strings.Builder
	b.WriteString(level)
	b.WriteString(" ")
	b.WriteString(msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case map[string]interface{}:
			keys := make([]string, 0, len(a))
			for k := range a {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				_, _ = fmt.Fprintf(&b, " %s=%v", k, a[k])
			}
		case error:
			_, _ = fmt.Fprintf(&b, " error=%q", a.Error())
		default:
			_, _ = fmt.Fprintf(&b, " %+v", a)
		}
	}
	return b.String()
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rollbar.Debug(l.prepare(msg, args)...)
	l.std.Println(l.format("DEBUG", msg, args))
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rollbar.Info(l.prepare(msg, args)...)
	l.std.Println(l.format("INFO", msg, args))
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rollbar.Warning(l.prepare(msg, args)...)
	l.std.Println(l.format("WARN", msg, args))
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rollbar.Error(l.prepare(msg, args)...)
	l.std.Println(l.format("ERROR", msg, args))
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rollbar.Critical(l.prepare(msg, args)...)
	rollbar.Wait()
	l.std.Fatal(l.format("FATAL", msg, args))
}
