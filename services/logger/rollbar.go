package logsvc

import (
	"io"
	"os"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"github.com/sirupsen/logrus"

	"github.com/trezcool/ratiba/core"
	"github.com/trezcool/ratiba/core/faculty"
)

// RollbarLogger reports to rollbar and writes locally through logrus.
type RollbarLogger struct {
	std    *logrus.Logger
	fields logrus.Fields
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewRollbarLogger returns a logger writing to out (stdout when nil).
// Rollbar stays disabled in debug and test mode.
func NewRollbarLogger(out io.Writer, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	rollbar.SetEnabled(!conf.Debug && !conf.TestMode && conf.RollbarToken != "")

	if out == nil {
		out = os.Stdout
	}
	std := logrus.New()
	std.SetOutput(out)
	switch conf.Env {
	case "QA", "PROD":
		std.SetFormatter(&logrus.JSONFormatter{})
	default:
		std.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	std.SetLevel(logrus.InfoLevel)
	if conf.Debug {
		std.SetLevel(logrus.DebugLevel)
	}
	return &RollbarLogger{std: std}
}

func (l RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

// With returns a logger adding fields to every local entry.
func (l RollbarLogger) With(fields map[string]interface{}) *RollbarLogger {
	merged := make(logrus.Fields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &RollbarLogger{std: l.std, fields: merged}
}

// expected fmt: msg | error, map[string]interface{}, faculty.Faculty
func (l RollbarLogger) prepare(msg string, args []interface{}) ([]interface{}, *logrus.Entry) {
	var facSet bool
	entry := logrus.NewEntry(l.std).WithFields(l.fields)
	newArgs := make([]interface{}, 0, len(args)+1)
	newArgs = append(newArgs, msg)
	for _, arg := range args {
		switch a := arg.(type) {
		case faculty.Faculty:
			if !facSet { // only set one person
				rollbar.SetPerson(a.ID, a.Name, a.Email)
				entry = entry.WithField("faculty_id", a.ID)
				facSet = true
			}
			continue
		case error:
			entry = entry.WithError(a)
		case map[string]interface{}:
			entry = entry.WithFields(a)
		default:
			entry = entry.WithField("extra", a)
		}
		newArgs = append(newArgs, arg)
	}
	if !facSet {
		rollbar.ClearPerson()
	}
	return newArgs, entry
}

func (l RollbarLogger) Debug(msg string, args ...interface{}) {
	rArgs, entry := l.prepare(msg, args)
	rollbar.Debug(rArgs...)
	entry.Debug(msg)
}

func (l RollbarLogger) Info(msg string, args ...interface{}) {
	rArgs, entry := l.prepare(msg, args)
	rollbar.Info(rArgs...)
	entry.Info(msg)
}

func (l RollbarLogger) Warn(msg string, args ...interface{}) {
	rArgs, entry := l.prepare(msg, args)
	rollbar.Warning(rArgs...)
	entry.Warn(msg)
}

func (l RollbarLogger) Error(msg string, args ...interface{}) {
	rArgs, entry := l.prepare(msg, args)
	rollbar.Error(rArgs...)
	entry.Error(msg)
}

func (l RollbarLogger) Fatal(msg string, args ...interface{}) {
	rArgs, entry := l.prepare(msg, args)
	rollbar.Critical(rArgs...)
	rollbar.Wait()
	entry.Fatal(msg)
}
