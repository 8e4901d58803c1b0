// Package logsvc reports log entries to Rollbar and mirrors them on a std logger.
package logsvc

import (
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/user"
)

// RollbarLogger accepts, after the message, any mix of: an error, a user.User
// (the first one is reported as the person) and map[string]interface{} extras.
type RollbarLogger struct {
	std      *log.Logger
	client   *rollbar.Client
	hasToken bool

	// person is client-wide; mu keeps it paired with its entry.
	mu sync.Mutex
}

var _ core.Logger = (*RollbarLogger)(nil)

func NewRollbarLogger(std *log.Logger, conf *core.Config) *RollbarLogger {
	client := rollbar.New(conf.RollbarToken, conf.Env, conf.Build, conf.Server.Host, "")
	client.SetStackTracer(errors.StackTracer)
	client.SetEnabled(conf.RollbarToken != "" && !conf.TestMode)
	return &RollbarLogger{std: std, client: client, hasToken: conf.RollbarToken != ""}
}

// Enable turns Rollbar reporting on or off. The std mirror always writes.
func (l *RollbarLogger) Enable(enabled bool) {
	l.client.SetEnabled(enabled && l.hasToken)
}

type entry struct {
	person *user.User
	extras map[string]interface{}
	args   []interface{}
}

func parseArgs(args []interface{}) entry {
	var e entry
	for _, arg := range args {
		switch a := arg.(type) {
		case user.User:
			if e.person == nil {
				e.person = &a
			}
		case map[string]interface{}:
			if e.extras == nil {
				e.extras = make(map[string]interface{}, len(a)+1)
			}
			for k, v := range a {
				e.extras[k] = v
			}
		default:
			e.args = append(e.args, arg)
		}
	}
	if e.person != nil && e.person.SchoolID != "" {
		if e.extras == nil {
			e.extras = make(map[string]interface{}, 1)
		}
		e.extras["school_id"] = e.person.SchoolID
	}
	return e
}

// line renders e for the std mirror: "[LEVEL] msg | args | k=v ...", extras sorted by key.
func (e entry) line(level, msg string) string {
	var b strings.Builder
	b.WriteString("[" + level + "] " + msg)
	for _, arg := range e.args {
		_, _ = fmt.Fprintf(&b, " | %+v", arg)
	}
	keys := make([]string, 0, len(e.extras))
	for k := range e.extras {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for i, k := range keys {
		sep := " "
		if i == 0 {
			sep = " | "
		}
		_, _ = fmt.Fprintf(&b, "%s%s=%v", sep, k, e.extras[k])
	}
	return b.String()
}

func (l *RollbarLogger) log(rbLevel, level, msg string, args []interface{}) {
	e := parseArgs(args)
	l.std.Println(e.line(level, msg))

	extras, err := e.report()

	l.mu.Lock()
	defer l.mu.Unlock()
	if e.person != nil {
		l.client.SetPerson(e.person.ID, e.person.Username, e.person.Email)
	} else {
		l.client.ClearPerson()
	}
	if err != nil {
		extras["message"] = msg
		l.client.ErrorWithExtras(rbLevel, err, extras)
		return
	}
	l.client.MessageWithExtras(rbLevel, msg, extras)
}

// report splits e into the extras sent along and the first error, reported
// with its stack. Other args are listed under "args".
func (e entry) report() (map[string]interface{}, error) {
	extras := make(map[string]interface{}, len(e.extras)+2)
	for k, v := range e.extras {
		extras[k] = v
	}
	var (
		err  error
		rest []interface{}
	)
	for _, arg := range e.args {
		if er, ok := arg.(error); ok && err == nil {
			err = er
			continue
		}
		rest = append(rest, arg)
	}
	if len(rest) > 0 {
		extras["args"] = rest
	}
	return extras, err
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	l.log(rollbar.DEBUG, "DEBUG", msg, args)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	l.log(rollbar.INFO, "INFO", msg, args)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	l.log(rollbar.WARN, "WARN", msg, args)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	l.log(rollbar.ERR, "ERROR", msg, args)
}

// Fatal flushes pending Rollbar items before exiting.
func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	l.log(rollbar.CRIT, "FATAL", msg, args)
	l.client.Wait()
	l.std.Fatal(msg)
}
