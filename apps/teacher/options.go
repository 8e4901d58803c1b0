package main

import (
	"errors"
	"io"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

var errHelp = errors.New("help provided")

// options are the global flags. Each one can also be set in the environment:
// --db is TEACHER_DB, --server is TEACHER_SERVER, and so on.
type options struct {
	dbPath    string
	server    string
	token     string
	schoolID  string
	teacherID string
	lang      string
}

func printUsage(out io.Writer) {
	_, _ = io.WriteString(out, `Usage: teacher [GLOBAL FLAGS] COMMAND [ARGS]

Commands:
  note new --class ID --subject ID --term ID --title T [--type quiz] [--weight 1] [--grade STUDENT=VALUE ...]
  note show NOTE_ID
  note delete NOTE_ID
  grade NOTE_ID STUDENT_ID VALUE        - set a student's grade in a note
  publish [NOTE_ID ...] [--keep-local]  - send the unpublished notes to the server
  sync                                  - replay the pending sync queue
  status                                - count unpublished notes and pending sync items
  list [--class ID] [--published]       - list the teacher's notes
  cleanup                               - drop the completed sync items
  login --username U                    - print an API token for --token

Global flags:
`)
}

// parse maps pflag's help request to errHelp.
func parse(fs *pflag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return errHelp
		}
		return err
	}
	return nil
}

// parseOptions reads the global flags up to the command name and returns the
// remaining arguments.
func parseOptions(args []string, out io.Writer) (options, []string, error) {
	fs := pflag.NewFlagSet("teacher", pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.SetInterspersed(false)
	fs.String("db", "ecolehub-notes.db", "The local notes database file.")
	fs.String("server", "http://localhost:8000", "The EcoleHub API base URL.")
	fs.String("token", "", "The API access token.")
	fs.String("school", "", "The ID of the teacher's school.")
	fs.String("teacher", "", "The teacher's user ID.")
	fs.String("lang", "", "The language of the messages (en, fr).")
	fs.Usage = func() {
		printUsage(out)
		fs.PrintDefaults()
	}
	if err := parse(fs, args); err != nil {
		return options{}, nil, err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return options{}, nil, errHelp
	}

	v := viper.New()
	v.SetEnvPrefix("TEACHER")
	v.AutomaticEnv()
	if err := v.BindPFlags(fs); err != nil {
		return options{}, nil, err
	}
	return options{
		dbPath:    v.GetString("db"),
		server:    v.GetString("server"),
		token:     v.GetString("token"),
		schoolID:  v.GetString("school"),
		teacherID: v.GetString("teacher"),
		lang:      v.GetString("lang"),
	}, fs.Args(), nil
}
