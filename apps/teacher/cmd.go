package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/note"
	"github.com/ecolehub/backend/services/apiclient"
)

var readPasswordFunc = term.ReadPassword // mockable

type commandLine struct {
	out      io.Writer
	opts     options
	store    note.Store
	syncer   *note.Syncer
	cache    *note.GradeCache
	client   *apiclient.Client
	validate *validator.Validate
	uni      *ut.UniversalTranslator
	cat      *core.Catalog
}

func (cli *commandLine) flagSet(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.SetOutput(cli.out)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(cli.out, "Usage of %s:\n", name)
		fs.PrintDefaults()
	}
	return fs
}

func (cli *commandLine) printf(format string, args ...interface{}) {
	_, _ = fmt.Fprintf(cli.out, format, args...)
}

// message renders err in the configured language.
func (cli *commandLine) message(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		trans := core.Translator(cli.uni, cli.opts.lang)
		msgs := make([]string, 0, len(verrs))
		for _, fe := range verrs {
			msgs = append(msgs, fe.Translate(trans))
		}
		return strings.Join(msgs, "; ")
	}
	if ae, ok := core.AsAppError(err); ok {
		return cli.cat.T(cli.opts.lang, ae.Key, ae.Params)
	}
	return err.Error()
}

// run executes the command of args, the global flags already stripped.
func (cli *commandLine) run(args []string) error {
	if len(args) == 0 {
		printUsage(cli.out)
		return errHelp
	}
	ctx := context.Background()

	switch args[0] {
	case "note":
		if len(args) < 2 {
			printUsage(cli.out)
			return errHelp
		}
		switch args[1] {
		case "new":
			return cli.newNote(ctx, args[2:])
		case "show":
			if len(args) != 3 {
				printUsage(cli.out)
				return errHelp
			}
			return cli.showNote(ctx, args[2])
		case "delete":
			if len(args) != 3 {
				printUsage(cli.out)
				return errHelp
			}
			if err := cli.store.DeleteNote(ctx, args[2]); err != nil {
				return err
			}
			cli.printf("note %s deleted\n", args[2])
			return nil
		}
	case "grade":
		if len(args) != 4 {
			printUsage(cli.out)
			return errHelp
		}
		return cli.setGrade(ctx, args[1], args[2], args[3])
	case "publish":
		return cli.publish(ctx, args[1:])
	case "sync":
		return cli.sync(ctx)
	case "status":
		return cli.status(ctx)
	case "list":
		return cli.list(ctx, args[1:])
	case "login":
		return cli.login(ctx, args[1:])
	case "cleanup":
		if err := cli.syncer.CleanupSyncQueue(ctx); err != nil {
			return err
		}
		cli.printf("completed sync items cleared\n")
		return nil
	}
	printUsage(cli.out)
	return errHelp
}

// login prints a token to pass with --token or TEACHER_TOKEN.
func (cli *commandLine) login(ctx context.Context, args []string) error {
	cmd := cli.flagSet("login")
	uname := cmd.StringP("username", "u", "", "The teacher's username or email. The password will be prompted next.")
	if err := parse(cmd, args); err != nil {
		return err
	}
	if *uname == "" {
		cmd.Usage()
		return errHelp
	}
	cli.printf("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	cli.printf("\n")
	if err != nil {
		return err
	}
	if len(pwd) == 0 {
		cmd.Usage()
		return errHelp
	}
	token, err := cli.client.Login(ctx, *uname, string(pwd))
	if err != nil {
		return err
	}
	cli.printf("%s\n", token)
	return nil
}
