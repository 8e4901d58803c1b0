package main

import (
	"database/sql"
	"errors"
	"fmt"
	"io"
	"syscall"

	ut "github.com/go-playground/universal-translator"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/school"
	"github.com/ecolehub/backend/core/student"
	"github.com/ecolehub/backend/core/user"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db         *sql.DB
	out        io.Writer
	usrRepo    user.Repository
	schoolSvc  school.Service
	studentSvc student.Service
	cat        *core.Catalog
	uni        *ut.UniversalTranslator
	locale     string
}

func (cli *commandLine) printUsage() {
	_, _ = fmt.Fprintln(cli.out, "Usage:")
	_, _ = fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                                  - run a goose command (up, down, redo, status, ...)")
	_, _ = fmt.Fprintln(cli.out, "  adduser --username U --email E [--school ID] [--admin|--super] - create or update a user")
	_, _ = fmt.Fprintln(cli.out, "  resetpassword --username USERNAME|EMAIL                 - reset user's password")
	_, _ = fmt.Fprintln(cli.out, "  importschools --file FILE.csv [--skip-duplicates]       - create schools from a CSV file")
	_, _ = fmt.Fprintln(cli.out, "  importstudents --school ID --file FILE [--dry-run]      - import students from a CSV or XLSX file")
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

// promptPassword reads a password without echo. An empty password prints usage.
func (cli *commandLine) promptPassword(fs *pflag.FlagSet) (string, error) {
	_, _ = fmt.Fprint(cli.out, "Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	_, _ = fmt.Fprintln(cli.out)
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		fs.Usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "resetpassword":
		cmd := cli.flagSet("resetpassword")
		uname := cmd.StringP("username", "u", "", "The user's username or email. The password will be prompted next.")
		if err := parse(cmd, args[2:]); err != nil {
			return err
		}
		if *uname == "" {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(cmd)
		if err != nil {
			return err
		}
		return cli.resetPassword(*uname, pwd)

	case "adduser":
		cmd := cli.flagSet("adduser")
		uname := cmd.StringP("username", "u", "", "The user's username.")
		email := cmd.StringP("email", "e", "", "The user's email.")
		name := cmd.StringP("name", "n", "", "The user's full name.")
		schoolID := cmd.String("school", "", "The ID of the user's school. Required unless --super.")
		isAdmin := cmd.Bool("admin", false, "Make the user an admin of the school.")
		isSuper := cmd.Bool("super", false, "Make the user a platform super admin.")
		if err := parse(cmd, args[2:]); err != nil {
			return err
		}
		if *uname == "" || *email == "" || (*schoolID == "" && !*isSuper) {
			cmd.Usage()
			return errHelp
		}
		pwd, err := cli.promptPassword(cmd)
		if err != nil {
			return err
		}
		return cli.addUser(newUserArgs{
			username: *uname,
			email:    *email,
			name:     *name,
			schoolID: *schoolID,
			isAdmin:  *isAdmin,
			isSuper:  *isSuper,
		}, pwd)

	case "importschools":
		cmd := cli.flagSet("importschools")
		file := cmd.StringP("file", "f", "", "The CSV file to import.")
		skip := cmd.Bool("skip-duplicates", false, "Skip rows whose code is already taken instead of failing the batch.")
		if err := parse(cmd, args[2:]); err != nil {
			return err
		}
		if *file == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.importSchools(*file, *skip)

	case "importstudents":
		cmd := cli.flagSet("importstudents")
		schoolID := cmd.String("school", "", "The ID of the school.")
		file := cmd.StringP("file", "f", "", "The CSV or XLSX file to import.")
		dryRun := cmd.Bool("dry-run", false, "Validate the file and preview its rows without importing.")
		if err := parse(cmd, args[2:]); err != nil {
			return err
		}
		if *schoolID == "" || *file == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.importStudents(*schoolID, *file, *dryRun)

	default:
		cli.printUsage()
		return errHelp
	}
}
