package main

import (
	"bytes"
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/school"
	"github.com/ecolehub/backend/core/student"
	"github.com/ecolehub/backend/core/user"
	"github.com/ecolehub/backend/testutil"
)

func setup(t *testing.T) (*commandLine, *testutil.Env, *bytes.Buffer) {
	env := testutil.NewEnv(t)
	out := new(bytes.Buffer)

	// start CLI
	return &commandLine{
		out:        out,
		usrRepo:    env.UserRepo,
		schoolSvc:  env.SchoolSvc,
		studentSvc: env.StudentSvc,
		cat:        env.Catalog,
		uni:        env.Uni,
		locale:     core.LocaleEN,
	}, env, out
}

type cliTest struct {
	name       string
	args       []string // without program name
	wantErr    error
	wantErrStr string
	extra      interface{}
}

func (tt cliTest) check(t *testing.T, err error) {
	t.Helper()
	switch {
	case err == nil:
		if tt.wantErr != nil || tt.wantErrStr != "" {
			t.Errorf("cli.run() error = nil, want %v%s", tt.wantErr, tt.wantErrStr)
		}
	case tt.wantErr != nil:
		if err != tt.wantErr {
			t.Errorf("cli.run() error = %v, wantErr %v", err, tt.wantErr)
		}
	case tt.wantErrStr != "":
		if err.Error() != tt.wantErrStr {
			t.Errorf("cli.run() error.Error() = %s, wantErrStr %s", err.Error(), tt.wantErrStr)
		}
	default:
		t.Errorf("cli.run() unexpected error = %v", err)
	}
}

func mockPassword(pwd string) {
	readPasswordFunc = func(fd int) ([]byte, error) {
		return []byte(pwd), nil
	}
}

func writeFile(t *testing.T, name, content string) string {
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func Test_commandLine_migrate(t *testing.T) {
	cli, _, _ := setup(t)

	gooseRunFunc = func(command string, db *sql.DB, fsys fs.FS, dir string, args ...string) error {
		if dir != "migrations" {
			return fmt.Errorf("unexpected migrations dir %q", dir)
		}
		switch command {
		case "up", "up-by-one", "down", "fix", "redo", "reset", "status", "version": // pass
		case "up-to":
			if len(args) == 0 {
				return fmt.Errorf("up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		case "create":
			if len(args) == 0 {
				return fmt.Errorf("create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]")
			}
		case "down-to":
			if len(args) == 0 {
				return fmt.Errorf("down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION")
			}
			if _, err := strconv.ParseInt(args[0], 10, 64); err != nil {
				return fmt.Errorf("version must be a number (got '%s')", args[0])
			}
		default:
			return fmt.Errorf("%q: no such command", command)
		}
		return nil
	}

	tests := []cliTest{
		{name: "no subcommand", args: []string{"migrate"}, wantErr: errHelp},
		{name: "unknown subcommand", args: []string{"migrate", "lol"}, wantErrStr: "\"lol\": no such command"},
		{name: "up-to: no args", args: []string{"migrate", "up-to"}, wantErrStr: "up-to must be of form: goose [OPTIONS] DRIVER DBSTRING up-to VERSION"},
		{name: "up-to: non-int arg", args: []string{"migrate", "up-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "create: no args", args: []string{"migrate", "create"}, wantErrStr: "create must be of form: goose [OPTIONS] DRIVER DBSTRING create NAME [go|sql]"},
		{name: "down-to: no args", args: []string{"migrate", "down-to"}, wantErrStr: "down-to must be of form: goose [OPTIONS] DRIVER DBSTRING down-to VERSION"},
		{name: "down-to: non-int arg", args: []string{"migrate", "down-to", "lol"}, wantErrStr: "version must be a number (got 'lol')"},
		{name: "up", args: []string{"migrate", "up"}},
		{name: "up-by-one", args: []string{"migrate", "up-by-one"}},
		{name: "up-to", args: []string{"migrate", "up-to", "2"}},
		{name: "down", args: []string{"migrate", "down"}},
		{name: "down-to", args: []string{"migrate", "down-to", "1"}},
		{name: "redo", args: []string{"migrate", "redo"}},
		{name: "reset", args: []string{"migrate", "reset"}},
		{name: "status", args: []string{"migrate", "status"}},
		{name: "version", args: []string{"migrate", "version"}},
		{name: "create", args: []string{"migrate", "create", "course", "sql"}},
		{name: "fix", args: []string{"migrate", "fix"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}
}

func Test_commandLine_usageErrors(t *testing.T) {
	cli, _, out := setup(t)
	mockPassword("")

	tests := []struct {
		name  string
		args  []string
		usage string
	}{
		{name: "resetpassword", args: []string{"resetpassword"}, usage: "Usage of resetpassword:"},
		{name: "resetpassword without password", args: []string{"resetpassword", "-u", "awe"}, usage: "Usage of resetpassword:"},
		{name: "adduser", args: []string{"adduser"}, usage: "Usage of adduser:"},
		{name: "importschools", args: []string{"importschools"}, usage: "Usage of importschools:"},
		{name: "importstudents", args: []string{"importstudents"}, usage: "Usage of importstudents:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out.Reset()
			assert.Equal(t, errHelp, cli.run(append([]string{"admin"}, tt.args...)))
			assert.Contains(t, out.String(), tt.usage)
			assert.Contains(t, out.String(), "--")
		})
	}
}

func Test_commandLine_resetPassword(t *testing.T) {
	cli, env, _ := setup(t)

	usr := testutil.CreateUser(t, env.UserRepo, "", "User", "awe", "awe@test.cd", "mdr", nil, true)

	type extra struct {
		pwd string
	}
	tests := []cliTest{
		{name: "no command", wantErr: errHelp},
		{name: "unknown command", args: []string{"lol"}, wantErr: errHelp},
		{name: "no args", args: []string{"resetpassword"}, wantErr: errHelp},
		{name: "help", args: []string{"resetpassword", "--help"}, wantErr: errHelp},
		{name: "username but no password", args: []string{"resetpassword", "--username", "lol"}, wantErr: errHelp},
		{name: "user not found", args: []string{"resetpassword", "--username", "lol"}, extra: extra{pwd: "lol"}, wantErr: user.ErrNotFound},
		{name: "reset with username", args: []string{"resetpassword", "--username", usr.Username}, extra: extra{pwd: "lol"}},
		{name: "reset with email", args: []string{"resetpassword", "-u", strings.ToUpper(usr.Email)}, extra: extra{pwd: "lmao"}},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		pwd := ""
		if extra, ok := tt.extra.(extra); ok {
			pwd = extra.pwd
		}
		mockPassword(pwd)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			tt.check(t, err)
			if err == nil {
				refreshedUsr, err := env.UserRepo.GetUser(context.Background(), user.GetFilter{ID: usr.ID})
				require.NoError(t, err)
				assert.NoError(t, refreshedUsr.CheckPassword(pwd))
			}
		})
	}
}

func Test_commandLine_addUser(t *testing.T) {
	cli, env, out := setup(t)
	sch := testutil.CreateSchool(t, env.SchoolRepo, "EPL")
	mockPassword("secret")

	tests := []cliTest{
		{name: "no args", args: []string{"adduser"}, wantErr: errHelp},
		{name: "no school", args: []string{"adduser", "-u", "awe", "-e", "awe@test.cd"}, wantErr: errHelp},
		{name: "unknown flag", args: []string{"adduser", "--lol"}, wantErrStr: "unknown flag: --lol"},
		{name: "unknown school", args: []string{"adduser", "-u", "awe", "-e", "awe@test.cd", "--school", testutil.UnknownID}, wantErr: school.ErrNotFound},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	ctx := context.Background()

	t.Run("create school admin", func(t *testing.T) {
		out.Reset()
		err := cli.run([]string{"admin", "adduser", "-u", " Awe ", "-e", "awe@test.cd", "-n", "Awe Nzita", "--school", sch.School.ID, "--admin"})
		require.NoError(t, err)
		assert.Contains(t, out.String(), "user awe saved")

		usr, err := env.UserRepo.GetUser(ctx, user.GetFilter{Username: "awe"})
		require.NoError(t, err)
		assert.Equal(t, "Awe Nzita", usr.Name)
		assert.Equal(t, sch.School.ID, usr.SchoolID)
		assert.True(t, usr.IsAdmin())
		assert.True(t, usr.Active())
		assert.NoError(t, usr.CheckPassword("secret"))
	})

	t.Run("update existing user", func(t *testing.T) {
		mockPassword("newsecret")
		err := cli.run([]string{"admin", "adduser", "-u", "awe", "-e", "awe@test.cd", "--super"})
		require.NoError(t, err)

		usrs, err := env.UserRepo.QueryUsers(ctx, nil, nil)
		require.NoError(t, err)
		require.Len(t, usrs, 1)
		assert.True(t, usrs[0].IsSuper())
		assert.Empty(t, usrs[0].SchoolID)
		assert.Equal(t, "Awe Nzita", usrs[0].Name)
		assert.NoError(t, usrs[0].CheckPassword("newsecret"))
	})
}

func Test_commandLine_importSchools(t *testing.T) {
	cli, env, out := setup(t)
	testutil.CreateSchool(t, env.SchoolRepo, "EPL")

	csv := "Nom,Code,Adresse\nLycée Wima,wima,Kinshasa\nEcole Primaire,EPL,Gombe\n,NOCODE,\n"
	path := writeFile(t, "schools.csv", csv)

	tests := []cliTest{
		{name: "no file", args: []string{"importschools"}, wantErr: errHelp},
		{name: "missing file", args: []string{"importschools", "-f", filepath.Join(t.TempDir(), "lol.csv")}, wantErrStr: "opening import file"},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			err := cli.run(args)
			if tt.wantErrStr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErrStr)
				return
			}
			tt.check(t, err)
		})
	}

	t.Run("import", func(t *testing.T) {
		out.Reset()
		require.NoError(t, cli.run([]string{"admin", "importschools", "--file", path, "--skip-duplicates"}))

		got := out.String()
		assert.Contains(t, got, "schools: 3 total, 1 created, 2 failed")
		assert.Contains(t, got, "WIMA  Lycée Wima")
		assert.Contains(t, got, "  row 3 (EPL): code: ")
		assert.Contains(t, got, "  row 4 (NOCODE): name: ")

		schools, err := env.SchoolSvc.Query(context.Background(), nil, nil)
		require.NoError(t, err)
		assert.Len(t, schools, 2)
	})
}

func Test_commandLine_importStudents(t *testing.T) {
	cli, env, out := setup(t)
	sch := testutil.CreateSchool(t, env.SchoolRepo, "EPL")

	csv := "Prénom,Nom,Date de naissance,Sexe\n" +
		"Awe,Nzita,15/03/2012,M\n" +
		"Ruth,Kabila,2013-01-20,F\n" +
		"Jean,Mbala,,M\n"
	path := writeFile(t, "eleves.csv", csv)

	tests := []cliTest{
		{name: "no args", args: []string{"importstudents"}, wantErr: errHelp},
		{name: "no file", args: []string{"importstudents", "--school", sch.School.ID}, wantErr: errHelp},
	}
	for _, tt := range tests {
		args := append([]string{"admin"}, tt.args...)

		t.Run(tt.name, func(t *testing.T) {
			tt.check(t, cli.run(args))
		})
	}

	ctx := context.Background()

	t.Run("dry run", func(t *testing.T) {
		out.Reset()
		require.NoError(t, cli.run([]string{"admin", "importstudents", "--school", sch.School.ID, "-f", path, "--dry-run"}))

		got := out.String()
		assert.Contains(t, got, "students: 3 rows, 2 valid, 1 invalid (valid: false)")
		assert.Contains(t, got, "Nzita Awe  2012-03-15")
		assert.Contains(t, got, "row 4: dob:")

		stus, err := env.StudentSvc.Query(ctx, &student.QueryFilter{SchoolID: sch.School.ID}, nil)
		require.NoError(t, err)
		assert.Empty(t, stus)
	})

	t.Run("import", func(t *testing.T) {
		out.Reset()
		require.NoError(t, cli.run([]string{"admin", "importstudents", "--school", sch.School.ID, "-f", path}))
		assert.Contains(t, out.String(), "students: 3 total, 2 imported, 1 failed, 0 skipped")

		stus, err := env.StudentSvc.Query(ctx, &student.QueryFilter{SchoolID: sch.School.ID}, nil)
		require.NoError(t, err)
		require.Len(t, stus, 2)
		for _, stu := range stus {
			assert.NotEmpty(t, stu.Matricule)
		}
	})
}
