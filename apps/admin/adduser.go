package main

import (
	"context"
	"fmt"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/user"
)

type newUserArgs struct {
	username, email, name string
	schoolID              string
	isAdmin, isSuper      bool
}

// addUser updates or creates a user.User. A super user belongs to no school.
func (cli *commandLine) addUser(args newUserArgs, pwd string) error {
	var usr user.User
	var err error
	ctx := context.Background()
	uname := core.CleanString(args.username, true /* lower */)
	email := core.CleanString(args.email, true /* lower */)

	if !args.isSuper {
		if _, err = cli.schoolSvc.Get(ctx, args.schoolID); err != nil {
			return err
		}
	}

	if usr, err = cli.usrRepo.GetUser(ctx, user.GetFilter{UsernameOrEmail: []string{uname, email}}); err != nil {
		if err != user.ErrNotFound {
			return err
		}
		usr = user.User{
			Username: uname,
			Email:    email,
			Name:     uname,
		}
	}
	if name := core.CleanString(args.name); name != "" {
		usr.Name = name
	}
	switch {
	case args.isSuper:
		usr.SchoolID = ""
		usr.Roles = user.SuperRoles
	case args.isAdmin:
		usr.SchoolID = args.schoolID
		usr.Roles = []string{user.RoleAdminOwner}
	default:
		usr.SchoolID = args.schoolID
	}
	usr.SetActive(true)
	if err := usr.SetPassword(pwd); err != nil {
		return err
	}
	if usr, err = cli.usrRepo.UpdateOrCreateUser(ctx, usr); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(cli.out, "user %s saved (%s)\n", usr.Username, usr.ID)
	return nil
}
