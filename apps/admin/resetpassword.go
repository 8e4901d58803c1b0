package main

import (
	"context"
	"fmt"

	"github.com/ecolehub/backend/core"
	"github.com/ecolehub/backend/core/user"
)

// resetPassword sets a new password for the user matching uname, by username or email.
// Deactivated accounts are updated too; reactivation stays an explicit adduser step.
func (cli *commandLine) resetPassword(uname, pwd string) error {
	ctx := context.Background()
	filter := user.GetFilter{UsernameOrEmail: []string{core.CleanString(uname, true /* lower */)}}

	usr, err := cli.usrRepo.GetUser(ctx, filter)
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return fmt.Errorf("resetpassword: %w", err)
	}
	if usr, err = cli.usrRepo.UpdateUser(ctx, usr); err != nil {
		return err
	}

	state := "active"
	if !usr.Active() {
		state = "inactive"
	}
	_, _ = fmt.Fprintf(cli.out, "password updated for %s (%s)\n", usr.Username, state)
	return nil
}
