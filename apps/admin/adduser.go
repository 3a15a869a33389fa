package main

import (
	"context"

	"github.com/pkg/errors"

	"github.com/vigilsat/vigil/core"
	"github.com/vigilsat/vigil/core/user"
)

type addUserOptions struct {
	username   string
	email      string
	password   string
	role       string
	department string
}

// addUser updates or creates a user.User
func (cli *commandLine) addUser(ctx context.Context, opts addUserOptions) error {
	role := core.CleanString(opts.role, true /* lower */)
	if !user.IsValidRole(role) {
		return errors.Errorf("invalid role %q", opts.role)
	}

	usr, err := cli.usrSvc.GetByUsernameOrEmail(ctx, opts.username)
	if err != nil {
		if !core.IsNotFound(err) {
			return err
		}
		usr, err = cli.usrSvc.Create(ctx, user.NewUser{
			Username:           opts.username,
			Email:              opts.email,
			Password:           opts.password,
			Department:         opts.department,
			Role:               role,
			SkipPasswordPolicy: true,
		})
		if err != nil {
			return err
		}
		cli.printf("created user %q (%s)\n", usr.Username, usr.Role)
		return nil
	}

	active := true
	uu := user.UpdateUser{Role: &role, IsActive: &active}
	if opts.department != "" {
		uu.Department = &opts.department
	}
	if usr, err = cli.usrSvc.Update(ctx, usr.ID, uu); err != nil {
		return err
	}
	if _, err = cli.usrSvc.SetPassword(ctx, usr.Username, opts.password); err != nil {
		return err
	}
	cli.printf("updated user %q (%s)\n", usr.Username, usr.Role)
	return nil
}
