package main

import (
	"context"
)

func (cli *commandLine) resetPassword(ctx context.Context, login, pwd string) error {
	usr, err := cli.usrSvc.SetPassword(ctx, login, pwd)
	if err != nil {
		return err
	}
	cli.printf("password of %q has been reset\n", usr.Username)
	return nil
}
