package main

import (
	"context"

	"github.com/maraakiz/maraakiz/core"
	"github.com/maraakiz/maraakiz/core/user"
)

// addUser creates an admin user.User, or promotes and re-activates the existing one.
func (cli *commandLine) addUser(email, nom, pwd string) error {
	ctx := context.Background()
	email = core.CleanString(email, true /* lower */)

	usr, err := cli.usrSvc.GetByEmail(ctx, email)
	if err != nil {
		if !core.IsNotFound(err) {
			return err
		}
		if nom == "" {
			nom = email
		}
		usr = user.User{
			Email:    email,
			Nom:      core.StripTags(nom),
			UserType: user.TypeAdmin,
			IsAdmin:  true,
		}
		usr, err = cli.usrSvc.Create(ctx, usr, pwd)
		if err != nil {
			return err
		}
		logger.Info("admin user created: " + usr.Email)
		return nil
	}

	usr.IsAdmin = true
	usr.IsActive = true
	if _, err = cli.usrSvc.SetPassword(ctx, usr, pwd); err != nil {
		return err
	}
	logger.Info("admin user updated: " + usr.Email)
	return nil
}
