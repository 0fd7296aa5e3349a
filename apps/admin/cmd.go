package main

import (
	"errors"
	"flag"
	"fmt"
	"syscall"

	"golang.org/x/term"

	"github.com/maraakiz/maraakiz/core/abonnement"
	"github.com/maraakiz/maraakiz/core/paiement"
	"github.com/maraakiz/maraakiz/core/user"
	"github.com/maraakiz/maraakiz/storage/database"
)

var (
	readPasswordFunc = term.ReadPassword // mockable

	errHelp = errors.New("help provided")
)

type commandLine struct {
	db            *database.DB
	usrSvc        user.Service
	paiementSvc   paiement.Service
	abonnementSvc abonnement.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate COMMAND [ARG] - run a migration command: up, up-by-one, up-to VERSION, down, down-to VERSION, redo, reset, status, version")
	fmt.Println("  adduser -email EMAIL -nom NOM - create an admin user, or promote an existing one")
	fmt.Println("  resetpassword -email EMAIL - reset user's password")
	fmt.Println("  sendreminders - email the reminders of the overdue paiements of every merkez")
	fmt.Println("  expiresubscriptions - deactivate the ended abonnements")
}

// promptPassword reads a password from the terminal; errHelp when it is empty.
func promptPassword(usage func()) (string, error) {
	fmt.Print("Enter password:")
	pwd, err := readPasswordFunc(int(syscall.Stdin))
	fmt.Println()
	if err != nil {
		return "", err
	}
	if len(pwd) == 0 {
		usage()
		return "", errHelp
	}
	return string(pwd), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserEmail := addUserCmd.String("email", "", "The user's email. The password will be prompted next.")
	addUserNom := addUserCmd.String("nom", "", "The user's name.")

	resetPasswordCmd := flag.NewFlagSet("resetpassword", flag.ContinueOnError)
	resetPasswordEmail := resetPasswordCmd.String("email", "", "The user's email. The password will be prompted next.")

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(addUserCmd.Usage)
		if err != nil {
			return err
		}
		return cli.addUser(*addUserEmail, *addUserNom, pwd)

	case "resetpassword":
		if err := resetPasswordCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *resetPasswordEmail == "" {
			resetPasswordCmd.Usage()
			return errHelp
		}
		pwd, err := promptPassword(resetPasswordCmd.Usage)
		if err != nil {
			return err
		}
		return cli.resetPassword(*resetPasswordEmail, pwd)

	case "sendreminders":
		return cli.sendReminders()

	case "expiresubscriptions":
		return cli.expireSubscriptions()

	default:
		cli.printUsage()
		return errHelp
	}
}
