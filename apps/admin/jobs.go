package main

import (
	"context"
	"fmt"
	"time"
)

// sendReminders emails the payers of every merkez whose paiement is overdue.
func (cli *commandLine) sendReminders() error {
	n, err := cli.paiementSvc.SendReminders(context.Background(), 0 /* all merkez */)
	if err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("%d payment reminders sent", n))
	return nil
}

func (cli *commandLine) expireSubscriptions() error {
	n, err := cli.abonnementSvc.ExpireSubscriptions(context.Background(), time.Now())
	if err != nil {
		return err
	}
	logger.Info(fmt.Sprintf("%d abonnements expired", n))
	return nil
}
