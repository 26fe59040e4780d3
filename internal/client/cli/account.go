package cli

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
)

func (a *App) listAccounts(ctx context.Context) error {
	accounts, err := a.accs.List(ctx)
	if err != nil {
		fmt.Println("Listing accounts failed:", err)
		return err
	}
	if len(accounts) == 0 {
		fmt.Println("No accounts yet. Use 'addaccount' to create one.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tCURRENCY\tOPENING\tSHARED")
	for _, acc := range accounts {
		shared := ""
		if acc.OrganizationID != "" {
			shared = acc.OrganizationID
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\n", acc.ID, acc.Name, acc.Currency, acc.OpeningBalance, shared)
	}
	return w.Flush()
}

func (a *App) addAccount(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Account name", os.Stdout)
	if err != nil {
		return err
	}
	opening, err := getAmount(a.reader, "Opening balance", os.Stdout)
	if err != nil {
		fmt.Println(err)
		return err
	}
	currency, err := getSimpleText(a.reader, "Currency (e.g. EUR)", os.Stdout)
	if err != nil {
		return err
	}

	acc, err := a.accs.Create(ctx, name, opening, currency)
	if err != nil {
		fmt.Println("Creating account failed:", err)
		return err
	}
	fmt.Println("Created account", acc.ID)
	return nil
}

func (a *App) migrateAccount(ctx context.Context) error {
	accountID, err := getSimpleText(a.reader, "Account id", os.Stdout)
	if err != nil {
		return err
	}
	orgID, err := getSimpleText(a.reader, "Organization id", os.Stdout)
	if err != nil {
		return err
	}

	if err := a.accs.MigrateToOrganization(ctx, accountID, orgID); err != nil {
		fmt.Println("Migration failed:", err)
		return err
	}
	fmt.Println("Account is now shared with the organization.")
	return nil
}
