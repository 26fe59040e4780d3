package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/ledgerlock/ledgerlock/internal/client/services"
)

func (a *App) showLedger(ctx context.Context, accountID string) error {
	view, err := a.txs.Ledger(ctx, accountID)
	if err != nil {
		fmt.Println("Opening ledger failed:", err)
		return err
	}

	fmt.Printf("%s (%s), opening balance %.2f\n", view.Account.Name, view.Account.Currency, view.Account.OpeningBalance)
	if len(view.Transactions) == 0 {
		fmt.Println("No transactions.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "#\tDATE\tAMOUNT\tPAID TO/FROM\tNOTE\tBALANCE")
	for _, tx := range view.Transactions {
		fmt.Fprintf(w, "%d\t%s\t%.2f\t%s\t%s\t%.2f\n",
			tx.SerialNumber, tx.Date, tx.Amount, tx.Counterparty, tx.Note, tx.BalanceAfter)
	}
	return w.Flush()
}

func (a *App) addTransaction(ctx context.Context) error {
	accountID, err := getSimpleText(a.reader, "Account id", os.Stdout)
	if err != nil {
		return err
	}
	date, err := getSimpleText(a.reader, "Date (YYYY-MM-DD)", os.Stdout)
	if err != nil {
		return err
	}
	amount, err := getAmount(a.reader, "Amount (negative for spending)", os.Stdout)
	if err != nil {
		fmt.Println(err)
		return err
	}
	counterparty, err := getSimpleText(a.reader, "Paid to / received from", os.Stdout)
	if err != nil {
		return err
	}
	note, err := getSimpleText(a.reader, "Note (optional)", os.Stdout)
	if err != nil {
		return err
	}

	_, err = a.txs.Add(ctx, accountID, date, amount, counterparty, note)
	if errors.Is(err, services.ErrDuplicateTransaction) {
		fmt.Println("Looks like a double submission: an identical transaction was recorded seconds ago.")
		return err
	}
	if err != nil {
		fmt.Println("Adding transaction failed:", err)
		return err
	}
	fmt.Println("Recorded.")
	return nil
}

func (a *App) deleteTransaction(ctx context.Context) error {
	id, err := getSimpleText(a.reader, "Transaction id", os.Stdout)
	if err != nil {
		return err
	}
	if err := a.txs.Delete(ctx, id); err != nil {
		fmt.Println("Deleting transaction failed:", err)
		return err
	}
	fmt.Println("Deleted. Use 'restoretx' to undo.")
	return nil
}

func (a *App) restoreTransaction(ctx context.Context) error {
	id, err := getSimpleText(a.reader, "Transaction id", os.Stdout)
	if err != nil {
		return err
	}
	if err := a.txs.Restore(ctx, id); err != nil {
		fmt.Println("Restoring transaction failed:", err)
		return err
	}
	fmt.Println("Restored.")
	return nil
}
