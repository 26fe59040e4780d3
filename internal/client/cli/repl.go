package cli

import (
	"context"
	"fmt"
	"strings"
)

func (a *App) status() string {
	if a.email != "" {
		return "(" + a.email + ")"
	}
	return ""
}

func (a *App) repl(ctx context.Context) {
	fmt.Println("LedgerLock CLI (type 'help' for commands)")

	for {
		fmt.Printf("ledgerlock %s> ", a.status())
		// Commands and prompts share a.reader; a second buffered reader on
		// os.Stdin would swallow typed-ahead input.
		line, err := a.reader.ReadString('\n')
		parts := strings.Fields(line)
		if len(parts) == 0 {
			if err != nil {
				return
			}
			continue
		}
		cmd := parts[0]
		args := parts[1:]

		switch cmd {
		case "help":
			if a.isLoggedIn() {
				fmt.Println("Available commands: accounts, addaccount, migrate, ledger <account-id>, addtx, deltx, restoretx, orgs, addorg, invite, invitations, accept, reject, logout, exit")
			} else {
				fmt.Println("Available commands: register, login, exit")
			}

		case "register":
			_ = a.Register(ctx)
		case "login":
			_ = a.Login(ctx)
		case "logout":
			_ = a.Logout(ctx)

		case "accounts":
			_ = a.listAccounts(ctx)
		case "addaccount":
			_ = a.addAccount(ctx)
		case "migrate":
			_ = a.migrateAccount(ctx)

		case "ledger":
			if len(args) == 0 {
				fmt.Println("Usage: ledger <account-id>")
				continue
			}
			_ = a.showLedger(ctx, args[0])
		case "addtx":
			_ = a.addTransaction(ctx)
		case "deltx":
			_ = a.deleteTransaction(ctx)
		case "restoretx":
			_ = a.restoreTransaction(ctx)

		case "orgs":
			_ = a.listOrganizations(ctx)
		case "addorg":
			_ = a.createOrganization(ctx)
		case "invite":
			_ = a.invite(ctx)
		case "invitations":
			_ = a.listInvitations(ctx)
		case "accept":
			_ = a.acceptInvitation(ctx)
		case "reject":
			_ = a.rejectInvitation(ctx)

		case "exit", "quit":
			fmt.Println("Bye!")
			return

		default:
			fmt.Println("Unknown command:", cmd)
		}
	}
}
