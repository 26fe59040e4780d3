package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/ledgerlock/ledgerlock/internal/client/api"
)

func (a *App) createOrganization(ctx context.Context) error {
	name, err := getSimpleText(a.reader, "Organization name", os.Stdout)
	if err != nil {
		return err
	}

	org, err := a.orgs.Create(ctx, name)
	if err != nil {
		fmt.Println("Creating organization failed:", err)
		return err
	}
	fmt.Println("Created organization", org.ID)
	return nil
}

func (a *App) listOrganizations(ctx context.Context) error {
	orgs, err := a.orgs.List(ctx)
	if err != nil {
		fmt.Println("Listing organizations failed:", err)
		return err
	}
	if len(orgs) == 0 {
		fmt.Println("No organizations.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tROLE")
	for _, org := range orgs {
		fmt.Fprintf(w, "%s\t%s\t%s\n", org.ID, org.Name, org.Role)
	}
	return w.Flush()
}

func (a *App) invite(ctx context.Context) error {
	orgID, err := getSimpleText(a.reader, "Organization id", os.Stdout)
	if err != nil {
		return err
	}
	email, err := getSimpleText(a.reader, "Invitee email", os.Stdout)
	if err != nil {
		return err
	}
	role, err := getSimpleText(a.reader, "Role (member/admin)", os.Stdout)
	if err != nil {
		return err
	}
	message, err := getSimpleText(a.reader, "Message (optional)", os.Stdout)
	if err != nil {
		return err
	}

	inv, err := a.orgs.Invite(ctx, orgID, email, role, message)
	if errors.Is(err, api.ErrRecipientKeyUnavailable) {
		fmt.Println("That user has not set up encryption yet; ask them to sign in once first.")
		return err
	}
	if err != nil {
		fmt.Println("Inviting failed:", err)
		return err
	}
	fmt.Println("Invitation sent, token:", inv.Token)
	return nil
}

func (a *App) listInvitations(ctx context.Context) error {
	invs, err := a.orgs.ListInvitations(ctx)
	if err != nil {
		fmt.Println("Listing invitations failed:", err)
		return err
	}
	if len(invs) == 0 {
		fmt.Println("No pending invitations.")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TOKEN\tORGANIZATION\tROLE\tEXPIRES")
	for _, inv := range invs {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", inv.Token, inv.OrganizationID, inv.Role, inv.ExpiresAt.Format("2006-01-02"))
	}
	return w.Flush()
}

func (a *App) acceptInvitation(ctx context.Context) error {
	token, err := getSimpleText(a.reader, "Invitation token", os.Stdout)
	if err != nil {
		return err
	}

	inv, err := a.orgs.Accept(ctx, token)
	if err != nil {
		fmt.Println("Accepting invitation failed:", err)
		return err
	}
	fmt.Println("Joined organization", inv.OrganizationID)
	return nil
}

func (a *App) rejectInvitation(ctx context.Context) error {
	token, err := getSimpleText(a.reader, "Invitation token", os.Stdout)
	if err != nil {
		return err
	}

	if _, err := a.orgs.Reject(ctx, token); err != nil {
		fmt.Println("Rejecting invitation failed:", err)
		return err
	}
	fmt.Println("Invitation rejected.")
	return nil
}
