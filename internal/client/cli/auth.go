package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/ledgerlock/ledgerlock/internal/common"
)

// getSimpleText, getAmount and getPassword are indirections for tests.
var (
	getSimpleText = GetSimpleText
	getAmount     = GetAmount
	getPassword   = GetPassword
)

// Register prompts for credentials and provisions the account: salt, master
// key, default organization key and RSA pair all come into existence here.
func (a *App) Register(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.auth.Register(ctx, email, password); err != nil {
		fmt.Println("Registration failed:", err)
		return err
	}

	a.email = email
	fmt.Println("Registered and signed in.")
	return nil
}

// Login authenticates and re-derives the master key from the server-stored
// salt.
func (a *App) Login(ctx context.Context) error {
	email, err := getSimpleText(a.reader, "Enter email", os.Stdout)
	if err != nil {
		return err
	}
	password, err := getPassword(os.Stdout)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(password)

	if err := a.auth.Login(ctx, email, password); err != nil {
		fmt.Println("Login failed:", err)
		return err
	}

	a.email = email
	fmt.Println("Signed in.")
	return nil
}

func (a *App) Logout(ctx context.Context) error {
	if err := a.auth.Logout(ctx); err != nil {
		fmt.Println("Logout failed:", err)
		return err
	}
	a.email = ""
	fmt.Println("Signed out.")
	return nil
}
