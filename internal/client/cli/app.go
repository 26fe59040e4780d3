package cli

import (
	"bufio"
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"

	"github.com/ledgerlock/ledgerlock/internal/client/api"
	"github.com/ledgerlock/ledgerlock/internal/client/config"
	"github.com/ledgerlock/ledgerlock/internal/client/keystore"
	"github.com/ledgerlock/ledgerlock/internal/client/orgexchange"
	"github.com/ledgerlock/ledgerlock/internal/client/services"
	"github.com/ledgerlock/ledgerlock/internal/client/session"
	"github.com/ledgerlock/ledgerlock/internal/logging"

	_ "modernc.org/sqlite"
)

type App struct {
	config *config.Config
	log    logging.Logger

	client api.Client
	keys   *keystore.KeyStore
	db     *sql.DB

	auth services.AuthService
	accs services.AccountService
	txs  services.TransactionService
	orgs services.OrganizationService

	email  string
	reader *bufio.Reader
}

func NewApp(ctx context.Context, cfg *config.Config) (*App, error) {
	log := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	sess, db, err := session.Open(ctx, cfg.SessionDBPath)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	client := api.NewHTTPClient(cfg.ServerEndpointAddr, cfg.RequestTimeout)
	keys := keystore.New(sess, log)
	exchange := orgexchange.New(client, keys, log)

	return &App{
		config: cfg,
		log:    log,
		client: client,
		keys:   keys,
		db:     db,
		auth:   services.NewAuthService(client, keys, exchange, sess, log),
		accs:   services.NewAccountService(client, keys, log),
		txs:    services.NewTransactionService(client, keys, log),
		orgs:   services.NewOrganizationService(client, keys, exchange, log),
		reader: bufio.NewReader(os.Stdin),
	}, nil
}

func (a *App) Run(ctx context.Context) {
	defer a.Close()
	a.restoreSession(ctx)
	a.repl(ctx)
}

// restoreSession resumes the previous login, if the session database still
// holds one. Failures are not fatal; the user can always sign in again.
func (a *App) restoreSession(ctx context.Context) {
	email, ok, err := a.auth.Restore(ctx)
	if err != nil {
		a.log.Warn(ctx, "restoring session", "error", err)
		return
	}
	if ok {
		a.email = email
		fmt.Println("Session restored for", email)
	}
}

func (a *App) Close() {
	if err := a.client.Close(); err != nil {
		a.log.Warn(context.Background(), "closing API client", "error", err)
	}
	if err := a.db.Close(); err != nil {
		a.log.Warn(context.Background(), "closing session database", "error", err)
	}
}

func (a *App) isLoggedIn() bool {
	return a.keys.HasMasterKey()
}
