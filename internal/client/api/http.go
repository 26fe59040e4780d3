package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/ledgerlock/ledgerlock/internal/client/models"
	"github.com/ledgerlock/ledgerlock/internal/common"
	"github.com/ledgerlock/ledgerlock/internal/cryptox"
)

// HTTPClient talks JSON over HTTP to the backend. The bearer token obtained
// at login is attached to every subsequent request.
type HTTPClient struct {
	baseURL     string
	http        *http.Client
	accessToken string
}

func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// AccessToken returns the bearer token stored by Login, or "".
func (c *HTTPClient) AccessToken() string {
	return c.accessToken
}

// SetAccessToken installs a previously saved bearer token.
func (c *HTTPClient) SetAccessToken(token string) {
	c.accessToken = token
}

func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

// tokenExpired inspects the token's exp claim without verifying the
// signature; verification is the server's job, the client only wants to know
// whether a round-trip is pointless.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body any, out any) error {
	if c.accessToken != "" && tokenExpired(c.accessToken, time.Now()) {
		return fmt.Errorf("%w: %w", ErrUnauthorized, common.ErrTokenExpired)
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		var e struct {
			Detail string `json:"detail"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Detail == "" {
			e.Detail = resp.Status
		}
		return fmt.Errorf("server error: %s", e.Detail)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func (c *HTTPClient) Register(ctx context.Context, req RegisterRequest) error {
	return c.do(ctx, http.MethodPost, "/api/auth/register", req, nil)
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (string, error) {
	body := struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}{email, password}

	var token struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		Salt        string `json:"salt"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/auth/login", body, &token); err != nil {
		return "", err
	}
	c.accessToken = token.AccessToken
	return token.Salt, nil
}

func (c *HTTPClient) GetPublicKey(ctx context.Context, email string) (string, error) {
	var resp struct {
		Email     string `json:"email"`
		PublicKey string `json:"public_key"`
	}
	err := c.do(ctx, http.MethodGet, "/api/auth/public-key/"+url.PathEscape(email), nil, &resp)
	if err != nil {
		return "", err
	}
	if resp.PublicKey == "" {
		return "", fmt.Errorf("%w: %s", ErrRecipientKeyUnavailable, email)
	}
	return resp.PublicKey, nil
}

func (c *HTTPClient) GetEncryptedPrivateKey(ctx context.Context) (string, string, error) {
	var resp struct {
		EncryptedPrivateKey string `json:"encrypted_private_key"`
		PublicKey           string `json:"public_key"`
	}
	if err := c.do(ctx, http.MethodGet, "/api/auth/encrypted-private-key", nil, &resp); err != nil {
		return "", "", err
	}
	return resp.EncryptedPrivateKey, resp.PublicKey, nil
}

func (c *HTTPClient) StoreEncryptedPrivateKey(ctx context.Context, encryptedPrivateKey, publicKey string) error {
	body := struct {
		EncryptedPrivateKey string `json:"encrypted_private_key"`
		PublicKey           string `json:"public_key"`
	}{encryptedPrivateKey, publicKey}
	return c.do(ctx, http.MethodPost, "/api/auth/store-encrypted-private-key", body, nil)
}

func (c *HTTPClient) ListAccounts(ctx context.Context) ([]models.Account, error) {
	var accounts []models.Account
	if err := c.do(ctx, http.MethodGet, "/api/accounts", nil, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *HTTPClient) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	var account models.Account
	if err := c.do(ctx, http.MethodGet, "/api/accounts/"+url.PathEscape(id), nil, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *HTTPClient) CreateAccount(ctx context.Context, req CreateAccountRequest) (*models.Account, error) {
	var account models.Account
	if err := c.do(ctx, http.MethodPost, "/api/accounts", req, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *HTTPClient) UpdateAccount(ctx context.Context, id string, req UpdateAccountRequest) (*models.Account, error) {
	var account models.Account
	if err := c.do(ctx, http.MethodPut, "/api/accounts/"+url.PathEscape(id), req, &account); err != nil {
		return nil, err
	}
	return &account, nil
}

func (c *HTTPClient) DeleteAccount(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/accounts/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) ListTransactions(ctx context.Context, accountID string) ([]models.Transaction, error) {
	var resp struct {
		Transactions []models.Transaction `json:"transactions"`
		Total        int                  `json:"total"`
	}
	path := "/api/transactions?account_id=" + url.QueryEscape(accountID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}

func (c *HTTPClient) CreateTransaction(ctx context.Context, req CreateTransactionRequest) (*models.Transaction, error) {
	var tx models.Transaction
	if err := c.do(ctx, http.MethodPost, "/api/transactions", req, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *HTTPClient) UpdateTransaction(ctx context.Context, id string, req UpdateTransactionRequest) (*models.Transaction, error) {
	var tx models.Transaction
	if err := c.do(ctx, http.MethodPut, "/api/transactions/"+url.PathEscape(id), req, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *HTTPClient) DeleteTransaction(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "/api/transactions/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) RestoreTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	var tx models.Transaction
	path := "/api/transactions/" + url.PathEscape(id) + "/restore"
	if err := c.do(ctx, http.MethodPost, path, nil, &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *HTTPClient) CreateOrganization(ctx context.Context, name string, wrappedOrgKey cryptox.SymWrappedKey) (*models.Organization, error) {
	body := struct {
		Name          string                `json:"name"`
		WrappedOrgKey cryptox.SymWrappedKey `json:"wrapped_org_key"`
	}{name, wrappedOrgKey}

	var org models.Organization
	if err := c.do(ctx, http.MethodPost, "/api/organizations", body, &org); err != nil {
		return nil, err
	}
	return &org, nil
}

func (c *HTTPClient) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	var orgs []models.Organization
	if err := c.do(ctx, http.MethodGet, "/api/organizations", nil, &orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

func (c *HTTPClient) CreateInvitation(ctx context.Context, orgID string, req CreateInvitationRequest) (*models.Invitation, error) {
	var inv models.Invitation
	path := "/api/organizations/" + url.PathEscape(orgID) + "/invitations"
	if err := c.do(ctx, http.MethodPost, path, req, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (c *HTTPClient) ListInvitations(ctx context.Context) ([]models.Invitation, error) {
	var invs []models.Invitation
	if err := c.do(ctx, http.MethodGet, "/api/invitations", nil, &invs); err != nil {
		return nil, err
	}
	return invs, nil
}

func (c *HTTPClient) AcceptInvitation(ctx context.Context, token string, wrappedOrgKey cryptox.SymWrappedKey) (*models.Invitation, error) {
	body := struct {
		WrappedOrgKey cryptox.SymWrappedKey `json:"wrapped_org_key"`
	}{wrappedOrgKey}

	var inv models.Invitation
	path := "/api/invitations/" + url.PathEscape(token) + "/accept"
	if err := c.do(ctx, http.MethodPost, path, body, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}

func (c *HTTPClient) RejectInvitation(ctx context.Context, token string) (*models.Invitation, error) {
	var inv models.Invitation
	path := "/api/invitations/" + url.PathEscape(token) + "/reject"
	if err := c.do(ctx, http.MethodPost, path, nil, &inv); err != nil {
		return nil, err
	}
	return &inv, nil
}
