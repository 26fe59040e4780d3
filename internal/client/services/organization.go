package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/ledgerlock/ledgerlock/internal/client/api"
	"github.com/ledgerlock/ledgerlock/internal/client/keystore"
	"github.com/ledgerlock/ledgerlock/internal/client/models"
	"github.com/ledgerlock/ledgerlock/internal/client/orgexchange"
	"github.com/ledgerlock/ledgerlock/internal/logging"
)

type OrganizationService interface {
	Create(ctx context.Context, name string) (*models.Organization, error)
	List(ctx context.Context) ([]models.Organization, error)
	Invite(ctx context.Context, orgID, email, role, message string) (*models.Invitation, error)
	ListInvitations(ctx context.Context) ([]models.Invitation, error)
	Accept(ctx context.Context, token string) (*models.Invitation, error)
	Reject(ctx context.Context, token string) (*models.Invitation, error)
}

type organizationService struct {
	client   api.Client
	keys     *keystore.KeyStore
	exchange *orgexchange.Exchanger
	log      logging.Logger
}

func NewOrganizationService(client api.Client, keys *keystore.KeyStore, exchange *orgexchange.Exchanger, log logging.Logger) OrganizationService {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &organizationService{client: client, keys: keys, exchange: exchange, log: log}
}

// Create mints an organization key, wraps it under the creator's master key
// and registers the organization. The server never sees the key itself.
func (s *organizationService) Create(ctx context.Context, name string) (*models.Organization, error) {
	placeholder := uuid.NewString()
	orgKey, wrapped, err := s.keys.CreateOrganizationKey(placeholder)
	if err != nil {
		return nil, fmt.Errorf("creating organization key: %w", err)
	}

	org, err := s.client.CreateOrganization(ctx, name, wrapped)
	if err != nil {
		return nil, fmt.Errorf("creating organization: %w", err)
	}

	s.keys.RegisterOrganizationKey(org.ID, orgKey)
	s.keys.ForgetOrganizationKey(placeholder)
	return org, nil
}

// List returns the user's organizations, unwrapping each organization key
// along the way so shared accounts can be opened afterwards. An org whose
// key fails to unwrap is still listed; only its accounts stay unreadable.
func (s *organizationService) List(ctx context.Context) ([]models.Organization, error) {
	orgs, err := s.client.ListOrganizations(ctx)
	if err != nil {
		return nil, err
	}
	for _, org := range orgs {
		if _, err := s.keys.LoadOrganizationKey(org.ID, org.WrappedOrgKey); err != nil {
			s.log.Warn(ctx, "unwrapping organization key", "org_id", org.ID, "error", err)
		}
	}
	return orgs, nil
}

// Invite wraps the organization key with the invitee's public key and files
// the invitation. Fails with api.ErrRecipientKeyUnavailable when the invitee
// has not registered a key pair yet.
func (s *organizationService) Invite(ctx context.Context, orgID, email, role, message string) (*models.Invitation, error) {
	if err := s.ensureOrgKey(ctx, orgID); err != nil {
		return nil, err
	}

	wrapped, err := s.exchange.WrapOrgKeyForInvitee(ctx, orgID, email)
	if err != nil {
		return nil, err
	}

	inv, err := s.client.CreateInvitation(ctx, orgID, api.CreateInvitationRequest{
		Email:         email,
		Role:          role,
		WrappedOrgKey: wrapped,
		Message:       message,
	})
	if err != nil {
		return nil, fmt.Errorf("creating invitation: %w", err)
	}
	return inv, nil
}

func (s *organizationService) ListInvitations(ctx context.Context) ([]models.Invitation, error) {
	return s.client.ListInvitations(ctx)
}

// Accept joins the organization: the invitee unwraps the invitation's
// organization key with their private key, re-wraps it under their own
// master key and sends that copy back so the membership record carries it.
func (s *organizationService) Accept(ctx context.Context, token string) (*models.Invitation, error) {
	invs, err := s.client.ListInvitations(ctx)
	if err != nil {
		return nil, err
	}
	var inv *models.Invitation
	for i := range invs {
		if invs[i].Token == token {
			inv = &invs[i]
			break
		}
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvitationNotFound, token)
	}

	rewrapped, err := s.exchange.UnwrapInvitationOrgKey(ctx, inv.WrappedOrgKey)
	if err != nil {
		return nil, err
	}

	accepted, err := s.client.AcceptInvitation(ctx, token, rewrapped)
	if err != nil {
		return nil, fmt.Errorf("accepting invitation: %w", err)
	}

	if _, err := s.keys.LoadOrganizationKey(inv.OrganizationID, rewrapped); err != nil {
		return nil, fmt.Errorf("loading organization key: %w", err)
	}
	return accepted, nil
}

// Reject declines an invitation. No key material changes hands: the wrapped
// organization key in the invitation is simply never unwrapped.
func (s *organizationService) Reject(ctx context.Context, token string) (*models.Invitation, error) {
	invs, err := s.client.ListInvitations(ctx)
	if err != nil {
		return nil, err
	}
	found := false
	for i := range invs {
		if invs[i].Token == token {
			found = true
			break
		}
	}
	if !found {
		return nil, fmt.Errorf("%w: %s", ErrInvitationNotFound, token)
	}

	rejected, err := s.client.RejectInvitation(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("rejecting invitation: %w", err)
	}
	return rejected, nil
}

// ensureOrgKey makes sure the organization key is unwrapped in memory,
// refreshing the membership list if it is not.
func (s *organizationService) ensureOrgKey(ctx context.Context, orgID string) error {
	if _, err := s.keys.OrganizationKey(orgID); err == nil {
		return nil
	}

	orgs, err := s.client.ListOrganizations(ctx)
	if err != nil {
		return err
	}
	for _, org := range orgs {
		if org.ID != orgID {
			continue
		}
		if _, err := s.keys.LoadOrganizationKey(org.ID, org.WrappedOrgKey); err != nil {
			return fmt.Errorf("unwrapping organization key: %w", err)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrOrganizationNotFound, orgID)
}
