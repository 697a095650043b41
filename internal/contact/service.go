package contact

import (
	"context"
	"math"

	"github.com/redmonkez12/contacts-api/internal/logging"
)

// Store is the persistence the contact service needs
type Store interface {
	CreateContact(ctx context.Context, c *Contact) error
	GetContact(ctx context.Context, userID, id int64) (*Contact, error)
	UpdateContact(ctx context.Context, c *Contact) error
	DeleteContact(ctx context.Context, userID, id int64) error
	SearchContacts(ctx context.Context, userID int64, params SearchParams) ([]Contact, int, error)

	CreateAddress(ctx context.Context, a *Address) error
	GetAddress(ctx context.Context, contactID, id int64) (*Address, error)
	UpdateAddress(ctx context.Context, a *Address) error
	DeleteAddress(ctx context.Context, contactID, id int64) error
	ListAddresses(ctx context.Context, contactID int64) ([]Address, error)
}

// Service manages a user's contacts and their addresses. Every call is
// scoped to the calling user; contacts owned by anyone else do not exist.
type Service struct {
	store  Store
	logger *logging.Logger
}

func NewService(store Store, logger *logging.Logger) *Service {
	return &Service{store: store, logger: logger}
}

func (s *Service) Create(ctx context.Context, userID int64, c Contact) (*Contact, error) {
	c.ID = 0
	c.UserID = userID
	if err := s.store.CreateContact(ctx, &c); err != nil {
		return nil, err
	}
	s.logger.Debug("contact created", "user_id", userID, "contact_id", c.ID)
	return &c, nil
}

func (s *Service) Get(ctx context.Context, userID, contactID int64) (*Contact, error) {
	return s.store.GetContact(ctx, userID, contactID)
}

func (s *Service) Update(ctx context.Context, userID, contactID int64, patch ContactPatch) (*Contact, error) {
	c, err := s.store.GetContact(ctx, userID, contactID)
	if err != nil {
		return nil, err
	}
	patch.apply(c)
	if err := s.store.UpdateContact(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *Service) Delete(ctx context.Context, userID, contactID int64) error {
	if err := s.store.DeleteContact(ctx, userID, contactID); err != nil {
		return err
	}
	s.logger.Debug("contact deleted", "user_id", userID, "contact_id", contactID)
	return nil
}

// Search returns one page of matching contacts. Page and size are clamped
// to their defaults and the maximum page size.
func (s *Service) Search(ctx context.Context, userID int64, params SearchParams) (*SearchResult, error) {
	params.normalize()

	contacts, total, err := s.store.SearchContacts(ctx, userID, params)
	if err != nil {
		return nil, err
	}

	return &SearchResult{
		Contacts:  contacts,
		Page:      params.Page,
		Size:      params.Size,
		TotalPage: int(math.Ceil(float64(total) / float64(params.Size))),
	}, nil
}

func (s *Service) CreateAddress(ctx context.Context, userID, contactID int64, a Address) (*Address, error) {
	if err := s.ownContact(ctx, userID, contactID); err != nil {
		return nil, err
	}
	a.ID = 0
	a.ContactID = contactID
	if err := s.store.CreateAddress(ctx, &a); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *Service) GetAddress(ctx context.Context, userID, contactID, addressID int64) (*Address, error) {
	if err := s.ownContact(ctx, userID, contactID); err != nil {
		return nil, err
	}
	return s.store.GetAddress(ctx, contactID, addressID)
}

func (s *Service) UpdateAddress(ctx context.Context, userID, contactID, addressID int64, patch AddressPatch) (*Address, error) {
	a, err := s.GetAddress(ctx, userID, contactID, addressID)
	if err != nil {
		return nil, err
	}
	patch.apply(a)
	if err := s.store.UpdateAddress(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *Service) DeleteAddress(ctx context.Context, userID, contactID, addressID int64) error {
	if err := s.ownContact(ctx, userID, contactID); err != nil {
		return err
	}
	return s.store.DeleteAddress(ctx, contactID, addressID)
}

func (s *Service) ListAddresses(ctx context.Context, userID, contactID int64) ([]Address, error) {
	if err := s.ownContact(ctx, userID, contactID); err != nil {
		return nil, err
	}
	return s.store.ListAddresses(ctx, contactID)
}

func (s *Service) ownContact(ctx context.Context, userID, contactID int64) error {
	_, err := s.store.GetContact(ctx, userID, contactID)
	return err
}
