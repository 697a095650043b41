package contact

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/uptrace/bun"

	"github.com/redmonkez12/contacts-api/internal/database"
)

// Repository handles contact and address persistence
type Repository struct {
	db *bun.DB
}

func NewRepository(db *bun.DB) *Repository {
	return &Repository{db: db}
}

// CreateContact inserts c and fills in its ID
func (r *Repository) CreateContact(ctx context.Context, c *Contact) error {
	dbc := toDBContact(c)
	if _, err := r.db.NewInsert().Model(dbc).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("failed to create contact: %w", err)
	}
	c.ID = dbc.ID
	return nil
}

// GetContact returns the contact only when it belongs to userID
func (r *Repository) GetContact(ctx context.Context, userID, id int64) (*Contact, error) {
	dbc := new(database.Contact)
	err := r.db.NewSelect().
		Model(dbc).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get contact: %w", err)
	}
	return fromDBContact(dbc), nil
}

// UpdateContact overwrites every editable column of c
func (r *Repository) UpdateContact(ctx context.Context, c *Contact) error {
	result, err := r.db.NewUpdate().
		Model(toDBContact(c)).
		Column("first_name", "last_name", "email", "phone").
		WherePK().
		Where("user_id = ?", c.UserID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update contact: %w", err)
	}
	return expectRow(result, ErrNotFound)
}

// DeleteContact removes the contact and, by cascade, its addresses
func (r *Repository) DeleteContact(ctx context.Context, userID, id int64) error {
	result, err := r.db.NewDelete().
		Model((*database.Contact)(nil)).
		Where("id = ?", id).
		Where("user_id = ?", userID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete contact: %w", err)
	}
	return expectRow(result, ErrNotFound)
}

// SearchContacts returns one page of userID's contacts matching params and the total match count
func (r *Repository) SearchContacts(ctx context.Context, userID int64, params SearchParams) ([]Contact, int, error) {
	var rows []database.Contact
	q := r.db.NewSelect().
		Model(&rows).
		Where("user_id = ?", userID)

	if params.Name != "" {
		pattern := containsPattern(params.Name)
		q = q.WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("first_name ILIKE ?", pattern).
				WhereOr("last_name ILIKE ?", pattern)
		})
	}
	if params.Email != "" {
		q = q.Where("email ILIKE ?", containsPattern(params.Email))
	}
	if params.Phone != "" {
		q = q.Where("phone LIKE ?", containsPattern(params.Phone))
	}

	total, err := q.
		OrderExpr("id ASC").
		Limit(params.Size).
		Offset((params.Page - 1) * params.Size).
		ScanAndCount(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search contacts: %w", err)
	}

	contacts := make([]Contact, 0, len(rows))
	for i := range rows {
		contacts = append(contacts, *fromDBContact(&rows[i]))
	}
	return contacts, total, nil
}

// CreateAddress inserts a and fills in its ID
func (r *Repository) CreateAddress(ctx context.Context, a *Address) error {
	dba := toDBAddress(a)
	if _, err := r.db.NewInsert().Model(dba).Returning("id").Exec(ctx); err != nil {
		return fmt.Errorf("failed to create address: %w", err)
	}
	a.ID = dba.ID
	return nil
}

// GetAddress returns the address only when it belongs to contactID
func (r *Repository) GetAddress(ctx context.Context, contactID, id int64) (*Address, error) {
	dba := new(database.Address)
	err := r.db.NewSelect().
		Model(dba).
		Where("id = ?", id).
		Where("contact_id = ?", contactID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("failed to get address: %w", err)
	}
	return fromDBAddress(dba), nil
}

// UpdateAddress overwrites every editable column of a
func (r *Repository) UpdateAddress(ctx context.Context, a *Address) error {
	result, err := r.db.NewUpdate().
		Model(toDBAddress(a)).
		Column("street", "city", "province", "country", "postal_code").
		WherePK().
		Where("contact_id = ?", a.ContactID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update address: %w", err)
	}
	return expectRow(result, ErrAddressNotFound)
}

// DeleteAddress removes the address from contactID
func (r *Repository) DeleteAddress(ctx context.Context, contactID, id int64) error {
	result, err := r.db.NewDelete().
		Model((*database.Address)(nil)).
		Where("id = ?", id).
		Where("contact_id = ?", contactID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete address: %w", err)
	}
	return expectRow(result, ErrAddressNotFound)
}

// ListAddresses returns every address of contactID
func (r *Repository) ListAddresses(ctx context.Context, contactID int64) ([]Address, error) {
	var rows []database.Address
	err := r.db.NewSelect().
		Model(&rows).
		Where("contact_id = ?", contactID).
		OrderExpr("id ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list addresses: %w", err)
	}

	addresses := make([]Address, 0, len(rows))
	for i := range rows {
		addresses = append(addresses, *fromDBAddress(&rows[i]))
	}
	return addresses, nil
}

func expectRow(result sql.Result, notFound error) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// containsPattern builds a LIKE pattern matching s anywhere, with wildcards in s taken literally
func containsPattern(s string) string {
	return "%" + likeEscaper.Replace(s) + "%"
}

func toDBContact(c *Contact) *database.Contact {
	return &database.Contact{
		ID:        c.ID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Phone:     c.Phone,
		UserID:    c.UserID,
	}
}

func fromDBContact(c *database.Contact) *Contact {
	return &Contact{
		ID:        c.ID,
		FirstName: c.FirstName,
		LastName:  c.LastName,
		Email:     c.Email,
		Phone:     c.Phone,
		UserID:    c.UserID,
	}
}

func toDBAddress(a *Address) *database.Address {
	return &database.Address{
		ID:         a.ID,
		Street:     a.Street,
		City:       a.City,
		Province:   a.Province,
		Country:    a.Country,
		PostalCode: a.PostalCode,
		ContactID:  a.ContactID,
	}
}

func fromDBAddress(a *database.Address) *Address {
	return &Address{
		ID:         a.ID,
		Street:     a.Street,
		City:       a.City,
		Province:   a.Province,
		Country:    a.Country,
		PostalCode: a.PostalCode,
		ContactID:  a.ContactID,
	}
}
