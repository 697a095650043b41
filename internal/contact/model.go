package contact

import "errors"

var (
	ErrNotFound        = errors.New("contact not found")
	ErrAddressNotFound = errors.New("address not found")
)

const (
	DefaultPage     = 1
	DefaultPageSize = 10
	MaxPageSize     = 100
	// MaxPage keeps the row offset well inside int64
	MaxPage = 1_000_000
)

type Contact struct {
	ID        int64   `json:"id"`
	FirstName string  `json:"firstName"`
	LastName  *string `json:"lastName"`
	Email     *string `json:"email"`
	Phone     *string `json:"phone"`
	UserID    int64   `json:"-"`
}

type Address struct {
	ID         int64   `json:"id"`
	Street     *string `json:"street"`
	City       *string `json:"city"`
	Province   *string `json:"province"`
	Country    string  `json:"country"`
	PostalCode *string `json:"postalCode"`
	ContactID  int64   `json:"-"`
}

// ContactPatch lists the fields to change; nil fields are left alone
type ContactPatch struct {
	FirstName *string
	LastName  *string
	Email     *string
	Phone     *string
}

func (p ContactPatch) apply(c *Contact) {
	if p.FirstName != nil {
		c.FirstName = *p.FirstName
	}
	if p.LastName != nil {
		c.LastName = p.LastName
	}
	if p.Email != nil {
		c.Email = p.Email
	}
	if p.Phone != nil {
		c.Phone = p.Phone
	}
}

// AddressPatch lists the fields to change; nil fields are left alone
type AddressPatch struct {
	Street     *string
	City       *string
	Province   *string
	Country    *string
	PostalCode *string
}

func (p AddressPatch) apply(a *Address) {
	if p.Street != nil {
		a.Street = p.Street
	}
	if p.City != nil {
		a.City = p.City
	}
	if p.Province != nil {
		a.Province = p.Province
	}
	if p.Country != nil {
		a.Country = *p.Country
	}
	if p.PostalCode != nil {
		a.PostalCode = p.PostalCode
	}
}

// SearchParams filters a user's contacts. Empty filters match everything.
type SearchParams struct {
	// Name matches first or last name
	Name  string
	Email string
	Phone string
	Page  int
	Size  int
}

func (p *SearchParams) normalize() {
	if p.Page < 1 {
		p.Page = DefaultPage
	}
	if p.Page > MaxPage {
		p.Page = MaxPage
	}
	if p.Size < 1 {
		p.Size = DefaultPageSize
	}
	if p.Size > MaxPageSize {
		p.Size = MaxPageSize
	}
}

// SearchResult is one page of contacts
type SearchResult struct {
	Contacts  []Contact
	Page      int
	Size      int
	TotalPage int
}
