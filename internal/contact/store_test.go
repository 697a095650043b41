package contact

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// memoryStore is an in-memory Store for service and handler tests
type memoryStore struct {
	mu        sync.Mutex
	nextID    int64
	contacts  map[int64]Contact
	addresses map[int64]Address
	err       error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		contacts:  make(map[int64]Contact),
		addresses: make(map[int64]Address),
	}
}

func (m *memoryStore) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *memoryStore) id() int64 {
	m.nextID++
	return m.nextID
}

func (m *memoryStore) CreateContact(_ context.Context, c *Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	c.ID = m.id()
	m.contacts[c.ID] = *c
	return nil
}

func (m *memoryStore) GetContact(_ context.Context, userID, id int64) (*Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	c, ok := m.contacts[id]
	if !ok || c.UserID != userID {
		return nil, ErrNotFound
	}
	return &c, nil
}

func (m *memoryStore) UpdateContact(_ context.Context, c *Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.contacts[c.ID]
	if !ok || cur.UserID != c.UserID {
		return ErrNotFound
	}
	m.contacts[c.ID] = *c
	return nil
}

func (m *memoryStore) DeleteContact(_ context.Context, userID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contacts[id]
	if !ok || c.UserID != userID {
		return ErrNotFound
	}
	delete(m.contacts, id)
	for aid, a := range m.addresses {
		if a.ContactID == id {
			delete(m.addresses, aid)
		}
	}
	return nil
}

func (m *memoryStore) SearchContacts(_ context.Context, userID int64, p SearchParams) ([]Contact, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, 0, m.err
	}

	var matched []Contact
	for _, c := range m.contacts {
		if c.UserID != userID {
			continue
		}
		if p.Name != "" && !containsFold(&c.FirstName, p.Name) && !containsFold(c.LastName, p.Name) {
			continue
		}
		if p.Email != "" && !containsFold(c.Email, p.Email) {
			continue
		}
		if p.Phone != "" && (c.Phone == nil || !strings.Contains(*c.Phone, p.Phone)) {
			continue
		}
		matched = append(matched, c)
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	start := min((p.Page-1)*p.Size, len(matched))
	end := min(start+p.Size, len(matched))
	return matched[start:end], len(matched), nil
}

func (m *memoryStore) CreateAddress(_ context.Context, a *Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a.ID = m.id()
	m.addresses[a.ID] = *a
	return nil
}

func (m *memoryStore) GetAddress(_ context.Context, contactID, id int64) (*Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.addresses[id]
	if !ok || a.ContactID != contactID {
		return nil, ErrAddressNotFound
	}
	return &a, nil
}

func (m *memoryStore) UpdateAddress(_ context.Context, a *Address) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cur, ok := m.addresses[a.ID]
	if !ok || cur.ContactID != a.ContactID {
		return ErrAddressNotFound
	}
	m.addresses[a.ID] = *a
	return nil
}

func (m *memoryStore) DeleteAddress(_ context.Context, contactID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.addresses[id]
	if !ok || a.ContactID != contactID {
		return ErrAddressNotFound
	}
	delete(m.addresses, id)
	return nil
}

func (m *memoryStore) ListAddresses(_ context.Context, contactID int64) ([]Address, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := []Address{}
	for _, a := range m.addresses {
		if a.ContactID == contactID {
			list = append(list, a)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func containsFold(field *string, sub string) bool {
	return field != nil && strings.Contains(strings.ToLower(*field), strings.ToLower(sub))
}
