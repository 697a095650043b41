package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/redmonkez12/contacts-api/internal/email"
	"github.com/redmonkez12/contacts-api/internal/logging"
	"github.com/redmonkez12/contacts-api/internal/user"
)

var fastArgon2 = Argon2Params{Time: 1, Memory: 1024, Threads: 1, KeyLen: 32, SaltLen: 16}

// memoryStore is an in-memory UserStore
type memoryStore struct {
	mu     sync.Mutex
	users  map[int64]*user.User
	nextID int64
	err    error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{users: map[int64]*user.User{}}
}

func clone(u *user.User) *user.User {
	c := *u
	return &c
}

func strPtr(s string) *string { return &s }

func (m *memoryStore) Create(_ context.Context, p user.CreateParams, assign user.RoleAssigner) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if u.Email == p.Email {
			return nil, user.ErrDuplicateEmail
		}
		if u.Username == p.Username {
			return nil, user.ErrDuplicateUsername
		}
	}
	m.nextID++
	now := time.Now()
	u := &user.User{
		ID:                     m.nextID,
		Email:                  p.Email,
		Username:               p.Username,
		PasswordHash:           p.PasswordHash,
		Role:                   assign(len(m.users)),
		EmailVerificationToken: strPtr(p.EmailVerificationToken),
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	m.users[u.ID] = u
	return clone(u), nil
}

func (m *memoryStore) GetByEmail(_ context.Context, emailAddr string) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	for _, u := range m.users {
		if u.Email == emailAddr {
			return clone(u), nil
		}
	}
	return nil, user.ErrNotFound
}

func (m *memoryStore) GetByID(_ context.Context, id int64) (*user.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	u, ok := m.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	return clone(u), nil
}

func (m *memoryStore) CountByUsername(_ context.Context, username string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return 0, m.err
	}
	n := 0
	for _, u := range m.users {
		if u.Username == username {
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) mutate(id int64, fn func(*user.User)) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	u, ok := m.users[id]
	if !ok {
		return user.ErrNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now()
	return nil
}

func (m *memoryStore) MarkEmailAsVerified(_ context.Context, id int64, at time.Time) error {
	return m.mutate(id, func(u *user.User) {
		u.IsVerified = true
		u.VerifiedTime = &at
		u.EmailVerificationToken = strPtr("")
	})
}

func (m *memoryStore) UpdateRefreshToken(_ context.Context, id int64, hash *string) error {
	return m.mutate(id, func(u *user.User) { u.RefreshTokenHash = hash })
}

func (m *memoryStore) SetPasswordResetToken(_ context.Context, id int64, hash string, expiresAt time.Time) error {
	return m.mutate(id, func(u *user.User) {
		u.PasswordResetTokenHash = &hash
		u.PasswordResetTokenExpirationTime = &expiresAt
	})
}

func (m *memoryStore) ResetPassword(_ context.Context, id int64, tokenHash, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	u, ok := m.users[id]
	if !ok || u.PasswordResetTokenHash == nil || *u.PasswordResetTokenHash != tokenHash {
		return user.ErrResetTokenConsumed
	}
	u.PasswordHash = hash
	u.PasswordResetTokenHash = nil
	u.PasswordResetTokenExpirationTime = nil
	u.RefreshTokenHash = nil
	u.UpdatedAt = time.Now()
	return nil
}

func (m *memoryStore) fail(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

func (m *memoryStore) get(t *testing.T, emailAddr string) *user.User {
	t.Helper()
	u, err := m.GetByEmail(context.Background(), emailAddr)
	if err != nil {
		t.Fatalf("user %s: %v", emailAddr, err)
	}
	return u
}

// recordingNotifier remembers every message it was asked to send
type recordingNotifier struct {
	mu           sync.Mutex
	verification []email.Message
	reset        []email.Message
	err          error
}

func (n *recordingNotifier) SendVerificationEmail(_ context.Context, msg email.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.verification = append(n.verification, msg)
	return n.err
}

func (n *recordingNotifier) SendResetPasswordEmail(_ context.Context, msg email.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reset = append(n.reset, msg)
	return n.err
}

func (n *recordingNotifier) lastReset() email.Message {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.reset) == 0 {
		return email.Message{}
	}
	return n.reset[len(n.reset)-1]
}

type failingGenerator struct{}

func (failingGenerator) Generate() (string, error) { return "", errors.New("entropy exhausted") }

func newTestIssuer() *Issuer {
	return NewIssuer(
		NewJWTService("access-secret", TokenTypeAccess),
		NewJWTService("refresh-secret", TokenTypeRefresh),
		time.Minute,
		time.Hour,
	)
}

type testEnv struct {
	svc      *Service
	store    *memoryStore
	notifier *recordingNotifier
	issuer   *Issuer
}

func newTestEnv(t *testing.T, tokens TokenGenerator) *testEnv {
	t.Helper()
	store := newMemoryStore()
	notifier := &recordingNotifier{}
	issuer := newTestIssuer()
	svc := NewService(
		store,
		issuer,
		NewArgon2Hasher(fastArgon2),
		NewBcryptHasher(bcrypt.MinCost),
		tokens,
		FirstUserAdmin{},
		notifier,
		logging.NewLogger(false),
		Config{ResetTokenTTL: 30 * time.Second, FrontendOrigin: "http://localhost:3000"},
	)
	return &testEnv{svc: svc, store: store, notifier: notifier, issuer: issuer}
}

// registerVerified registers an account and verifies its email
func (e *testEnv) registerVerified(t *testing.T, emailAddr, username, password string) {
	t.Helper()
	ctx := context.Background()
	res, err := e.svc.Register(ctx, emailAddr, username, password)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := e.svc.VerifyEmail(ctx, emailAddr, res.EmailVerificationToken); err != nil {
		t.Fatalf("verify: %v", err)
	}
}
