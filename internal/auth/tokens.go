package auth

import (
	"crypto/rand"
	"encoding/hex"

	"github.com/redmonkez12/contacts-api/internal/user"
)

const randomTokenBytes = 40

// RandomTokenGenerator returns 40 random bytes, hex encoded
type RandomTokenGenerator struct{}

func (RandomTokenGenerator) Generate() (string, error) {
	b := make([]byte, randomTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// FixedTokenGenerator always returns the same token. Test mode only.
type FixedTokenGenerator string

func (g FixedTokenGenerator) Generate() (string, error) {
	return string(g), nil
}

// TestModeToken is the token every flow receives when test mode is enabled
const TestModeToken = "secret"

// NewTokenGenerator returns the fixed generator in test mode and the random one otherwise
func NewTokenGenerator(testMode bool) TokenGenerator {
	if testMode {
		return FixedTokenGenerator(TestModeToken)
	}
	return RandomTokenGenerator{}
}

// FirstUserAdmin makes the very first account ADMIN and every later one USER
type FirstUserAdmin struct{}

func (FirstUserAdmin) AssignRole(existingUsers int) user.Role {
	if existingUsers == 0 {
		return user.RoleAdmin
	}
	return user.RoleUser
}
