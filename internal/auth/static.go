// Package auth provides the credential verifiers used at login.
package auth

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/guardvision/guardvision/internal/monitor/core"
)

// dummyHash is compared against for unknown identifiers so lookups cost the same as misses.
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("guardvision"), bcrypt.MinCost)

// StaticVerifier checks credentials against configured bcrypt hashes.
type StaticVerifier struct {
	users map[string][]byte
}

var _ core.Verifier = (*StaticVerifier)(nil)

// NewStaticVerifier parses "identifier:bcrypt-hash" entries.
func NewStaticVerifier(entries []string) (*StaticVerifier, error) {
	users := make(map[string][]byte, len(entries))
	for _, e := range entries {
		id, hash, ok := strings.Cut(e, ":")
		if !ok || id == "" || hash == "" {
			return nil, fmt.Errorf("invalid user entry %q", e)
		}
		if _, err := bcrypt.Cost([]byte(hash)); err != nil {
			return nil, fmt.Errorf("user %q: %w", id, err)
		}
		users[id] = []byte(hash)
	}
	return &StaticVerifier{users: users}, nil
}

func (v *StaticVerifier) Verify(ctx context.Context, identifier, secret string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	hash, ok := v.users[identifier]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(secret))
		return fmt.Errorf("%w: unknown operator", core.ErrAuthenticationRejected)
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(secret)); err != nil {
		return fmt.Errorf("%w: %v", core.ErrAuthenticationRejected, err)
	}
	return nil
}
