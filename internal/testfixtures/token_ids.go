package testfixtures

import (
	"fmt"
	"sync"
)

// TokenIDs hands out predictable JWT ids ("jti-0001", "jti-0002", ...) and
// remembers the latest one so tests can look up its revocation.
type TokenIDs struct {
	mu     sync.Mutex
	prefix string
	issued int
	last   string
}

// NewTokenIDs returns a generator whose ids start with prefix, "jti" when empty.
func NewTokenIDs(prefix string) *TokenIDs {
	if prefix == "" {
		prefix = "jti"
	}
	return &TokenIDs{prefix: prefix}
}

// Next returns the id for the next signed token.
func (g *TokenIDs) Next() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.issued++
	g.last = fmt.Sprintf("%s-%04d", g.prefix, g.issued)
	return g.last
}

// NextFunc returns Next for auth.Issuer.WithIDs.
func (g *TokenIDs) NextFunc() func() string {
	if g == nil {
		return nil
	}
	return g.Next
}

// Last is the id of the most recently issued token, or "" before any login.
func (g *TokenIDs) Last() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.last
}
