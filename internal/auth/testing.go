package auth

import (
	"context"
	"crypto/rsa"
)

// TestKeyID is the kid test tokens are signed with.
const TestKeyID = "test-key-id"

// ContextWithPrincipal adds a principal to the context. Used by tests in
// other packages.
func ContextWithPrincipal(ctx context.Context, principal *Principal) context.Context {
	return context.WithValue(ctx, principalKey, principal)
}

// NewTestJWKS returns a key set holding only pub under TestKeyID.
func NewTestJWKS(pub *rsa.PublicKey) *JWKS {
	return NewStaticJWKS(map[string]*rsa.PublicKey{TestKeyID: pub})
}
