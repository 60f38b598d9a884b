package testutil

import (
	"crypto/rsa"
	"testing"

	"github.com/haccare/emr-service/internal/auth"
)

// TestIssuer is the issuer test tokens carry and test verifiers accept.
const TestIssuer = "https://idp.test/realms/haccare"

// CreateTestVerifier returns a verifier that trusts a freshly generated key,
// along with the private half for signing tokens.
func CreateTestVerifier(t *testing.T) (*auth.Verifier, *rsa.PrivateKey) {
	t.Helper()

	privateKey, publicKey := GenerateTestKeyPair(t)
	verifier := auth.NewVerifier(auth.Config{Issuer: TestIssuer}, auth.NewTestJWKS(publicKey))
	return verifier, privateKey
}
