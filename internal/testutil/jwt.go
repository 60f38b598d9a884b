package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/haccare/emr-service/internal/auth"
)

// GenerateTestKeyPair generates an RSA key pair for signing test tokens.
func GenerateTestKeyPair(t *testing.T) (*rsa.PrivateKey, *rsa.PublicKey) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate RSA key: %v", err)
	}
	return privateKey, &privateKey.PublicKey
}

// GenerateTestJWT signs a token for userID carrying roles in realm_access.
// tenantID is added as the tenant_id claim when non-empty.
func GenerateTestJWT(t *testing.T, privateKey *rsa.PrivateKey, userID, tenantID string, roles []string) string {
	t.Helper()

	rs := make([]interface{}, len(roles))
	for i, r := range roles {
		rs[i] = r
	}

	claims := jwt.MapClaims{
		"sub": userID,
		"iss": TestIssuer,
		"exp": time.Now().Add(time.Hour).Unix(),
		"iat": time.Now().Unix(),
		"realm_access": map[string]interface{}{
			"roles": rs,
		},
	}
	if tenantID != "" {
		claims["tenant_id"] = tenantID
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = auth.TestKeyID

	signed, err := token.SignedString(privateKey)
	if err != nil {
		t.Fatalf("Failed to sign token: %v", err)
	}
	return signed
}

// SuperAdminUserID is the subject of tokens from GenerateSuperAdminToken.
const SuperAdminUserID = "00000000-0000-4000-8000-000000000001"

func GenerateSuperAdminToken(t *testing.T, privateKey *rsa.PrivateKey) string {
	t.Helper()
	return GenerateTestJWT(t, privateKey, SuperAdminUserID, "", []string{auth.RoleSuperAdmin})
}

func GenerateNurseToken(t *testing.T, privateKey *rsa.PrivateKey, userID, tenantID string) string {
	t.Helper()
	return GenerateTestJWT(t, privateKey, userID, tenantID, []string{auth.RoleNurse})
}

func GenerateInstructorToken(t *testing.T, privateKey *rsa.PrivateKey, userID, tenantID string) string {
	t.Helper()
	return GenerateTestJWT(t, privateKey, userID, tenantID, []string{auth.RoleInstructor})
}
