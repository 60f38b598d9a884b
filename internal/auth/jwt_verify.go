package auth

import (
	"crypto/rsa"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

// Principal holds identity extracted from a validated token.
type Principal struct {
	UserID   string
	Email    string
	Roles    []string
	TenantID string
	Claims   jwt.MapClaims
}

// HasRole reports whether the principal carries role, ignoring case.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// DisplayName is the human-readable name carried by the token, falling back
// to the preferred username and then the email.
func (p *Principal) DisplayName() string {
	if p == nil {
		return ""
	}
	if name, _ := p.Claims["name"].(string); name != "" {
		return name
	}
	given, _ := p.Claims["given_name"].(string)
	family, _ := p.Claims["family_name"].(string)
	if full := strings.TrimSpace(given + " " + family); full != "" {
		return full
	}
	if username, _ := p.Claims["preferred_username"].(string); username != "" {
		return username
	}
	return p.Email
}

var (
	ErrNoToken         = errors.New("no token provided")
	ErrInvalidToken    = errors.New("invalid token")
	ErrInvalidIssuer   = errors.New("invalid issuer")
	ErrInvalidAudience = errors.New("invalid audience")
	ErrMissingSub      = errors.New("missing sub claim")
)

// KeySource resolves a signing key by kid.
type KeySource interface {
	Get(kid string) (*rsa.PublicKey, error)
}

type Verifier struct {
	cfg  Config
	keys KeySource
}

func NewVerifier(cfg Config, keys KeySource) *Verifier {
	return &Verifier{cfg: cfg, keys: keys}
}

// ParseAndVerifyToken checks signature, issuer, audience and expiry and
// returns the Principal carried by the token.
func (v *Verifier) ParseAndVerifyToken(tokenString string) (*Principal, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrNoToken
	}

	parsed, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		// RS256 family only
		if _, ok := t.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, ErrInvalidToken
		}
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, ErrInvalidToken
		}
		return v.keys.Get(kid)
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}

	if iss, _ := claims["iss"].(string); iss != v.cfg.Issuer {
		return nil, ErrInvalidIssuer
	}
	if v.cfg.Audience != "" && !claims.VerifyAudience(v.cfg.Audience, true) {
		return nil, ErrInvalidAudience
	}
	if !claims.VerifyExpiresAt(jwt.TimeFunc().Unix(), true) {
		return nil, ErrInvalidToken
	}

	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil, ErrMissingSub
	}

	pr := &Principal{
		UserID: sub,
		Roles:  extractRoles(claims),
		Claims: claims,
	}
	pr.Email, _ = claims["email"].(string)
	pr.TenantID, _ = claims["tenant_id"].(string)

	return pr, nil
}

// extractRoles merges realm_access.roles and a top-level roles claim,
// upper-cased and de-duplicated.
func extractRoles(claims jwt.MapClaims) []string {
	var raw []interface{}
	if ra, ok := claims["realm_access"].(map[string]interface{}); ok {
		if rr, ok := ra["roles"].([]interface{}); ok {
			raw = append(raw, rr...)
		}
	}
	if rr, ok := claims["roles"].([]interface{}); ok {
		raw = append(raw, rr...)
	}

	seen := map[string]bool{}
	var roles []string
	for _, r := range raw {
		s, ok := r.(string)
		if !ok || s == "" {
			continue
		}
		s = strings.ToUpper(s)
		if seen[s] {
			continue
		}
		seen[s] = true
		roles = append(roles, s)
	}
	return roles
}
