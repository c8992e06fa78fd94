package transport

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/big"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/formsmith/formsmith/internal/config"
	"github.com/formsmith/formsmith/model"
)

// JWKSClient caches the signing keys published at the identity provider's
// JWKS endpoint, keyed by kid. A stale cache is refreshed on demand; when
// the endpoint is unreachable the last good key set keeps serving so a
// provider outage does not invalidate every in-flight token.
type JWKSClient struct {
	mu        sync.RWMutex
	byKID     map[string]crypto.PublicKey
	fetchedAt time.Time

	url        string
	ttl        time.Duration
	minRefresh time.Duration
	client     *http.Client
}

// NewJWKSClient creates a client for the given JWKS URL. Keys are reused
// for ttl before a refetch is attempted.
func NewJWKSClient(url string, ttl time.Duration) *JWKSClient {
	return &JWKSClient{
		byKID:      make(map[string]crypto.PublicKey),
		url:        url,
		ttl:        ttl,
		minRefresh: 5 * time.Minute,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// GetKey resolves a kid to its public key, refreshing the cached set when
// it has expired or the kid is unknown.
func (c *JWKSClient) GetKey(kid string) (crypto.PublicKey, error) {
	key, ok, fresh := c.lookup(kid)
	if ok && fresh {
		return key, nil
	}

	if err := c.refresh(); err != nil {
		if key, ok, _ = c.lookup(kid); ok {
			slog.Warn("jwks refresh failed, serving cached key", "error", err)
			return key, nil
		}
		return nil, fmt.Errorf("jwks fetch: %w", err)
	}

	if key, ok, _ = c.lookup(kid); ok {
		return key, nil
	}
	return nil, fmt.Errorf("no signing key %q in jwks", kid)
}

func (c *JWKSClient) lookup(kid string) (crypto.PublicKey, bool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	key, ok := c.byKID[kid]
	return key, ok, time.Since(c.fetchedAt) <= c.ttl
}

func (c *JWKSClient) refresh() error {
	c.mu.RLock()
	throttled := time.Since(c.fetchedAt) < c.minRefresh && len(c.byKID) > 0
	c.mu.RUnlock()
	if throttled {
		return nil
	}

	body, err := c.fetch()
	if err != nil {
		return err
	}

	keys, err := parseJWKS(body)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.byKID = keys
	c.fetchedAt = time.Now()
	c.mu.Unlock()
	return nil
}

func (c *JWKSClient) fetch() ([]byte, error) {
	resp, err := c.client.Get(c.url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("jwks endpoint returned %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 1<<20))
}

// parseJWKS extracts the usable RSA and EC keys from a JWKS document.
// Entries without a kid or of an unsupported type are skipped rather than
// failing the whole set.
func parseJWKS(body []byte) (map[string]crypto.PublicKey, error) {
	var doc struct {
		Keys []map[string]any `json:"keys"`
	}
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("jwks parse: %w", err)
	}

	keys := make(map[string]crypto.PublicKey, len(doc.Keys))
	for _, jwk := range doc.Keys {
		kid, _ := jwk["kid"].(string)
		if kid == "" {
			continue
		}
		key, err := parseJWK(jwk)
		if err != nil {
			slog.Warn("skipping unparseable jwk", "kid", kid, "error", err)
			continue
		}
		if key != nil {
			keys[kid] = key
		}
	}
	return keys, nil
}

func parseJWK(jwk map[string]any) (crypto.PublicKey, error) {
	switch kty, _ := jwk["kty"].(string); kty {
	case "RSA":
		return parseRSAKey(jwk)
	case "EC":
		return parseECKey(jwk)
	default:
		return nil, nil
	}
}

func parseRSAKey(jwk map[string]any) (*rsa.PublicKey, error) {
	n, err := b64Field(jwk, "n")
	if err != nil {
		return nil, err
	}
	e, err := b64Field(jwk, "e")
	if err != nil {
		return nil, err
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(n),
		E: int(new(big.Int).SetBytes(e).Int64()),
	}, nil
}

func parseECKey(jwk map[string]any) (*ecdsa.PublicKey, error) {
	var curve elliptic.Curve
	switch crv, _ := jwk["crv"].(string); crv {
	case "P-256":
		curve = elliptic.P256()
	case "P-384":
		curve = elliptic.P384()
	case "P-521":
		curve = elliptic.P521()
	default:
		return nil, fmt.Errorf("unsupported curve %q", crv)
	}
	x, err := b64Field(jwk, "x")
	if err != nil {
		return nil, err
	}
	y, err := b64Field(jwk, "y")
	if err != nil {
		return nil, err
	}
	return &ecdsa.PublicKey{
		Curve: curve,
		X:     new(big.Int).SetBytes(x),
		Y:     new(big.Int).SetBytes(y),
	}, nil
}

func b64Field(jwk map[string]any, name string) ([]byte, error) {
	s, _ := jwk[name].(string)
	if s == "" {
		return nil, fmt.Errorf("jwk missing %q", name)
	}
	b, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("jwk field %q: %w", name, err)
	}
	return b, nil
}

// JWTAuthenticator verifies the bearer token on each request against the
// identity config and stores the verified claims for the downstream
// RequestContext middleware. Builder identity (subject, email, roles,
// region) is read from those claims via the configured claim paths; see
// identityFromClaims.
func JWTAuthenticator(cfg config.IdentityConfig, jwks *JWKSClient) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, err := bearerToken(r)
			if err != nil {
				WriteError(w, err)
				return
			}

			token, err := jwt.Parse(raw, jwks.keyFor,
				jwt.WithValidMethods(cfg.Algorithms),
				jwt.WithIssuer(cfg.Issuer),
				jwt.WithAudience(cfg.Audience),
				jwt.WithLeeway(30*time.Second),
				jwt.WithExpirationRequired(),
			)
			if err != nil {
				WriteError(w, model.NewUnauthorizedError(authFailureMessage(err)))
				return
			}

			claims, ok := token.Claims.(jwt.MapClaims)
			if !ok || !token.Valid {
				WriteError(w, model.NewUnauthorizedError("Invalid token"))
				return
			}

			ctx := WithClaims(r.Context(), map[string]any(claims))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(r *http.Request) (string, error) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", model.NewUnauthorizedError("Missing authorization header")
	}
	if !strings.HasPrefix(auth, "Bearer ") {
		return "", model.NewUnauthorizedError("Invalid authorization header format")
	}
	return auth[len("Bearer "):], nil
}

func (c *JWKSClient) keyFor(token *jwt.Token) (any, error) {
	kid, _ := token.Header["kid"].(string)
	if kid == "" {
		return nil, errors.New("token header missing kid")
	}
	return c.GetKey(kid)
}

// authFailureMessage maps a verification error onto the client-facing
// reason without leaking key or parser internals.
func authFailureMessage(err error) string {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return "Token expired"
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return "Invalid token issuer"
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return "Invalid token audience"
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return "Token signature rejected"
	case errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return "Token missing required claims"
	case errors.Is(err, jwt.ErrTokenUnverifiable):
		return "Token could not be verified"
	default:
		return "Invalid token"
	}
}

// --- identity extraction ---

// identityFromClaims fills the caller identity fields of a RequestContext
// from verified claims. Paths default to the flat sub/email/roles/region_id
// claims; deployments whose provider nests them (e.g. Keycloak's
// realm_access.roles) override via identity.claim_paths with dotted paths.
func identityFromClaims(claims map[string]any, claimPaths map[string]string) model.RequestContext {
	path := func(field, fallback string) string {
		if p, ok := claimPaths[field]; ok && p != "" {
			return p
		}
		return fallback
	}
	return model.RequestContext{
		SubjectID: claimString(claims, path("subject_id", "sub")),
		Email:     claimString(claims, path("email", "email")),
		Roles:     claimStringSlice(claims, path("roles", "roles")),
		RegionID:  claimInt(claims, path("region_id", "region_id")),
		Claims:    claims,
	}
}

// claimLookup resolves a dotted claim path against the claims map.
func claimLookup(claims map[string]any, path string) any {
	if claims == nil || path == "" {
		return nil
	}
	cur := any(claims)
	for _, p := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		if cur, ok = m[p]; !ok {
			return nil
		}
	}
	return cur
}

func claimString(claims map[string]any, path string) string {
	v, _ := claimLookup(claims, path).(string)
	return v
}

// claimInt tolerates the number encodings providers actually emit: JSON
// numbers arrive as float64, some IdPs stringify them.
func claimInt(claims map[string]any, path string) int {
	switch v := claimLookup(claims, path).(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}

func claimStringSlice(claims map[string]any, path string) []string {
	raw, ok := claimLookup(claims, path).([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
