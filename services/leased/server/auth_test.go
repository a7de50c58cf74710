package server

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"

	"leasechain/crypto"
	"leasechain/native/dex"
	"leasechain/native/finance"
	"leasechain/native/lease"
	"leasechain/services/leased/journal"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func mint(t *testing.T, secret string, subject crypto.Address, ttl time.Duration, roles ...string) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub":   subject.String(),
		"iss":   "leasechain",
		"exp":   time.Now().Add(ttl).Unix(),
		"roles": roles,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func guardedAPI(t *testing.T) *testAPI {
	t.Helper()
	auth := NewAuthenticator(AuthConfig{Enabled: true, Secret: testSecret, Issuer: "leasechain"}, nil)
	return newGuardedAPI(t, RateLimit{}, auth)
}

func TestAuthenticateClaims(t *testing.T) {
	auth := NewAuthenticator(AuthConfig{Enabled: true, Secret: testSecret, Issuer: "leasechain"}, nil)

	principal, err := auth.Authenticate(mint(t, testSecret, customer, time.Minute, RoleRelayer))
	require.NoError(t, err)
	require.Equal(t, customer, principal.Subject)
	require.True(t, principal.HasRole(RoleRelayer))
	require.False(t, principal.HasRole(RoleAdmin))

	_, err = auth.Authenticate(mint(t, "another-secret-another-secret-00", customer, time.Minute))
	require.Error(t, err)
	_, err = auth.Authenticate(mint(t, testSecret, customer, -time.Hour))
	require.Error(t, err)

	other := NewAuthenticator(AuthConfig{Enabled: true, Secret: testSecret, Issuer: "elsewhere"}, nil)
	_, err = other.Authenticate(mint(t, testSecret, customer, time.Minute))
	require.Error(t, err)

	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": customer.String(), "iss": "leasechain", "exp": time.Now().Add(time.Minute).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = auth.Authenticate(unsigned)
	require.Error(t, err)

	require.Equal(t, []string{"admin", "relayer"}, extractRoles("admin relayer"))
	require.Equal(t, "abc", extractBearer("bearer abc"))
	require.Empty(t, extractBearer("Basic abc"))
}

func TestHostRoutesRequireAdmin(t *testing.T) {
	api := guardedAPI(t)
	credit := map[string]interface{}{
		"address": customer.String(),
		"coins":   []interface{}{coin("USDC", "400")},
	}
	var failure map[string]string
	require.Equal(t, http.StatusUnauthorized, api.do(http.MethodPost, "/v1/host/credits", credit, &failure))
	require.Equal(t, errMissingToken.Error(), failure["error"])
	require.Equal(t, http.StatusUnauthorized, api.doAs("garbage", http.MethodPost, "/v1/host/credits", credit, nil))

	customerToken := mint(t, testSecret, customer, time.Minute)
	require.Equal(t, http.StatusForbidden, api.doAs(customerToken, http.MethodPost, "/v1/host/credits", credit, nil))
	require.Equal(t, http.StatusForbidden, api.doAs(customerToken, http.MethodPut, "/v1/admin/pauses/"+lease.PauseModule, map[string]bool{"paused": true}, nil))
	require.False(t, api.pauses.IsPaused(lease.PauseModule))

	adminToken := mint(t, testSecret, addr(0x09), time.Minute, RoleAdmin)
	require.Equal(t, http.StatusNoContent, api.doAs(adminToken, http.MethodPost, "/v1/host/credits", credit, nil))

	// reads stay public
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/v1/pool", nil, nil))
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/v1/leases", nil, nil))
}

func TestSenderComesFromToken(t *testing.T) {
	api := guardedAPI(t)
	admin := mint(t, testSecret, addr(0x09), time.Minute, RoleAdmin)
	require.Equal(t, http.StatusNoContent, api.doAs(admin, http.MethodPost, "/v1/host/credits", map[string]interface{}{
		"address": customer.String(),
		"coins":   []interface{}{coin("USDC", "400")},
	}, nil))
	require.Equal(t, http.StatusNoContent, api.doAs(admin, http.MethodPost, "/v1/host/prices", map[string]interface{}{
		"amount": coin("ATOM", "1"),
		"quote":  coin("USDC", "1"),
	}, nil))

	customerToken := mint(t, testSecret, customer, time.Minute)
	strangerToken := mint(t, testSecret, stranger, time.Minute)
	open := map[string]interface{}{"currency": "ATOM", "downpayment": coin("USDC", "400")}

	var failure map[string]string
	open["customer"] = customer.String()
	require.Equal(t, http.StatusForbidden, api.doAs(strangerToken, http.MethodPost, "/v1/leases", open, &failure))
	require.Contains(t, failure["error"], errSenderMismatch.Error())

	delete(open, "customer")
	var created struct {
		Address string `json:"address"`
	}
	require.Equal(t, http.StatusCreated, api.doAs(customerToken, http.MethodPost, "/v1/leases", open, &created))
	var view lease.StateResponse
	require.Equal(t, http.StatusOK, api.do(http.MethodGet, "/v1/leases/"+created.Address, nil, &view))
	require.Equal(t, customer.String(), view.Customer)

	execute := "/v1/leases/" + created.Address + "/execute"
	spoofed := map[string]interface{}{
		"sender":  customer.String(),
		"message": map[string]string{"type": "heal"},
	}
	require.Equal(t, http.StatusUnauthorized, api.do(http.MethodPost, execute, spoofed, nil))
	require.Equal(t, http.StatusForbidden, api.doAs(strangerToken, http.MethodPost, execute, spoofed, nil))
	require.Equal(t, http.StatusOK, api.doAs(customerToken, http.MethodPost, execute, map[string]interface{}{
		"message": map[string]string{"type": "heal"},
	}, nil))
}

func TestSudoRequiresRelayer(t *testing.T) {
	api := guardedAPI(t)
	admin := mint(t, testSecret, addr(0x09), time.Minute, RoleAdmin)
	require.NoError(t, api.host.Credit(customer, finance.NewCoin("USDC", 400)))
	require.NoError(t, api.host.SetPrice(finance.Price{Amount: finance.NewCoin("ATOM", 1), Quote: finance.NewCoin("USDC", 1)}))
	customerToken := mint(t, testSecret, customer, time.Minute)
	var created struct {
		Address string `json:"address"`
	}
	require.Equal(t, http.StatusCreated, api.doAs(customerToken, http.MethodPost, "/v1/leases", map[string]interface{}{
		"currency": "ATOM", "downpayment": coin("USDC", "400"),
	}, &created))

	relayer := mint(t, testSecret, addr(0x0a), time.Minute, RoleRelayer)
	var outbox struct {
		Messages []journal.Outbound `json:"messages"`
	}
	require.Equal(t, http.StatusForbidden, api.doAs(admin, http.MethodGet, "/v1/outbox?status=pending", nil, nil))
	require.Equal(t, http.StatusOK, api.doAs(relayer, http.MethodGet, "/v1/outbox?status=pending", nil, &outbox))
	require.Len(t, outbox.Messages, 1)
	var register dex.RegisterIca
	require.NoError(t, json.Unmarshal(outbox.Messages[0].Payload, &register))

	ack := map[string]string{"type": "open_ack", "correlation": register.Correlation, "host": "dex1host"}
	sudo := "/v1/leases/" + created.Address + "/sudo"
	require.Equal(t, http.StatusUnauthorized, api.do(http.MethodPost, sudo, ack, nil))
	require.Equal(t, http.StatusForbidden, api.doAs(customerToken, http.MethodPost, sudo, ack, nil))
	var result map[string]string
	require.Equal(t, http.StatusOK, api.doAs(relayer, http.MethodPost, sudo, ack, &result))
	require.Equal(t, lease.KindTransferOut.String(), result["state"])
}
