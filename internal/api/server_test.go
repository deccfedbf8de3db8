package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"EpochVault/internal/custody"
	"EpochVault/internal/payoff"
	"EpochVault/internal/recorder"
	"EpochVault/internal/units"
	"EpochVault/internal/valuation"
	"EpochVault/internal/vault"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fixture struct {
	now    time.Time
	base   *custody.Ledger
	book   *payoff.Book
	eng    *vault.Engine
	router *gin.Engine
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		now:  time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC),
		base: custody.NewLedger("USDC"),
		book: payoff.NewBook(),
	}
	require.NoError(t, f.base.Mint("alice", units.Whole(500)))

	rec, err := recorder.NewSQLiteRecorder(filepath.Join(t.TempDir(), "vault.db"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { rec.Close() })

	eng, err := vault.New(vault.Options{
		Self:       "vault",
		Admin:      "admin",
		Roller:     "keeper",
		Frequency:  24 * time.Hour,
		MaxDeposit: units.Whole(1000),
		Now:        func() time.Time { return f.now },
		Oracle:     f.book,
		Valuer:     &valuation.Portfolio{Holder: "vault", Base: f.base},
		Custodian:  f.base,
		Journal:    rec,
	}, nil)
	require.NoError(t, err)
	f.eng = eng

	metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("# metrics")) })
	f.router = NewServer(eng, f.book, rec, nil).Router(map[string]http.Handler{"/metrics": metrics})
	return f
}

func (f *fixture) do(t *testing.T, method, path, account string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if account != "" {
		req.Header.Set(AccountHeader, account)
	}
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	var out map[string]any
	if w.Body.Len() > 0 && w.Body.Bytes()[0] == '{' {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestHealthAndExtraRoutes(t *testing.T) {
	f := newFixture(t)
	w, body := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	w, _ = f.do(t, http.MethodGet, "/metrics", "", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "# metrics", w.Body.String())
}

func TestVaultView_Fresh(t *testing.T) {
	f := newFixture(t)
	w, body := f.do(t, http.MethodGet, "/v1/vault", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["epoch_finished"])
	assert.NotContains(t, body, "last_nav")
	ledger := body["ledger"].(map[string]any)
	assert.Equal(t, "0", ledger["total_supply"])
}

func TestDeposit(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodPost, "/v1/deposit", "", map[string]string{"amount": "100"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, "MISSING_ACCOUNT", body["code"])

	w, body = f.do(t, http.MethodPost, "/v1/deposit", "alice", map[string]string{"amount": "lots"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_AMOUNT", body["code"])

	w, _ = f.do(t, http.MethodPost, "/v1/deposit", "alice", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body = f.do(t, http.MethodPost, "/v1/deposit", "bob", map[string]string{"amount": "10"})
	assert.Equal(t, http.StatusBadRequest, w.Code, "bob holds no custody balance")

	w, body = f.do(t, http.MethodPost, "/v1/deposit", "alice", map[string]string{"amount": "100"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "100000000000000000000", body["pending_amount"])
	assert.Equal(t, "400000000000000000000", f.base.BalanceOf("alice").String())
}

func TestAdminGuardsAndPause(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodPost, "/v1/admin/pause", "alice", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "UNAUTHORIZED", body["code"])

	w, body = f.do(t, http.MethodPost, "/v1/admin/pause", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["paused"])

	w, body = f.do(t, http.MethodPost, "/v1/deposit", "alice", map[string]string{"amount": "1"})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "PAUSED", body["code"])

	w, _ = f.do(t, http.MethodPost, "/v1/admin/unpause", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, body = f.do(t, http.MethodPost, "/v1/admin/max-deposit", "admin", map[string]string{"amount": "50"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "50000000000000000000", body["max_deposit"])

	w, body = f.do(t, http.MethodPost, "/v1/deposit", "alice", map[string]string{"amount": "60"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "INVALID_AMOUNT", body["code"])
}

func TestRoles(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodPost, "/v1/admin/roles", "admin", map[string]string{"action": "promote", "role": "trader", "account": "desk"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, body := f.do(t, http.MethodPost, "/v1/admin/roles", "admin", map[string]string{"action": "grant", "role": "trader", "account": "desk"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["granted"])
	assert.True(t, f.eng.HasRole("desk", vault.RoleTrader))

	w, body = f.do(t, http.MethodPost, "/v1/admin/roles", "admin", map[string]string{"action": "revoke", "role": "trader", "account": "desk"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, body["granted"])
}

func TestReservePayoff(t *testing.T) {
	f := newFixture(t)

	w, _ := f.do(t, http.MethodPost, "/v1/payoffs", "desk", map[string]string{"amount": "5"})
	assert.Equal(t, http.StatusForbidden, w.Code)

	require.NoError(t, f.eng.Grant("admin", vault.RoleTrader, "desk"))
	w, body := f.do(t, http.MethodPost, "/v1/payoffs", "desk", map[string]string{"amount": "5"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "5000000000000000000", body["reserved"])
	assert.Equal(t, units.Whole(5).String(), f.book.Reserved(f.eng.Epoch().Current).String())
}

func TestRollRedeemAndWithdrawFlow(t *testing.T) {
	f := newFixture(t)
	w, _ := f.do(t, http.MethodPost, "/v1/deposit", "alice", map[string]string{"amount": "100"})
	require.Equal(t, http.StatusOK, w.Code)

	w, body := f.do(t, http.MethodPost, "/v1/roll", "keeper", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "EPOCH_STATE", body["code"])

	f.now = f.eng.Epoch().Current.Add(time.Second)
	w, _ = f.do(t, http.MethodPost, "/v1/roll", "alice", nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w, body = f.do(t, http.MethodPost, "/v1/roll", "keeper", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, units.One.String(), body["nav"])
	assert.Equal(t, "100000000000000000000", body["minted_shares"])

	w, body = f.do(t, http.MethodGet, "/v1/vault", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, units.One.String(), body["last_nav"])

	w, body = f.do(t, http.MethodPost, "/v1/redeem", "alice", map[string]string{"shares": "40"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "40000000000000000000", body["balance"])
	assert.Equal(t, "60000000000000000000", body["claimable_shares"])

	w, body = f.do(t, http.MethodPost, "/v1/transfer", "alice", map[string]string{"to": "bob", "shares": "10"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "30000000000000000000", body["balance"])

	w, body = f.do(t, http.MethodPost, "/v1/withdrawals", "alice", map[string]string{"shares": "30"})
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "30000000000000000000", body["shares"])

	w, body = f.do(t, http.MethodPost, "/v1/withdrawals/complete", "alice", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "EPOCH_STATE", body["code"])

	f.now = f.eng.Epoch().Current.Add(time.Second)
	w, _ = f.do(t, http.MethodPost, "/v1/roll", "keeper", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w, body = f.do(t, http.MethodPost, "/v1/withdrawals/complete", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "30000000000000000000", body["amount"])

	w, body = f.do(t, http.MethodGet, "/v1/accounts/bob", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	position := body["position"].(map[string]any)
	assert.Equal(t, "10000000000000000000", position["balance"])

	w, _ = f.do(t, http.MethodGet, "/v1/rolls?limit=5", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rolls []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rolls))
	assert.Len(t, rolls, 2)

	w, _ = f.do(t, http.MethodGet, "/v1/accounts/alice/history", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var events []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &events))
	assert.Len(t, events, 5)

	w, _ = f.do(t, http.MethodGet, "/v1/rolls?limit=0", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRescueFlow(t *testing.T) {
	f := newFixture(t)
	w, _ := f.do(t, http.MethodPost, "/v1/deposit", "alice", map[string]string{"amount": "100"})
	require.Equal(t, http.StatusOK, w.Code)

	w, body := f.do(t, http.MethodPost, "/v1/rescue/deposit", "alice", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "VAULT_STATE", body["code"])

	w, _ = f.do(t, http.MethodPost, "/v1/admin/kill", "admin", nil)
	require.Equal(t, http.StatusOK, w.Code)
	f.now = f.eng.Epoch().Current.Add(time.Second)
	w, body = f.do(t, http.MethodPost, "/v1/roll", "keeper", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, body["dead"])

	w, body = f.do(t, http.MethodPost, "/v1/rescue/deposit", "alice", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "100000000000000000000", body["amount"])
	assert.Equal(t, units.Whole(500).String(), f.base.BalanceOf("alice").String())
}
