package rest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simaogato/investpool-backend/internal/adapter/repository/memory"
	"github.com/simaogato/investpool-backend/internal/domain"
	"github.com/simaogato/investpool-backend/internal/usecase/accountant"
)

const testToken = "secret"

type fixedOracle struct {
	value decimal.Decimal
	err   error
}

func (o fixedOracle) CurrentPoolValue(ctx context.Context) (decimal.Decimal, error) {
	return o.value, o.err
}

func newTestServer(t *testing.T, oracle domain.PriceOracle) *httptest.Server {
	t.Helper()
	cfg := accountant.DefaultConfig()
	cfg.MaxRetries = 0
	svc := accountant.NewAccountantService(memory.NewStore(), oracle, cfg, zerolog.Nop())

	srv := httptest.NewServer(New(Config{
		APIToken:   testToken,
		Log:        zerolog.Nop(),
		Accountant: svc,
	}).Handler())
	t.Cleanup(srv.Close)
	return srv
}

type result struct {
	status int
	body   map[string]any
}

func call(t *testing.T, srv *httptest.Server, method, path, body string) result {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return result{status: resp.StatusCode, body: out}
}

func data(r result) map[string]any {
	return r.body["data"].(map[string]any)
}

func TestAPI_MemberLifecycle(t *testing.T) {
	srv := newTestServer(t, fixedOracle{value: decimal.NewFromInt(1000)})

	added := call(t, srv, http.MethodPost, "/api/pool/members", `{"name":"Alice","investment":100}`)
	require.Equal(t, http.StatusCreated, added.status, added.body)
	member := data(added)["member"].(map[string]any)
	assert.Equal(t, "100", member["shares"])
	assert.Equal(t, "0", member["profitPercent"])
	aliceID := member["id"].(string)

	// Backdated buy-in at a reference value of 500 for 100 shares: price 5
	bob := call(t, srv, http.MethodPost, "/api/pool/members", `{"name":"Bob","investment":"100","referenceValue":"500"}`)
	require.Equal(t, http.StatusCreated, bob.status, bob.body)
	assert.Equal(t, "20", data(bob)["member"].(map[string]any)["shares"])
	assert.Equal(t, "500", data(bob)["member"].(map[string]any)["joinReferenceValue"])

	quote := call(t, srv, http.MethodGet, "/api/pool/quote?investment=60", "")
	require.Equal(t, http.StatusOK, quote.status)
	assert.Equal(t, "1.6667", data(quote)["issuancePrice"])

	dep := call(t, srv, http.MethodPost, "/api/pool/members/"+aliceID+"/deposit", `{"amount":"50"}`)
	require.Equal(t, http.StatusOK, dep.status, dep.body)
	assert.Equal(t, "250", data(dep)["currentValue"])

	refreshed := call(t, srv, http.MethodPost, "/api/pool/refresh", "")
	require.Equal(t, http.StatusOK, refreshed.status)
	assert.Equal(t, "1000", data(refreshed)["currentValue"])

	tooMuch := call(t, srv, http.MethodPost, "/api/pool/members/"+aliceID+"/withdraw", `{"amount":"100000"}`)
	assert.Equal(t, http.StatusUnprocessableEntity, tooMuch.status)
	assert.Equal(t, false, tooMuch.body["success"])

	removed := call(t, srv, http.MethodDelete, "/api/pool/members/"+aliceID, "")
	require.Equal(t, http.StatusOK, removed.status)
	assert.Len(t, data(removed)["members"], 1)

	pool := call(t, srv, http.MethodGet, "/api/pool", "")
	require.Equal(t, http.StatusOK, pool.status)
	assert.Equal(t, float64(1), data(pool)["memberCount"])
}

func TestAPI_Errors(t *testing.T) {
	srv := newTestServer(t, fixedOracle{err: assert.AnError})
	missing := "/api/pool/members/00000000-0000-0000-0000-00000000beef"

	tests := []struct {
		name, method, path, body string
		status                   int
	}{
		{"empty name", http.MethodPost, "/api/pool/members", `{"name":"","investment":10}`, http.StatusBadRequest},
		{"zero investment", http.MethodPost, "/api/pool/members", `{"name":"A","investment":0}`, http.StatusBadRequest},
		{"non-numeric investment", http.MethodPost, "/api/pool/members", `{"name":"A","investment":"NaN"}`, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/pool/members", `{`, http.StatusBadRequest},
		{"bad member id", http.MethodPost, "/api/pool/members/xyz/deposit", `{"amount":1}`, http.StatusBadRequest},
		{"unknown member", http.MethodDelete, missing, "", http.StatusNotFound},
		{"unknown member deposit", http.MethodPost, missing + "/deposit", `{"amount":1}`, http.StatusNotFound},
		{"oracle down", http.MethodPost, "/api/pool/refresh", "", http.StatusServiceUnavailable},
		{"quote without investment", http.MethodGet, "/api/pool/quote", "", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := call(t, srv, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, r.status, r.body)
			assert.Equal(t, false, r.body["success"])
			assert.NotEmpty(t, r.body["error"])
		})
	}
}

func TestAPI_RequiresToken(t *testing.T) {
	srv := newTestServer(t, nil)

	resp, err := http.Get(srv.URL + "/api/pool")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	health, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	health.Body.Close()
	assert.Equal(t, http.StatusOK, health.StatusCode)

	metrics, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	metrics.Body.Close()
	assert.Equal(t, http.StatusOK, metrics.StatusCode)
}

func TestAPI_AcceptsExponentAmounts(t *testing.T) {
	srv := newTestServer(t, nil)

	added := call(t, srv, http.MethodPost, "/api/pool/members", `{"name":"Big","investment":1e3}`)
	require.Equal(t, http.StatusCreated, added.status, added.body)
	member := data(added)["member"].(map[string]any)
	assert.Equal(t, "1000", member["shares"])

	dep := call(t, srv, http.MethodPost, "/api/pool/members/"+member["id"].(string)+"/deposit", `{"amount":"2.5e1"}`)
	require.Equal(t, http.StatusOK, dep.status, dep.body)
	assert.Equal(t, "1025", data(dep)["currentValue"])
}
