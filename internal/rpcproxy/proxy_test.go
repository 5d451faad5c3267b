package rpcproxy_test

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/radieske/battle-memecoin-club/internal/chain/rpcpool"
	"github.com/radieske/battle-memecoin-club/internal/chain/rpcpool/rpctest"
	"github.com/radieske/battle-memecoin-club/internal/rpcproxy"
)

type upstream struct {
	*httptest.Server

	mu        sync.Mutex
	calls     int
	lastQuery string
	lastBody  string
	lastReqID string
}

func newUpstream(t *testing.T) *upstream {
	u := &upstream{}
	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		u.mu.Lock()
		u.calls++
		u.lastQuery = r.URL.RawQuery
		u.lastBody = string(b)
		u.lastReqID = r.Header.Get("X-Request-Id")
		u.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":5}}`))
	}))
	t.Cleanup(u.Close)
	return u
}

func (u *upstream) count() int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.calls
}

func newProxy(t *testing.T, opts rpcproxy.Options) *httptest.Server {
	p, err := rpcproxy.New(opts)
	require.NoError(t, err)
	srv := httptest.NewServer(p.Router())
	t.Cleanup(srv.Close)
	return srv
}

func post(t *testing.T, url, body string, header ...string) *http.Response {
	req, err := http.NewRequest(http.MethodPost, url+"/api/rpc", strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func decodeError(t *testing.T, res *http.Response) (int, string) {
	var out struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return out.Error.Code, out.Error.Message
}

func TestForward_AppendsKeyAndRelaysBody(t *testing.T) {
	up := newUpstream(t)
	srv := newProxy(t, rpcproxy.Options{UpstreamURL: up.URL + "/?foo=bar", APIKey: "secret+key"})

	body := `{"jsonrpc":"2.0","id":1,"method":"getBalance","params":["11111111111111111111111111111111"]}`
	res := post(t, srv.URL, body, "X-Request-Id", "req-123")

	require.Equal(t, http.StatusOK, res.StatusCode)
	got, _ := io.ReadAll(res.Body)
	assert.Contains(t, string(got), `"value":5`)
	assert.Equal(t, "req-123", res.Header.Get("X-Request-Id"))

	up.mu.Lock()
	defer up.mu.Unlock()
	assert.Equal(t, body, up.lastBody)
	assert.Contains(t, up.lastQuery, "api-key=secret%2Bkey")
	assert.Contains(t, up.lastQuery, "foo=bar")
	assert.Equal(t, "req-123", up.lastReqID)
}

func TestForward_GeneratesRequestID(t *testing.T) {
	up := newUpstream(t)
	srv := newProxy(t, rpcproxy.Options{UpstreamURL: up.URL})

	res := post(t, srv.URL, `{"jsonrpc":"2.0","id":1,"method":"getHealth"}`)
	assert.NotEmpty(t, res.Header.Get("X-Request-Id"))
}

func TestForward_BlocksMethodsOutsideAllowList(t *testing.T) {
	up := newUpstream(t)
	srv := newProxy(t, rpcproxy.Options{UpstreamURL: up.URL})

	res := post(t, srv.URL, `{"jsonrpc":"2.0","id":7,"method":"requestAirdrop","params":[]}`)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	code, msg := decodeError(t, res)
	assert.Equal(t, -32601, code)
	assert.Contains(t, msg, "requestAirdrop")
	assert.Zero(t, up.count())
}

func TestForward_Batch(t *testing.T) {
	up := newUpstream(t)
	srv := newProxy(t, rpcproxy.Options{UpstreamURL: up.URL, MaxBatch: 2})

	ok := `[{"jsonrpc":"2.0","id":1,"method":"getBalance"},{"jsonrpc":"2.0","id":2,"method":"getLatestBlockhash"}]`
	assert.Equal(t, http.StatusOK, post(t, srv.URL, ok).StatusCode)

	mixed := `[{"jsonrpc":"2.0","id":1,"method":"getBalance"},{"jsonrpc":"2.0","id":2,"method":"getProgramAccounts"}]`
	assert.Equal(t, http.StatusForbidden, post(t, srv.URL, mixed).StatusCode)

	tooMany := `[{"method":"getBalance"},{"method":"getBalance"},{"method":"getBalance"}]`
	assert.Equal(t, http.StatusBadRequest, post(t, srv.URL, tooMany).StatusCode)

	assert.Equal(t, http.StatusBadRequest, post(t, srv.URL, `[]`).StatusCode)
	assert.Equal(t, 1, up.count())
}

func TestForward_RejectsBadBodies(t *testing.T) {
	up := newUpstream(t)
	srv := newProxy(t, rpcproxy.Options{UpstreamURL: up.URL, MaxBodyBytes: 64})

	res := post(t, srv.URL, `{not json`)
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
	code, _ := decodeError(t, res)
	assert.Equal(t, -32700, code)

	big := `{"jsonrpc":"2.0","id":1,"method":"getBalance","params":["` + strings.Repeat("x", 128) + `"]}`
	assert.Equal(t, http.StatusRequestEntityTooLarge, post(t, srv.URL, big).StatusCode)
	assert.Zero(t, up.count())
}

func TestForward_UpstreamDown(t *testing.T) {
	up := newUpstream(t)
	url := up.URL
	up.Close()
	srv := newProxy(t, rpcproxy.Options{UpstreamURL: url})

	res := post(t, srv.URL, `{"jsonrpc":"2.0","id":1,"method":"getBalance"}`)
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	code, _ := decodeError(t, res)
	assert.Equal(t, -32603, code)
}

func TestCORS_Preflight(t *testing.T) {
	up := newUpstream(t)
	srv := newProxy(t, rpcproxy.Options{UpstreamURL: up.URL, AllowOrigin: "https://battle.example"})

	req, err := http.NewRequest(http.MethodOptions, srv.URL+"/api/rpc", nil)
	require.NoError(t, err)
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res.Body.Close()

	assert.Equal(t, http.StatusNoContent, res.StatusCode)
	assert.Equal(t, "https://battle.example", res.Header.Get("Access-Control-Allow-Origin"))
	assert.Zero(t, up.count())
}

func TestNew_InvalidUpstream(t *testing.T) {
	_, err := rpcproxy.New(rpcproxy.Options{UpstreamURL: "not a url"})
	assert.Error(t, err)
}

func TestPoolThroughProxy(t *testing.T) {
	node := rpctest.NewServer(t)
	node.Result("getBalance", rpctest.BalanceResult(2_500_000_000))
	srv := newProxy(t, rpcproxy.Options{UpstreamURL: node.URL})

	pool, err := rpcpool.New([]rpcpool.Endpoint{{Label: "backend-proxy", URL: srv.URL + "/api/rpc"}}, rpcpool.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = pool.Close() })

	lamports, err := pool.GetBalance(context.Background(), solana.SystemProgramID)
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000_000), lamports)
	assert.Equal(t, 1, node.Calls("getBalance"))
}
