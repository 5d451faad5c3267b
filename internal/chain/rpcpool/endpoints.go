package rpcpool

import (
	"net/url"
	"strings"

	"github.com/gagliardetto/solana-go/rpc"
)

// Endpoint é um nó JSON-RPC com um rótulo seguro para log/métrica
// (nunca logamos a URL com api-key).
type Endpoint struct {
	Label string
	URL   string
}

// EndpointConfig descreve as fontes de endpoint disponíveis
type EndpointConfig struct {
	ProxyURL     string // provedor com chave atrás do backend
	CustomURL    string // endpoint informado pelo operador
	HeliusAPIKey string // segundo provedor com chave
	Mainnet      bool
}

// Fallbacks públicos por rede
var (
	publicMainnet = []string{rpc.MainNetBeta_RPC, "https://solana-rpc.publicnode.com"}
	publicDevnet  = []string{rpc.DevNet_RPC, rpc.TestNet_RPC}
)

// BuildEndpoints monta a lista em ordem de prioridade:
// proxy do backend, custom, Helius com chave, públicos da rede.
// Entradas vazias são ignoradas e duplicadas removidas.
func BuildEndpoints(c EndpointConfig) []Endpoint {
	var out []Endpoint
	seen := make(map[string]struct{})
	add := func(label, raw string) {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			return
		}
		if _, ok := seen[raw]; ok {
			return
		}
		seen[raw] = struct{}{}
		out = append(out, Endpoint{Label: label, URL: raw})
	}

	add("backend-proxy", c.ProxyURL)
	add("custom", c.CustomURL)
	if c.HeliusAPIKey != "" {
		host := "https://devnet.helius-rpc.com/"
		if c.Mainnet {
			host = "https://mainnet.helius-rpc.com/"
		}
		add("helius", host+"?api-key="+url.QueryEscape(c.HeliusAPIKey))
	}

	public := publicDevnet
	if c.Mainnet {
		public = publicMainnet
	}
	for _, u := range public {
		add(hostLabel(u), u)
	}
	return out
}

// hostLabel extrai só o host, usado como rótulo de endpoints sem chave
func hostLabel(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	return u.Host
}
