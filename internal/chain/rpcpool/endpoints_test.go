package rpcpool

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(eps []Endpoint) []string {
	out := make([]string, 0, len(eps))
	for _, ep := range eps {
		out = append(out, ep.Label)
	}
	return out
}

func TestBuildEndpointsPriorityOrder(t *testing.T) {
	eps := BuildEndpoints(EndpointConfig{
		ProxyURL:     "http://localhost:8090/api/rpc",
		CustomURL:    "https://rpc.example.org",
		HeliusAPIKey: "k3y",
		Mainnet:      true,
	})

	require.Len(t, eps, 5)
	assert.Equal(t, []string{
		"backend-proxy", "custom", "helius",
		"api.mainnet-beta.solana.com", "solana-rpc.publicnode.com",
	}, labels(eps))
	assert.Equal(t, "https://mainnet.helius-rpc.com/?api-key=k3y", eps[2].URL)
}

func TestBuildEndpointsDevnetFallbacksOnly(t *testing.T) {
	eps := BuildEndpoints(EndpointConfig{})

	assert.Equal(t, []string{"api.devnet.solana.com", "api.testnet.solana.com"}, labels(eps))
}

func TestBuildEndpointsSkipsEmptyAndDuplicates(t *testing.T) {
	eps := BuildEndpoints(EndpointConfig{
		ProxyURL:  "  ",
		CustomURL: "https://api.devnet.solana.com",
	})

	assert.Equal(t, []string{"custom", "api.testnet.solana.com"}, labels(eps))
}

func TestBuildEndpointsHeliusDevnetHost(t *testing.T) {
	eps := BuildEndpoints(EndpointConfig{HeliusAPIKey: "a b"})

	require.NotEmpty(t, eps)
	assert.Equal(t, "helius", eps[0].Label)
	assert.Equal(t, "https://devnet.helius-rpc.com/?api-key=a+b", eps[0].URL)
}
