package ingester

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"ledger-stats-system/internal/config"
)

func TestFetchLatest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "250", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"total": 2,
			"blocks": [
				{"block_height": "100", "transfer_type": "TRANSFER", "amount": "500000000", "created_at": 1709287200},
				{"block_height": "101", "transfer_type": "MINT", "amount": "100000000", "created_at": 1709287260}
			]
		}`))
	}))
	defer server.Close()

	client := NewClient(&config.LedgerConfig{
		APIURL:    server.URL,
		PageLimit: 250,
	})

	raws, err := client.FetchLatest(context.Background())
	require.NoError(t, err)
	require.Len(t, raws, 2)
	require.Equal(t, "100", raws[0].BlockHeight)
	require.Equal(t, "MINT", raws[1].TransferType)
}

func TestFetchLatestServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := NewClient(&config.LedgerConfig{APIURL: server.URL})

	_, err := client.FetchLatest(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "status 502")
}
