package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestClient(url string, retries int) *STACClient {
	return NewSTACClient(Options{
		URL:        url,
		Collection: "sentinel-2-l2a",
		Retries:    retries,
		Timeout:    5 * time.Second,
		Logger:     zap.NewNop(),
	})
}

func TestSearchBuildsSTACQuery(t *testing.T) {
	var captured searchRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&captured))
		json.NewEncoder(w).Encode(searchResponse{Features: []stacItem{
			{
				ID:         "S2A_T33VWC_20230612",
				Properties: stacItemProperties{CloudCover: 12.5},
				Assets: map[string]stacAsset{
					"B02": {Href: "https://assets.example/B02.tif"},
					"B08": {Href: "https://assets.example/B08.tif"},
				},
			},
		}})
	}))
	defer server.Close()

	client := newTestClient(server.URL, 1)
	bound := orb.Bound{Min: orb.Point{18.067, 59.328}, Max: orb.Point{18.069, 59.330}}
	start := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)

	scenes, err := client.Search(context.Background(), bound, start, end, 20)
	require.NoError(t, err)

	assert.Equal(t, []string{"sentinel-2-l2a"}, captured.Collections)
	assert.Equal(t, [4]float64{18.067, 59.328, 18.069, 59.330}, captured.Bbox)
	assert.Equal(t, "2023-06-01/2023-07-01", captured.Datetime)

	require.Len(t, scenes, 1)
	assert.Equal(t, "S2A_T33VWC_20230612", scenes[0].ID)
	assert.Equal(t, 12.5, scenes[0].CloudCover)
	href, ok := scenes[0].AssetHref("B08")
	assert.True(t, ok)
	assert.Equal(t, "https://assets.example/B08.tif", href)
	_, ok = scenes[0].AssetHref("B11")
	assert.False(t, ok)
}

func TestSearchEmptyResultIsNotAnError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(searchResponse{})
	}))
	defer server.Close()

	client := newTestClient(server.URL, 1)
	scenes, err := client.Search(context.Background(), orb.Bound{}, time.Now(), time.Now(), 20)
	require.NoError(t, err)
	assert.Empty(t, scenes)
}

func TestSearchRetriesTransportErrors(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		json.NewEncoder(w).Encode(searchResponse{})
	}))
	defer server.Close()

	client := newTestClient(server.URL, 3)
	_, err := client.Search(context.Background(), orb.Bound{}, time.Now(), time.Now(), 20)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts)
}

func TestSearchGivesUpAfterRetries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := newTestClient(server.URL, 2)
	_, err := client.Search(context.Background(), orb.Bound{}, time.Now(), time.Now(), 20)
	assert.Error(t, err)
}
