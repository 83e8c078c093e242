package notification

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSendErrorPostsEmbed(t *testing.T) {
	var body webhookMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(raw, &body))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	n := NewNotifier(server.URL, "")
	require.NoError(t, n.SendError("catalog unreachable"))

	require.Len(t, body.Embeds, 1)
	assert.Contains(t, body.Embeds[0].Description, "catalog unreachable")
	assert.Equal(t, 16711680, body.Embeds[0].Color)
}

func TestSendWithEmptyURLIsNoop(t *testing.T) {
	n := NewNotifier("", "")
	assert.NoError(t, n.SendError("ignored"))
	assert.NoError(t, n.SendSuccess("ignored"))
}

func TestSendSuccessRejectsBadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	n := NewNotifier("", server.URL)
	assert.Error(t, n.SendSuccess("done"))
}
