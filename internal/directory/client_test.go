package directory

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"rutero-field/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupDirectory(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	cfg := &config.DirectoryConfig{BaseURL: server.URL, TimeoutSeconds: 2}
	return NewClient(cfg, zap.NewNop())
}

func TestRoleCheck_Allowed(t *testing.T) {
	c := setupDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/agents/role-check", r.URL.Path)

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "agent-1", body["agent_id"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":0,"data":{"allowed":true}}`))
	})

	allowed, err := c.RoleCheck("agent-1", []string{"field_agent"})
	require.NoError(t, err)
	assert.True(t, allowed)
}

func TestRoleCheck_Denied(t *testing.T) {
	c := setupDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":0,"data":{"allowed":false}}`))
	})

	allowed, err := c.RoleCheck("agent-2", []string{"field_agent"})
	require.NoError(t, err)
	assert.False(t, allowed)
}

func TestRoleCheck_ApiError(t *testing.T) {
	c := setupDirectory(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":1,"msg":"unknown agent"}`))
	})

	_, err := c.RoleCheck("agent-3", []string{"field_agent"})
	assert.Error(t, err)
}
