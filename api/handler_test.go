package api_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cmwaters/groupsync/api"
	"github.com/cmwaters/groupsync/config"
	"github.com/cmwaters/groupsync/pkg/group"
	"github.com/cmwaters/groupsync/pkg/signal"
	"github.com/cmwaters/groupsync/registry"
	"github.com/cmwaters/groupsync/syncstate"
)

func TestMembersEndpoints(t *testing.T) {
	reg := registry.NewLocal()
	srv := newServer(t, config.Config{GroupID: "1"}, reg)

	var list struct {
		Items  []group.Member `json:"items"`
		Status struct {
			Refreshed bool `json:"refreshed"`
		} `json:"status"`
	}
	do(t, srv, http.MethodGet, "/members", "", http.StatusOK, &list)
	assert.Empty(t, list.Items)
	assert.False(t, list.Status.Refreshed)

	do(t, srv, http.MethodPost, "/members", `{"id":"x"}`, http.StatusOK, &list)
	assert.Equal(t, []group.Member{{ID: "x"}}, list.Items)

	reg.SetMembers("1", group.Member{ID: "y"})
	var refresh struct {
		Items   []group.Member `json:"items"`
		Updated bool           `json:"updated"`
		Reason  string         `json:"reason"`
	}
	do(t, srv, http.MethodPost, "/members/refresh", "", http.StatusOK, &refresh)
	assert.True(t, refresh.Updated)
	assert.Empty(t, refresh.Reason)
	assert.Equal(t, []group.Member{{ID: "y"}}, refresh.Items)

	do(t, srv, http.MethodGet, "/members", "", http.StatusOK, &list)
	assert.True(t, list.Status.Refreshed)

	do(t, srv, http.MethodPost, "/members", `{"id":""}`, http.StatusBadRequest, nil)
	do(t, srv, http.MethodPost, "/members", `not json`, http.StatusBadRequest, nil)
}

func TestFeedbackEndpoints(t *testing.T) {
	reg := registry.NewLocal()
	hello, err := signal.Pack("Hello")
	require.NoError(t, err)
	reg.AddSignal("1", hello.String(), "0xdeadbeef")
	srv := newServer(t, config.Config{GroupID: "1"}, reg)

	var list struct {
		Items []string `json:"items"`
	}
	do(t, srv, http.MethodPost, "/feedback", `{"text":"great talk"}`, http.StatusOK, &list)
	assert.Equal(t, []string{"great talk"}, list.Items)

	var refresh struct {
		Items          []string `json:"items"`
		Reason         string   `json:"reason"`
		DecodeFailures int      `json:"decode_failures"`
	}
	do(t, srv, http.MethodPost, "/feedback/refresh", "", http.StatusOK, &refresh)
	assert.Equal(t, []string{"Hello", "Invalid signal"}, refresh.Items)
	assert.Equal(t, "signal_decode_failure", refresh.Reason)
	assert.Equal(t, 1, refresh.DecodeFailures)
}

func TestRefreshFailureIsData(t *testing.T) {
	srv := newServer(t, config.Config{}, registry.NewLocal())

	var refresh struct {
		Items   []string `json:"items"`
		Updated bool     `json:"updated"`
		Failure string   `json:"failure"`
		Reason  string   `json:"reason"`
	}
	do(t, srv, http.MethodPost, "/feedback/refresh", "", http.StatusOK, &refresh)
	assert.False(t, refresh.Updated)
	assert.Equal(t, "missing_group_id", refresh.Reason)
	assert.NotEmpty(t, refresh.Failure)
	assert.Empty(t, refresh.Items)
}

func newServer(t *testing.T, cfg config.Config, reg registry.Client) *httptest.Server {
	state := syncstate.New(cfg, reg, syncstate.WithLogger(zerolog.Nop()))
	srv := httptest.NewServer(api.NewHandler(state, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, srv *httptest.Server, method, path, body string, wantStatus int, out any) {
	t.Helper()
	req, err := http.NewRequest(method, srv.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, wantStatus, resp.StatusCode)
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
}
