package api

import (
	"chat-client/domain/chat"
	"chat-client/errors"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	client, err := NewClient(ClientConfig{
		BaseURL: server.URL + "/",
		Token:   "session-token",
		Logger:  logs.GetLoggerFromLevel(slog.LevelDebug),
	})
	require.NoError(t, err)
	return client
}

func TestClient_History(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("token")
		if err != nil || cookie.Value != "session-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if r.Method != http.MethodGet || r.URL.Path != "/messages/u2" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = fmt.Fprint(w, `[
			{"_id":"a","sender":"u1","recipient":"u2","text":"hello"},
			{"_id":"b","sender":"u2","recipient":"u1","text":"","file":"cat.png"}
		]`)
	})

	messages, err := client.History(context.Background(), "u2")

	req.NoError(err)
	req.Len(messages, 2)
	req.Equal("a", messages[0].ID)
	req.Equal(chat.ProvenanceFetched, messages[0].Provenance)
	req.Equal(&chat.FileRef{Name: "cat.png"}, messages[1].File)
}

func TestClient_Contacts(t *testing.T) {
	req := require.New(t)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/people" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_, _ = fmt.Fprint(w, `[{"_id":"u1","username":"alice"},{"_id":"u2","username":"bob"}]`)
	})

	contacts, err := client.Contacts(context.Background())

	req.NoError(err)
	req.Equal([]chat.Contact{{ID: "u1", DisplayName: "alice"}, {ID: "u2", DisplayName: "bob"}}, contacts)
}

func TestClient_Logout(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		called := false
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			called = r.Method == http.MethodPost && r.URL.Path == "/logout"
			w.WriteHeader(http.StatusOK)
		})

		require.NoError(t, client.Logout(context.Background()))
		require.True(t, called)
	})

	t.Run("server error", func(t *testing.T) {
		req := require.New(t)
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		})

		err := client.Logout(context.Background())

		req.ErrorIs(err, errors.ErrLogoutFailed)
		req.True(IsStatus(err, http.StatusInternalServerError))
	})
}

func TestClient_FetchFailures(t *testing.T) {
	t.Run("non 2xx", func(t *testing.T) {
		req := require.New(t)
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
		})

		_, err := client.History(context.Background(), "u2")

		req.ErrorIs(err, errors.ErrFetchFailed)
		req.True(IsStatus(err, http.StatusUnauthorized))
	})

	t.Run("garbage body", func(t *testing.T) {
		req := require.New(t)
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = fmt.Fprint(w, `not json`)
		})

		_, err := client.Contacts(context.Background())

		req.ErrorIs(err, errors.ErrFetchFailed)
		req.False(IsStatus(err, http.StatusOK))
	})

	t.Run("server unreachable", func(t *testing.T) {
		req := require.New(t)
		server := httptest.NewServer(http.NotFoundHandler())
		server.Close()
		client, err := NewClient(ClientConfig{BaseURL: server.URL})
		req.NoError(err)

		_, err = client.History(context.Background(), "u2")

		req.ErrorIs(err, errors.ErrFetchFailed)
	})
}

func TestNewClient_RequiresBaseURL(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	require.Error(t, err)
}
