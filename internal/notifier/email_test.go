package notifier

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEmailClientDisabledWithoutCredentials(t *testing.T) {
	client := NewEmailClient(slog.Default(), "", "", "no-reply@omnibank.example")
	require.False(t, client.IsEnabled())

	// Disabled client skips the send without error
	err := client.Send(context.Background(), "customer@example.com", "subject", "body")
	require.NoError(t, err)
}

func TestEmailClientSend(t *testing.T) {
	var received emailMessage
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/messages", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	client := NewEmailClient(slog.Default(), "api-key", server.URL, "no-reply@omnibank.example")
	require.True(t, client.IsEnabled())

	err := client.Send(context.Background(), "customer@example.com",
		"Your transfer #5 is now processing", "Hello")
	require.NoError(t, err)

	require.Equal(t, "Bearer api-key", gotAuth)
	require.Equal(t, "no-reply@omnibank.example", received.From)
	require.Equal(t, "customer@example.com", received.To)
	require.Equal(t, "Your transfer #5 is now processing", received.Subject)
}

func TestEmailClientNon2xxResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := NewEmailClient(slog.Default(), "api-key", server.URL, "no-reply@omnibank.example")

	err := client.Send(context.Background(), "customer@example.com", "subject", "body")
	require.Error(t, err)
	require.Contains(t, err.Error(), "429")
}
