package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSender struct {
	name  string
	texts []string
	err   error
}

func (r *recordingSender) Name() string { return r.name }

func (r *recordingSender) Send(_ context.Context, text string) error {
	r.texts = append(r.texts, text)
	return r.err
}

func TestHubFansOutWithEnvPrefix(t *testing.T) {
	a := &recordingSender{name: "a"}
	b := &recordingSender{name: "b"}
	hub := NewHub("production", a, b)

	hub.NotifyError(context.Background(), "Backup failed for tmi")
	hub.NotifySuccess(context.Background(), "Backup completed for mmk")

	require.Len(t, a.texts, 2)
	assert.Equal(t, a.texts, b.texts)
	assert.Equal(t, "[production] ERROR: Backup failed for tmi", a.texts[0])
	assert.Equal(t, "[production] OK: Backup completed for mmk", a.texts[1])
}

func TestHubSurvivesDeliveryFailure(t *testing.T) {
	broken := &recordingSender{name: "broken", err: errors.New("timeout")}
	healthy := &recordingSender{name: "healthy"}
	hub := NewHub("staging", broken, healthy)

	hub.NotifyError(context.Background(), "boom")

	// The failing channel must not keep the healthy one from delivering.
	assert.Len(t, healthy.texts, 1)
}

func TestHubEnabled(t *testing.T) {
	assert.False(t, NewHub("production").Enabled())
	assert.True(t, NewHub("production", &recordingSender{}).Enabled())
}

func TestTelegramSend(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
	}))
	defer srv.Close()

	tg := NewTelegram("bot-token", "-100123")
	tg.baseURL = srv.URL

	require.NoError(t, tg.Send(context.Background(), "hello"))
	assert.Equal(t, "/botbot-token/sendMessage", gotPath)
	assert.Equal(t, map[string]string{"chat_id": "-100123", "text": "hello"}, gotBody)
}

func TestMattermostSendRejectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	mm := NewMattermost(srv.URL)
	err := mm.Send(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
}
