package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/funpik/adminconsole/pkg/environment"
)

func TestPopupsByScreen(t *testing.T) {
	client, resolver := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/popups", r.URL.Path)
		assert.Equal(t, "home & ranking", r.URL.Query().Get("screen"))
		assert.Equal(t, "Bearer T1", r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, ok([]any{
			map[string]any{"id": 1, "title": "Spring sale"},
			map[string]any{"id": 2, "title": "Event"},
		}))
	}, Config{})

	popups, err := client.PopupsByScreen(context.Background(), "T1", "home & ranking")
	require.NoError(t, err)
	require.Len(t, popups, 2)
	assert.Equal(t, "Spring sale", popups[0]["title"])
	assert.Equal(t, environment.PortNotification, resolver.lastPort())
}

func TestPopupsByScreen_EmptyBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Empty(t, r.Header.Get("Authorization"))
		writeJSON(w, http.StatusOK, ok(nil))
	}, Config{})

	popups, err := client.PopupsByScreen(context.Background(), "", "home")
	require.NoError(t, err)
	assert.Empty(t, popups)
}

func TestCreatePopup(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var popup Popup
		require.NoError(t, json.NewDecoder(r.Body).Decode(&popup))
		if popup["title"] == "" {
			writeJSON(w, http.StatusBadRequest, map[string]any{"result": map[string]any{"code": 400, "message": "title required"}})
			return
		}
		popup["id"] = 7
		writeJSON(w, http.StatusOK, ok(popup))
	}, Config{})

	body, err := client.CreatePopup(context.Background(), "T1", Popup{"title": "Launch", "screen": "home"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"title":"Launch","screen":"home"}`, string(body))

	_, err = client.CreatePopup(context.Background(), "T1", Popup{"title": ""})
	assert.EqualError(t, err, "title required")
}
