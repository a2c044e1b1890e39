package push

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sudooom.campus.chat/internal/config"
	apperr "sudooom.campus.chat/internal/errors"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient(config.PushConfig{BaseURL: srv.URL, Timeout: time.Second})
	return c, srv
}

func TestRegister(t *testing.T) {
	var got Registration
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/device/register", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()

	err := c.Register(context.Background(), Registration{
		DeviceToken: "tok-1",
		UserID:      "42",
		Platform:    "ios",
	})
	require.NoError(t, err)

	assert.Equal(t, "tok-1", got.DeviceToken)
	// 未指定类别时订阅全部
	assert.ElementsMatch(t, []string{"default", "chat", "tickets", "news"}, got.Categories)
}

func TestRegister_ExplicitCategories(t *testing.T) {
	var got Registration
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()

	err := c.Register(context.Background(), Registration{
		DeviceToken: "tok-1",
		UserID:      "42",
		Categories:  []string{"chat"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"chat"}, got.Categories)
}

func TestRegister_Validation(t *testing.T) {
	c := NewClient(config.PushConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})

	err := c.Register(context.Background(), Registration{UserID: "42"})
	assert.True(t, apperr.Is(err, apperr.ErrValidationError))

	err = c.Register(context.Background(), Registration{
		DeviceToken: "tok-1",
		UserID:      "42",
		Categories:  []string{"bogus"},
	})
	assert.True(t, apperr.Is(err, apperr.ErrValidationError))
}

func TestUnregister(t *testing.T) {
	var path string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.WriteHeader(http.StatusOK)
	})
	defer srv.Close()

	require.NoError(t, c.Unregister(context.Background(), "tok-1"))
	assert.Equal(t, "/device/unregister", path)

	err := c.Unregister(context.Background(), "")
	assert.True(t, apperr.Is(err, apperr.ErrValidationError))
}

func TestRegister_ServerError(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	defer srv.Close()

	err := c.Register(context.Background(), Registration{DeviceToken: "tok-1", UserID: "42"})
	assert.True(t, apperr.Is(err, apperr.ErrServerError))
}

func TestRegister_ConnectionUnavailable(t *testing.T) {
	c := NewClient(config.PushConfig{BaseURL: "http://127.0.0.1:1", Timeout: time.Second})

	err := c.Register(context.Background(), Registration{DeviceToken: "tok-1", UserID: "42"})
	assert.True(t, apperr.IsTransient(err))
}

func TestCategoryValid(t *testing.T) {
	for _, cat := range Categories() {
		assert.True(t, cat.Valid())
	}
	assert.False(t, Category("bogus").Valid())
}

func TestCategoryChannelID(t *testing.T) {
	assert.Equal(t, "campus_chat", CategoryChat.ChannelID())
	assert.Equal(t, "campus_tickets", CategoryTickets.ChannelID())
	assert.Equal(t, "campus_news", CategoryNews.ChannelID())
	assert.Equal(t, "campus_default", CategoryDefault.ChannelID())

	// 未知类别不会留在没有渠道的状态
	assert.Equal(t, "campus_default", Category("bogus").ChannelID())
}
