package captcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifyForwardsTokenAndSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "topsecret", r.PostForm.Get("secret"))
		assert.Equal(t, "tok", r.PostForm.Get("response"))
		assert.Equal(t, "203.0.113.9", r.PostForm.Get("remoteip"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success": true, "score": 0.9, "action": "apply"}`))
	}))
	defer srv.Close()

	v := New("topsecret", srv.URL, srv.Client())
	res, err := v.Verify(context.Background(), " tok ", "203.0.113.9")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.InDelta(t, 0.9, res.Score, 1e-9)
}

func TestVerifyErrors(t *testing.T) {
	v := New("topsecret", "", nil)
	_, err := v.Verify(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrMissingToken)

	_, err = New("", "", nil).Verify(context.Background(), "tok", "")
	assert.ErrorIs(t, err, ErrNotConfigured)

	down := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer down.Close()

	_, err = New("topsecret", down.URL, down.Client()).Verify(context.Background(), "tok", "")
	assert.ErrorIs(t, err, ErrUpstream)

	garbage := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer garbage.Close()

	_, err = New("topsecret", garbage.URL, garbage.Client()).Verify(context.Background(), "tok", "")
	assert.ErrorIs(t, err, ErrUpstream)
}
