package captcha

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"steppe-logistics.kz/internal/config"
)

func newProvider(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(handler))
	t.Cleanup(srv.Close)
	return NewClient(config.CaptchaConfig{VerifyURL: srv.URL, Secret: "s3cret", MinScore: 0.5, TimeoutSeconds: 2})
}

func respond(w http.ResponseWriter, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(body)
}

func TestVerify(t *testing.T) {
	tests := []struct {
		name    string
		reply   map[string]any
		action  string
		wantErr error
	}{
		{"accepted", map[string]any{"success": true, "score": 0.9, "action": "contact"}, "contact", nil},
		{"provider says no", map[string]any{"success": false, "error-codes": []string{"invalid-input-response"}}, "contact", ErrRejected},
		{"low score", map[string]any{"success": true, "score": 0.2, "action": "contact"}, "contact", ErrRejected},
		{"wrong action", map[string]any{"success": true, "score": 0.9, "action": "login"}, "contact", ErrRejected},
		{"no action expected", map[string]any{"success": true, "score": 0.7, "action": "login"}, "", nil},
		{"action missing in reply", map[string]any{"success": true, "score": 0.9}, "contact", ErrRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
				require.NoError(t, r.ParseForm())
				assert.Equal(t, "s3cret", r.PostForm.Get("secret"))
				assert.Equal(t, "tok", r.PostForm.Get("response"))
				assert.Equal(t, "10.0.0.5", r.PostForm.Get("remoteip"))
				respond(w, tt.reply)
			})
			err := c.Verify(context.Background(), "tok", "10.0.0.5", tt.action)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestVerifyMissingToken(t *testing.T) {
	var calls atomic.Int32
	c := newProvider(t, func(w http.ResponseWriter, r *http.Request) { calls.Add(1) })
	assert.ErrorIs(t, c.Verify(context.Background(), "  ", "", ""), ErrMissingToken)
	assert.Zero(t, calls.Load())
}

func TestVerifyFailsClosedAndTripsBreaker(t *testing.T) {
	var calls atomic.Int32
	c := newProvider(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusBadGateway)
	})

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, c.Verify(context.Background(), "tok", "", ""), ErrUnavailable)
	}
	assert.Equal(t, gobreaker.StateOpen, c.State())

	// при открытом breaker провайдер больше не вызывается
	assert.ErrorIs(t, c.Verify(context.Background(), "tok", "", ""), ErrUnavailable)
	assert.Equal(t, int32(5), calls.Load())
}

func TestVerifyMalformedResponse(t *testing.T) {
	c := newProvider(t, func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write([]byte("not json")) })
	assert.ErrorIs(t, c.Verify(context.Background(), "tok", "", ""), ErrUnavailable)
}

func TestNew(t *testing.T) {
	dev := &config.Config{AppEnv: "development"}
	assert.IsType(t, Disabled{}, New(dev))
	assert.NoError(t, New(dev).Verify(context.Background(), "", "", ""))

	prod := &config.Config{AppEnv: "production"}
	assert.ErrorIs(t, New(prod).Verify(context.Background(), "tok", "", ""), ErrUnavailable)

	withSecret := &config.Config{AppEnv: "production", Captcha: config.CaptchaConfig{Secret: "x", VerifyURL: "http://127.0.0.1:1", TimeoutSeconds: 1}}
	assert.IsType(t, &Client{}, New(withSecret))
}
