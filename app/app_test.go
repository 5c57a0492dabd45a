package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"comicbot/bot"
	"comicbot/config"

	"github.com/apex/log"
	"github.com/apex/log/handlers/discard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLog = &log.Logger{Handler: discard.New(), Level: log.DebugLevel}

func testConfig(baseURL string) *config.Config {
	return &config.Config{
		Backend: config.BackendConfig{BaseURL: baseURL, RequestTimeout: time.Second, SearchTimeout: time.Second},
		Update:  config.UpdateConfig{PostTimeout: time.Second, WaitTimeout: time.Second, PollInterval: 10 * time.Millisecond},
		Media:   config.MediaConfig{DownloadTimeout: time.Second},
		OpenRouter: config.OpenRouterConfig{
			Model:          config.DefaultOpenRouterModel,
			URL:            config.DefaultOpenRouterURL,
			RequestTimeout: time.Second,
		},
		Server: config.ServerConfig{MaxConcurrentCommands: 2, SearchRate: 1, SearchBurst: 1},
	}
}

func TestBuildWiresRouter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/ping" {
			_, _ = w.Write([]byte("pong"))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	a, err := Build(context.Background(), testConfig(srv.URL), testLog)
	require.NoError(t, err)
	defer a.Close()

	conv := bot.NewTranscript()
	require.NoError(t, a.Router.Handle(context.Background(), bot.Request{Text: "/ping"}, conv))
	require.Len(t, conv.Replies(), 1)
	assert.Equal(t, "pong", conv.Replies()[0].Text)

	rec := httptest.NewRecorder()
	a.Metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `comicbot_commands_total{command="ping",outcome="ok"} 1`)
	assert.Contains(t, rec.Body.String(), `op="ping"`)
}

func TestBuildRejectsNilConfig(t *testing.T) {
	_, err := Build(context.Background(), nil, testLog)
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(config.LogConfig{Level: "warn", Format: "json"}, &buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.WithField("k", "v").Warn("shown")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "shown", entry["message"])
	assert.Equal(t, "warn", entry["level"])

	_, err = NewLogger(config.LogConfig{Level: "loud"}, &buf)
	assert.Error(t, err)
	_, err = NewLogger(config.LogConfig{Format: "xml"}, &buf)
	assert.Error(t, err)
}
