//go:build integration

package integration

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clarifyai/config"
	"clarifyai/internal/app"
	"clarifyai/internal/auth"
	"clarifyai/internal/providers"
	"clarifyai/internal/providers/gemini"
	"clarifyai/internal/providers/openai"
)

const jwtSecret = "integration-secret"

// newMockGemini streams a fixed reply in Gemini's alt=sse format.
func newMockGemini(t *testing.T, fragments ...string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, ":streamGenerateContent") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher := w.(http.Flusher)
		for _, f := range fragments {
			chunk := map[string]interface{}{
				"candidates": []interface{}{map[string]interface{}{
					"content": map[string]interface{}{"parts": []interface{}{map[string]string{"text": f}}},
				}},
			}
			data, _ := json.Marshal(chunk)
			_, _ = fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}))
	t.Cleanup(server.Close)
	return server
}

// startApp runs the full server against dbType on a free loopback port.
func startApp(t *testing.T, dbType, vendorURL string) string {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := listener.Addr().(*net.TCPAddr).Port
	require.NoError(t, listener.Close())

	cfg := &config.Config{
		Server: config.ServerConfig{Port: fmt.Sprint(port)},
		Auth:   config.AuthConfig{Provider: auth.ProviderJWT, JWTSecret: jwtSecret},
		LLM: config.LLMConfig{
			Provider:    "gemini",
			Temperature: config.DefaultTemperature,
			MaxTokens:   config.DefaultMaxTokens,
			Gemini:      config.VendorConfig{APIKey: "g-test", BaseURL: vendorURL},
		},
		Storage:       config.StorageConfig{Type: dbType},
		Conversations: config.ConversationsConfig{Backend: "table"},
	}
	switch dbType {
	case "postgresql":
		cfg.Storage.PostgreSQL = config.PostgreSQLConfig{URL: GetPostgreSQLURL(), MaxConns: 5}
	case "mongodb":
		cfg.Storage.MongoDB = config.MongoDBConfig{URL: GetMongoURL(), Database: "clarifyai_test"}
	}

	factory := providers.NewProviderFactory()
	factory.Add(openai.Registration)
	factory.Add(gemini.Registration)

	application, err := app.New(GetTestContext(), app.Config{
		AppConfig: &config.LoadResult{Config: cfg},
		Factory:   factory,
	})
	require.NoError(t, err)

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	go func() { _ = application.Start(addr) }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = application.Shutdown(ctx)
	})

	baseURL := "http://" + addr
	require.Eventually(t, func() bool {
		resp, err := http.Get(baseURL + "/health")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 100*time.Millisecond)
	return baseURL
}

func bearer(t *testing.T, subject string) string {
	t.Helper()
	p, err := auth.NewJWTProvider(jwtSecret)
	require.NoError(t, err)
	tok, err := p.Issue(auth.Identity{Subject: subject, Role: auth.RoleUser}, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func TestChatStreamPersistsTurn(t *testing.T) {
	for _, dbType := range []string{"postgresql", "mongodb"} {
		t.Run(dbType, func(t *testing.T) {
			vendor := newMockGemini(t, "The library ", "opens at 8 AM.")
			baseURL := startApp(t, dbType, vendor.URL)
			token := bearer(t, "student-"+uuid.NewString())

			req, err := http.NewRequest(http.MethodPost, baseURL+"/v1/chat/stream",
				strings.NewReader(`{"messages":[{"role":"user","content":"When does the library open?"}]}`))
			require.NoError(t, err)
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Authorization", token)

			resp, err := http.DefaultClient.Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

			var (
				reply     strings.Builder
				lastEvent string
				doneData  string
			)
			scanner := bufio.NewScanner(resp.Body)
			for scanner.Scan() {
				line := scanner.Text()
				switch {
				case strings.HasPrefix(line, "event: "):
					lastEvent = strings.TrimPrefix(line, "event: ")
				case strings.HasPrefix(line, "data: "):
					data := strings.TrimPrefix(line, "data: ")
					if lastEvent == "done" {
						doneData = data
						continue
					}
					var delta struct {
						Delta string `json:"delta"`
					}
					require.NoError(t, json.Unmarshal([]byte(data), &delta))
					reply.WriteString(delta.Delta)
				}
			}
			require.NoError(t, scanner.Err())
			assert.Equal(t, "The library opens at 8 AM.", reply.String())
			require.Equal(t, "done", lastEvent)

			var done struct {
				ConversationID string `json:"conversation_id"`
			}
			require.NoError(t, json.Unmarshal([]byte(doneData), &done))
			require.NotEmpty(t, done.ConversationID)

			get, err := http.NewRequest(http.MethodGet, baseURL+"/v1/conversations/"+done.ConversationID, nil)
			require.NoError(t, err)
			get.Header.Set("Authorization", token)
			convResp, err := http.DefaultClient.Do(get)
			require.NoError(t, err)
			defer convResp.Body.Close()
			require.Equal(t, http.StatusOK, convResp.StatusCode)

			body, err := io.ReadAll(convResp.Body)
			require.NoError(t, err)
			var conv struct {
				Title    string `json:"title"`
				Messages []struct {
					Role    string `json:"role"`
					Content string `json:"content"`
				} `json:"messages"`
			}
			require.NoError(t, json.Unmarshal(body, &conv))
			assert.Equal(t, "When does the library open?", conv.Title)
			require.Len(t, conv.Messages, 2)
			assert.Equal(t, "assistant", conv.Messages[1].Role)
			assert.Equal(t, "The library opens at 8 AM.", conv.Messages[1].Content)
		})
	}
}
