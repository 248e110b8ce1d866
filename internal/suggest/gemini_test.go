package suggest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/zapsend/zapsend/internal/config"
)

func geminiReply(text string) string {
	reply := map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]any{{"text": text}}}},
		},
	}
	data, _ := json.Marshal(reply)
	return string(data)
}

func newTestGemini(t *testing.T, handler http.HandlerFunc) *Gemini {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	return NewGemini(config.SuggestConfig{
		BaseURL: srv.URL,
		Model:   "gemini-2.0-flash",
		APIKey:  "test-key",
		Timeout: 5 * time.Second,
	})
}

func TestSuggestParsesNumberedList(t *testing.T) {
	var gotPath, gotKey string
	var gotBody generateRequest

	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(geminiReply("1. Don't miss this\n2. Your Q3 update is here\n3. One more thing")))
	})

	lines, err := g.Suggest(context.Background(), "Hello team, here is the quarterly update.")
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}

	want := []string{"Don't miss this", "Your Q3 update is here", "One more thing"}
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines[%d] = %q, want %q", i, lines[i], want[i])
		}
	}

	if gotPath != "/v1beta/models/gemini-2.0-flash:generateContent" {
		t.Errorf("request path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("api key = %q", gotKey)
	}
	prompt := gotBody.Contents[0].Parts[0].Text
	if !strings.Contains(prompt, "quarterly update") {
		t.Errorf("prompt should embed the email content, got %q", prompt)
	}
}

func TestSuggestTruncatesExtraLines(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiReply("- First\n- Second\n- Third\n- Fourth")))
	})

	lines, err := g.Suggest(context.Background(), "body")
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	if len(lines) != 3 {
		t.Errorf("got %d lines, want exactly 3", len(lines))
	}
}

func TestSuggestStripsQuotesAndBlanks(t *testing.T) {
	g := newTestGemini(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(geminiReply("\"Quoted subject\"\n\n2) Second one\n\n* Third one\n")))
	})

	lines, err := g.Suggest(context.Background(), "body")
	if err != nil {
		t.Fatalf("Suggest: %v", err)
	}
	want := []string{"Quoted subject", "Second one", "Third one"}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("lines[%d] = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestSuggestErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		wantSub string
	}{
		{
			"api error",
			func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadRequest)
				w.Write([]byte(`{"error":{"message":"API key not valid"}}`))
			},
			"API key not valid",
		},
		{
			"no candidates",
			func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"candidates":[]}`))
			},
			"no candidates",
		},
		{
			"too few lines",
			func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(geminiReply("Only one subject")))
			},
			"expected 3 subject lines",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := newTestGemini(t, tt.handler)
			if _, err := g.Suggest(context.Background(), "body"); err == nil || !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("Suggest error = %v, want containing %q", err, tt.wantSub)
			}
		})
	}
}
