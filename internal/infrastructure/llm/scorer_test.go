package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"EarningsTracker/internal/domain"
)

func sampleReport() domain.Report {
	return domain.Report{
		Code:         "600519",
		Name:         "贵州茅台",
		Period:       time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
		ForecastType: "预增",
		ChangeMin:    50,
		ChangeMax:    80,
	}
}

func TestScorerSendsChatCompletion(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Fatalf("unexpected auth header %q", got)
		}

		var body struct {
			Model     string `json:"model"`
			MaxTokens int    `json:"max_tokens"`
			Messages  []struct {
				Role    string `json:"role"`
				Content string `json:"content"`
			} `json:"messages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		if body.Model != "qwen-turbo" || body.MaxTokens != 150 {
			t.Fatalf("unexpected params %+v", body)
		}
		if len(body.Messages) != 1 || !strings.Contains(body.Messages[0].Content, "600519") {
			t.Fatalf("unexpected messages %+v", body.Messages)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"qwen-turbo",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":" 评分：85。利润大幅增长。 "}}]}`))
	}))
	defer server.Close()

	scorer, err := NewScorer(Config{Endpoint: server.URL, APIKey: "sk-test", HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("new scorer: %v", err)
	}

	comment, err := scorer.Score(context.Background(), sampleReport())
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	if comment != "评分：85。利润大幅增长。" {
		t.Fatalf("unexpected comment %q", comment)
	}
}

func TestScorerSurfacesHTTPErrors(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"message":"invalid api key","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	scorer, err := NewScorer(Config{Endpoint: server.URL, APIKey: "sk-bad", HTTPClient: server.Client()})
	if err != nil {
		t.Fatalf("new scorer: %v", err)
	}
	if _, err := scorer.Score(context.Background(), sampleReport()); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewScorerRequiresKey(t *testing.T) {
	t.Parallel()

	if _, err := NewScorer(Config{}); err == nil {
		t.Fatal("expected error for empty api key")
	}
}

func TestPromptMentionsQuarterAndRange(t *testing.T) {
	t.Parallel()

	p := Prompt(sampleReport())
	for _, want := range []string{"贵州茅台（600519）", "50%~80%", "2025Q2", "-100到100"} {
		if !strings.Contains(p, want) {
			t.Fatalf("prompt missing %q: %s", want, p)
		}
	}
}
