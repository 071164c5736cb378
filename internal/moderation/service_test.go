package moderation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"dialer-platform/internal/config"
)

func TestEvaluate_WordlistWholeWordOnly(t *testing.T) {
	svc := NewService(nil, nil)
	ctx := context.Background()

	if res := svc.Evaluate(ctx, "call about foo now", []string{"foo"}); !res.Flagged {
		t.Fatalf("expected flagged for whole-word match")
	}
	// Substring inside a longer word does not count.
	if res := svc.Evaluate(ctx, "call about foobar now", []string{"foo"}); res.Flagged {
		t.Fatalf("substring must not flag: %+v", res)
	}
	// Case-insensitive.
	if res := svc.Evaluate(ctx, "Call About FOO now", []string{"foo"}); !res.Flagged {
		t.Fatalf("expected case-insensitive match")
	}
	if res := svc.Evaluate(ctx, "perfectly fine text", []string{"foo"}); res.Flagged {
		t.Fatalf("clean text flagged: %+v", res)
	}
}

func TestEvaluate_GlobalWordsApply(t *testing.T) {
	svc := NewService(nil, []string{"scam"})

	if res := svc.Evaluate(context.Background(), "this is a scam offer", nil); !res.Flagged {
		t.Fatalf("expected global wordlist to flag")
	}

	svc.SetGlobalWords(nil)
	if res := svc.Evaluate(context.Background(), "this is a scam offer", nil); res.Flagged {
		t.Fatalf("cleared global wordlist still flags")
	}
}

func TestEvaluate_ClassifierAboveThresholdFlags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req classifyRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(classifyResponse{Scores: Scores{Spam: 0.95}})
	}))
	defer srv.Close()

	svc := NewService(NewHTTPClassifier(config.ClassifierConfig{BaseURL: srv.URL, Timeout: time.Second}), nil)
	if res := svc.Evaluate(context.Background(), "totally innocent text", nil); !res.Flagged {
		t.Fatalf("expected classifier score above threshold to flag")
	}
}

func TestEvaluate_ClassifierBelowThresholdPasses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(classifyResponse{Scores: Scores{Spam: 0.5, Toxicity: 0.79, Threat: 0.1}})
	}))
	defer srv.Close()

	svc := NewService(NewHTTPClassifier(config.ClassifierConfig{BaseURL: srv.URL, Timeout: time.Second}), nil)
	if res := svc.Evaluate(context.Background(), "borderline text", nil); res.Flagged {
		t.Fatalf("scores below threshold must not flag: %+v", res)
	}
}

func TestEvaluate_ClassifierOutageDegradesToWordlist(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := NewService(NewHTTPClassifier(config.ClassifierConfig{BaseURL: srv.URL, Timeout: time.Second}), nil)

	// Wordlist hit still flags despite the dead classifier.
	if res := svc.Evaluate(context.Background(), "call about foo now", []string{"foo"}); !res.Flagged {
		t.Fatalf("wordlist must flag even when classifier is down")
	}
	// Clean text passes; the outage is not an error for the caller.
	if res := svc.Evaluate(context.Background(), "clean text", []string{"foo"}); res.Flagged {
		t.Fatalf("outage must not flag clean text")
	}
}

func TestEvaluate_UnreachableClassifierIsNonFatal(t *testing.T) {
	// Closed port: connection refused immediately.
	svc := NewService(NewHTTPClassifier(config.ClassifierConfig{BaseURL: "http://127.0.0.1:1", Timeout: 100 * time.Millisecond}), nil)

	if res := svc.Evaluate(context.Background(), "call about foo now", []string{"foo"}); !res.Flagged {
		t.Fatalf("expected wordlist flag with unreachable classifier")
	}
}

func TestWordPattern_CachedAcrossCalls(t *testing.T) {
	first := wordPattern("reused")
	if first == nil {
		t.Fatalf("expected a compiled pattern")
	}
	if second := wordPattern("reused"); second != first {
		t.Fatalf("expected the cached pattern on the second lookup")
	}
	if !first.MatchString("a Reused word") {
		t.Fatalf("pattern should match case-insensitively")
	}
	if first.MatchString("unreused") {
		t.Fatalf("pattern must not match inside longer words")
	}
}

func TestScoresMax(t *testing.T) {
	s := Scores{Spam: 0.2, Toxicity: 0.9, Threat: 0.4}
	if s.Max() != 0.9 {
		t.Fatalf("expected 0.9, got %f", s.Max())
	}
}
