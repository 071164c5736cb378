package moderation

import (
	"context"
	"regexp"
	"strings"
	"sync"

	"dialer-platform/pkg/logger"
)

// RiskThreshold flags a text when any classifier category score exceeds it.
const RiskThreshold = 0.8

const defaultLanguage = "en"

// Service decides whether a message template is acceptable.
//
// The verdict is the OR of two independent checks:
// - external classifier scores (best-effort: outages degrade to wordlist-only,
//   they never fail the request)
// - whole-word matches against the campaign's custom wordlist plus the
//   operator-maintained global filter words
type Service struct {
	classifier Classifier // nil disables the external check

	globalMu    sync.RWMutex
	globalWords []string
}

func NewService(classifier Classifier, globalWords []string) *Service {
	return &Service{
		classifier:  classifier,
		globalWords: normalizeWords(globalWords),
	}
}

type Result struct {
	Flagged bool     `json:"flagged"`
	Reasons []string `json:"reasons,omitempty"`
}

// Evaluate checks text against the classifier and the wordlists.
// It never returns an error: a classifier outage is logged and the
// wordlist verdict stands alone.
func (s *Service) Evaluate(ctx context.Context, text string, customWords []string) Result {
	var out Result

	if s.classifier != nil {
		scores, err := s.classifier.Classify(ctx, text, defaultLanguage)
		if err != nil {
			// Non-fatal: moderation degrades to wordlist-only.
			logger.From(ctx).Warn("classifier unavailable, wordlist-only moderation", "err", err)
		} else if scores.Max() > RiskThreshold {
			out.Flagged = true
			out.Reasons = append(out.Reasons, "classifier risk score exceeded")
		}
	}

	if word, hit := matchWord(text, append(s.snapshotGlobal(), normalizeWords(customWords)...)); hit {
		out.Flagged = true
		out.Reasons = append(out.Reasons, "forbidden word: "+word)
	}

	return out
}

// SetGlobalWords replaces the operator-maintained global filter words.
func (s *Service) SetGlobalWords(words []string) {
	s.globalMu.Lock()
	defer s.globalMu.Unlock()
	s.globalWords = normalizeWords(words)
}

func (s *Service) snapshotGlobal() []string {
	s.globalMu.RLock()
	defer s.globalMu.RUnlock()
	out := make([]string, len(s.globalWords))
	copy(out, s.globalWords)
	return out
}

// wordPatterns caches compiled whole-word patterns keyed by the normalized
// word. Wordlists repeat across Evaluate calls, so each word compiles once
// per process.
var wordPatterns sync.Map

func wordPattern(w string) *regexp.Regexp {
	if cached, ok := wordPatterns.Load(w); ok {
		return cached.(*regexp.Regexp)
	}
	re, err := regexp.Compile(`(?i)\b` + regexp.QuoteMeta(w) + `\b`)
	if err != nil {
		return nil
	}
	wordPatterns.Store(w, re)
	return re
}

// matchWord reports the first wordlist entry that appears in text as a whole
// word. Substrings inside longer words do not count ("foo" does not match
// "foobar").
func matchWord(text string, words []string) (string, bool) {
	for _, w := range words {
		if w == "" {
			continue
		}
		if re := wordPattern(w); re != nil && re.MatchString(text) {
			return w, true
		}
	}
	return "", false
}

func normalizeWords(words []string) []string {
	out := make([]string, 0, len(words))
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}
