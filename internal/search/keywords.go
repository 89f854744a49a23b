package search

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/buonappetort/rex/internal/llm"
)

// DefaultLLMTimeout bounds a single keyword-extraction call.
const DefaultLLMTimeout = 5 * time.Second

// KeywordStrategy derives lowercase keywords from a query.
type KeywordStrategy interface {
	Keywords(ctx context.Context, query string) ([]string, error)
}

// Split lowercases the query and splits it on whitespace. It never fails.
type Split struct{}

func (Split) Keywords(_ context.Context, query string) ([]string, error) {
	return splitKeywords(query), nil
}

func splitKeywords(query string) []string {
	fields := strings.Fields(strings.ToLower(query))
	if fields == nil {
		return []string{}
	}
	return fields
}

const keywordPrompt = `Extract up to 5 short search keywords from the user's question for product recommendations.
Return as a comma-separated list only. If none, return an empty line.

Question: %s`

// LLM asks a chat model for comma-separated keywords.
type LLM struct {
	Client  llm.Chatter
	Model   string
	Timeout time.Duration
}

func (l *LLM) Keywords(ctx context.Context, query string) ([]string, error) {
	timeout := l.Timeout
	if timeout <= 0 {
		timeout = DefaultLLMTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	reply, err := l.Client.Chat(ctx, l.Model, []llm.Message{
		{Role: "user", Content: fmt.Sprintf(keywordPrompt, query)},
	})
	if err != nil {
		return nil, fmt.Errorf("extracting keywords: %w", err)
	}
	return parseKeywordList(reply), nil
}

// parseKeywordList splits a comma-separated reply into trimmed lowercase
// keywords, dropping empties.
func parseKeywordList(reply string) []string {
	out := []string{}
	for _, part := range strings.Split(strings.TrimSpace(reply), ",") {
		if k := strings.ToLower(strings.TrimSpace(part)); k != "" {
			out = append(out, k)
		}
	}
	return out
}
