package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/tidwall/gjson"

	"github.com/Iotic-Labs/nyx-sdk/internal/storage"
	"github.com/Iotic-Labs/nyx-sdk/internal/vector"
)

const systemPrompt = "You answer questions about datasets shared on the Nyx marketplace. " +
	"The context below holds excerpts of those datasets and the subscriptions manifest that lists where each came from."

// Source is a dataset an answer drew on.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// Answer is the model's reply with the sources given to it. Confidence is
// set only by AskWithConfidence.
type Answer struct {
	Text       string   `json:"text"`
	Sources    []Source `json:"sources"`
	Confidence *float64 `json:"confidence,omitempty"`
}

// Answerer asks a chat model questions grounded in retrieved context.
type Answerer struct {
	client openai.Client
	cfg    ProviderConfig
	logger *slog.Logger

	newBackOff func() backoff.BackOff
}

// NewAnswerer builds a client for cfg. The SDK's own retries are disabled;
// rate limits are retried here with exponential backoff.
func NewAnswerer(cfg ProviderConfig, logger *slog.Logger) (*Answerer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: %s", ErrMissingAPIKey, cfg.Provider)
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	return &Answerer{
		client:     openai.NewClient(opts...),
		cfg:        cfg,
		logger:     logger.With("component", "llm", "provider", cfg.Provider.String()),
		newBackOff: newRetryBackOff,
	}, nil
}

func newRetryBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// Model is the configured model name.
func (a *Answerer) Model() string {
	return a.cfg.Model
}

// Ask answers question from chunks and the manifest, asking the model to
// cite its sources.
func (a *Answerer) Ask(ctx context.Context, question string, chunks vector.Result, manifest []storage.ManifestRow) (*Answer, error) {
	system := WithSources(systemPrompt, formatContext(chunks, manifest))
	text, err := a.complete(ctx, system, question)
	if err != nil {
		return nil, err
	}
	return &Answer{Text: text, Sources: sources(chunks, manifest)}, nil
}

// AskWithConfidence is Ask with the model asked for a bare answer and a
// confidence score. A reply that is not the expected JSON is returned as
// text without a confidence.
func (a *Answerer) AskWithConfidence(ctx context.Context, question string, chunks vector.Result, manifest []storage.ManifestRow) (*Answer, error) {
	system := WithConfidence(BuildQuery(systemPrompt, formatContext(chunks, manifest)))
	text, err := a.complete(ctx, system, question)
	if err != nil {
		return nil, err
	}

	answer := &Answer{Text: text, Sources: sources(chunks, manifest)}
	reply := gjson.Parse(strings.TrimSpace(text))
	if content := reply.Get("content"); reply.IsObject() && content.Exists() {
		answer.Text = content.String()
		if c := reply.Get("confidence"); c.Type == gjson.Number {
			v := c.Float()
			answer.Confidence = &v
		}
	}
	return answer, nil
}

// complete runs one chat completion at temperature 0. HTTP 429 is retried
// with exponential backoff; other errors fail immediately.
func (a *Answerer) complete(ctx context.Context, system, question string) (string, error) {
	var text string

	operation := func() error {
		resp, err := a.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
			Messages: []openai.ChatCompletionMessageParamUnion{
				openai.SystemMessage(system),
				openai.UserMessage(question),
			},
			Model:       openai.ChatModel(a.cfg.Model),
			Temperature: openai.Float(0),
		})
		if err != nil {
			if isRateLimitError(err) {
				a.logger.Debug("Rate limited, retrying", "error", err)
				return err
			}
			return backoff.Permanent(err)
		}
		if len(resp.Choices) == 0 {
			return backoff.Permanent(ErrEmptyResponse)
		}
		text = resp.Choices[0].Message.Content
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(a.newBackOff(), ctx)); err != nil {
		return "", fmt.Errorf("chat completion failed: %w", err)
	}
	return text, nil
}

// isRateLimitError checks if the error is a rate limit error (HTTP 429).
func isRateLimitError(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusTooManyRequests
	}
	return false
}

func formatContext(chunks vector.Result, manifest []storage.ManifestRow) string {
	var b strings.Builder
	if len(manifest) > 0 {
		fmt.Fprintf(&b, "Table %s (file_title | url | table_name | description):\n", storage.ManifestTable)
		for _, row := range manifest {
			fmt.Fprintf(&b, "%s | %s | %s | %s\n", row.FileTitle, row.URL, row.TableName, row.Description)
		}
	}
	if chunks.Success && chunks.Len() > 0 {
		b.WriteString("Excerpts:\n")
		for i, c := range chunks.Chunks {
			m := chunks.Metadata[i]
			fmt.Fprintf(&b, "[%d] %s (%s)\n%s\n", i+1, m.Title, m.URL, c)
		}
	}
	return b.String()
}

// sources lists the distinct datasets behind chunks, then those in the
// manifest, in first-seen order.
func sources(chunks vector.Result, manifest []storage.ManifestRow) []Source {
	seen := make(map[Source]bool)
	var out []Source
	add := func(s Source) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	for _, m := range chunks.Metadata {
		add(Source{Title: m.Title, URL: m.URL})
	}
	for _, row := range manifest {
		add(Source{Title: row.FileTitle, URL: row.URL})
	}
	return out
}
