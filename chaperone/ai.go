package chaperone

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/lmittmann/tint"
	openai "github.com/sashabaranov/go-openai"
	"golang.org/x/time/rate"
)

const aiTemperature = 0.7

// canned replies for requests the relay refuses or can't complete
const (
	aiRefusalMessage = "I can't respond to that type of message. " +
		"Let's talk about something else!"
	aiUnavailableMessage = "AI service is temporarily unavailable. " +
		"Please try again later."
)

var (
	leadingSymbols  = regexp.MustCompile(`^[\[\](){}/<>*_` + "`" + `~|\\]+\s*`)
	trailingSymbols = regexp.MustCompile(`\s*[\[\](){}/<>*_` + "`" + `~|\\]+$`)
	boldMarkdown    = regexp.MustCompile(`\*\*(.*?)\*\*`)
	italicMarkdown  = regexp.MustCompile(`\*(.*?)\*`)
	codeMarkdown    = regexp.MustCompile("`(.*?)`")
	strikeMarkdown  = regexp.MustCompile(`~~(.*?)~~`)
	repeatedSpaces  = regexp.MustCompile(`\s+`)
)

// AIChat relays prompts to an OpenAI-compatible completion endpoint
// (OpenRouter by default). Prompts pass through the content filter
// before being sent, outbound requests are rate limited, and each user
// has a short cooldown between requests.
type AIChat struct {
	client  *openai.Client
	config  *AIConfig
	filter  *MessageFilter
	limiter *rate.Limiter
	logger  *slog.Logger

	mu          sync.Mutex
	lastRequest map[string]time.Time

	// requestCount tracks completions attempted since startup
	requestCount int64
}

// NewAIChat creates the relay. A nil httpClient uses the default.
func NewAIChat(
	config *AIConfig,
	filter *MessageFilter,
	httpClient *http.Client,
	logger *slog.Logger,
) *AIChat {
	if logger == nil {
		logger = slog.Default()
	}
	clientConfig := openai.DefaultConfig(config.Token)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}
	rps := config.MaxRequestsPerSecond
	if rps <= 0 {
		rps = DefaultAIMaxRequestsPerSecond
	}
	return &AIChat{
		client:      openai.NewClientWithConfig(clientConfig),
		config:      config,
		filter:      filter,
		limiter:     rate.NewLimiter(rate.Limit(rps), rps),
		logger:      logger.With(loggerNameKey, "ai"),
		lastRequest: map[string]time.Time{},
	}
}

// OnCooldown reports whether the user must still wait before their next
// AI request.
func (a *AIChat) OnCooldown(userID string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	last, ok := a.lastRequest[userID]
	if !ok {
		return false
	}
	return time.Since(last) < a.config.Cooldown
}

// SetCooldown marks the user as having just made a request.
func (a *AIChat) SetCooldown(userID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastRequest[userID] = time.Now()
}

// ChannelDisabled reports whether the AI relay is disabled for the
// given channel.
func (a *AIChat) ChannelDisabled(channelID string) bool {
	for _, id := range a.config.DisabledChannelIDs {
		if id == channelID {
			return true
		}
	}
	return false
}

// Generate relays the prompt and returns the cleaned response. Filtered
// prompts get a canned refusal; upstream failures get a canned
// unavailable message along with the error.
func (a *AIChat) Generate(
	ctx context.Context,
	prompt string,
	username string,
) (string, error) {
	if a.filter != nil && a.filter.ContainsFilteredWords(prompt) {
		return aiRefusalMessage, nil
	}
	if err := a.limiter.Wait(ctx); err != nil {
		return aiUnavailableMessage, err
	}

	a.mu.Lock()
	a.requestCount++
	a.mu.Unlock()

	resp, err := a.client.CreateChatCompletion(
		ctx, openai.ChatCompletionRequest{
			Model: a.config.Model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: a.config.SystemPrompt,
				},
				{
					Role: openai.ChatMessageRoleUser,
					Content: fmt.Sprintf(
						"User %s says: %s", username, prompt,
					),
				},
			},
			MaxTokens:   a.config.MaxTokens,
			Temperature: aiTemperature,
		},
	)
	if err != nil {
		a.logger.Error("completion request failed", tint.Err(err))
		return aiUnavailableMessage, err
	}
	if len(resp.Choices) == 0 {
		a.logger.Error("completion response had no choices")
		return aiUnavailableMessage, fmt.Errorf("empty completion response")
	}
	return cleanResponse(resp.Choices[0].Message.Content), nil
}

// RequestCount returns the number of completions attempted since startup.
func (a *AIChat) RequestCount() int64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.requestCount
}

// cleanResponse strips markdown and stray framing symbols from a model
// response, per the plain-text system prompt contract.
func cleanResponse(response string) string {
	response = strings.TrimSpace(response)
	// paired markdown first, so edge stripping doesn't orphan markers
	response = boldMarkdown.ReplaceAllString(response, "$1")
	response = italicMarkdown.ReplaceAllString(response, "$1")
	response = codeMarkdown.ReplaceAllString(response, "$1")
	response = strikeMarkdown.ReplaceAllString(response, "$1")
	response = leadingSymbols.ReplaceAllString(response, "")
	response = trailingSymbols.ReplaceAllString(response, "")
	response = repeatedSpaces.ReplaceAllString(response, " ")
	return strings.TrimSpace(response)
}
