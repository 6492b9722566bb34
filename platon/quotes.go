package platon

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lmittmann/tint"
	openai "github.com/sashabaranov/go-openai"
)

const quoteEmbedColor = 0xFFD700

// quotePrompt instructs the model to answer with nothing but the JSON
// document parseQuoteResponse expects.
const quotePrompt = `동기부여가 되는 명언을 하나 생성해주세요.
실존 인물의 명언이어야 하며, 다음 JSON 형식으로만 응답하세요.
다른 설명이나 텍스트는 포함하지 마세요:
{"quote": "명언 내용", "author": "인물 이름", "context": "명언에 대한 짧은 배경 설명"}`

// Quote is a generated (or fallback) quote of the day.
type Quote struct {
	Quote   string `json:"quote"`
	Author  string `json:"author"`
	Context string `json:"context"`
}

// fallbackQuote is served whenever generation or parsing fails, so the
// morning broadcast never goes out empty.
var fallbackQuote = Quote{
	Quote:   "실패는 성공의 어머니다",
	Author:  "토마스 에디슨",
	Context: "수많은 실패 끝에 전구를 발명한 에디슨의 말입니다.",
}

// completionFn matches the OpenAI chat completion call, injected so tests
// can stand in for the API.
type completionFn func(
	ctx context.Context,
	req openai.ChatCompletionRequest,
) (openai.ChatCompletionResponse, error)

// QuoteGenerator produces daily quotes via the OpenAI chat completion API.
type QuoteGenerator struct {
	model    string
	complete completionFn
	logger   *slog.Logger
}

func newQuoteGenerator(
	cfg *OpenAIConfig,
	httpClient *http.Client,
	logger *slog.Logger,
) *QuoteGenerator {
	if logger == nil {
		logger = slog.Default()
	}
	clientConfig := openai.DefaultConfig(cfg.Token)
	if httpClient != nil {
		clientConfig.HTTPClient = httpClient
	}
	client := openai.NewClientWithConfig(clientConfig)
	return &QuoteGenerator{
		model:    cfg.Model,
		complete: client.CreateChatCompletion,
		logger:   logger.With(loggerNameKey, "quotes"),
	}
}

// Generate requests a fresh quote. On any upstream or parse failure it
// logs the cause and returns the fallback quote, since every caller wants
// a quote regardless.
func (g *QuoteGenerator) Generate(ctx context.Context) Quote {
	resp, err := g.complete(ctx, openai.ChatCompletionRequest{
		Model: g.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: quotePrompt,
			},
		},
	})
	if err != nil {
		g.logger.ErrorContext(ctx, "quote generation failed", tint.Err(err))
		return fallbackQuote
	}
	if len(resp.Choices) == 0 {
		g.logger.ErrorContext(ctx, "quote generation returned no choices")
		return fallbackQuote
	}
	quote, err := parseQuoteResponse(resp.Choices[0].Message.Content)
	if err != nil {
		g.logger.ErrorContext(
			ctx,
			"could not parse quote response",
			tint.Err(err),
			"content", truncate(resp.Choices[0].Message.Content, 200),
		)
		return fallbackQuote
	}
	return quote
}

// parseQuoteResponse decodes the model output, tolerating a markdown code
// fence around the JSON but nothing else.
func parseQuoteResponse(content string) (Quote, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}
	var quote Quote
	if err := json.Unmarshal([]byte(content), &quote); err != nil {
		return Quote{}, fmt.Errorf("error decoding quote JSON: %w", err)
	}
	if quote.Quote == "" || quote.Author == "" {
		return Quote{}, fmt.Errorf("quote JSON missing required fields")
	}
	return quote, nil
}

// quoteEmbed renders a quote for the morning broadcast or 명언조회.
func quoteEmbed(q Quote) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       "💬 오늘의 명언",
		Description: fmt.Sprintf("> **\"%s\"**\n> \n> — %s", q.Quote, q.Author),
		Color:       quoteEmbedColor,
		Timestamp:   time.Now().In(seoul).Format(time.RFC3339),
	}
	if q.Context != "" {
		embed.Fields = []*discordgo.MessageEmbedField{
			{Name: "배경", Value: q.Context},
		}
	}
	return embed
}
