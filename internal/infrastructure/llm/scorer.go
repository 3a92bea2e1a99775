package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"

	"EarningsTracker/internal/domain"
	"EarningsTracker/internal/ports"
)

const (
	// DefaultEndpoint is DashScope's OpenAI-compatible mode.
	DefaultEndpoint = "https://dashscope.aliyuncs.com/compatible-mode/v1"
	DefaultModel    = "qwen-turbo"
)

// Config configures the scorer; the endpoint can be any OpenAI-compatible API.
type Config struct {
	Endpoint    string
	Model       string
	APIKey      string
	MaxTokens   int64
	Temperature float64
	Timeout     time.Duration
	HTTPClient  *http.Client
}

// Scorer asks a chat-completions model to rate how a forecast affects the share price.
type Scorer struct {
	client      openai.Client
	model       string
	maxTokens   int64
	temperature float64
}

var _ ports.Scorer = (*Scorer)(nil)

// NewScorer builds a scorer from configuration.
func NewScorer(cfg Config) (*Scorer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("scorer api key is empty")
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEndpoint
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 150
	}
	if cfg.Temperature <= 0 {
		cfg.Temperature = 0.7
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.Endpoint),
		option.WithRequestTimeout(cfg.Timeout),
		option.WithMaxRetries(1),
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &Scorer{
		client:      openai.NewClient(opts...),
		model:       cfg.Model,
		maxTokens:   cfg.MaxTokens,
		temperature: cfg.Temperature,
	}, nil
}

// Score returns the model's short commentary with the score first.
func (s *Scorer) Score(ctx context.Context, report domain.Report) (string, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.UserMessage(Prompt(report)),
		},
		MaxTokens:   openai.Int(s.maxTokens),
		Temperature: openai.Float(s.temperature),
	})
	if err != nil {
		return "", fmt.Errorf("score %s: %w", report.Code, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("score %s: empty response", report.Code)
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// Prompt renders the scoring instruction for one announcement.
func Prompt(r domain.Report) string {
	announcement := fmt.Sprintf("%s（%s）发布业绩预告：%s，业绩变动幅度为%s，报告期为%s。",
		r.Name, r.Code, r.ForecastType, r.ChangeRange(), r.QuarterLabel())
	return "这是一家上市公司的消息：" + announcement + "\n\n" +
		"请判断该消息本身对这个公司的股价有什么影响，用-100到100分来打分，" +
		"打分权重是对公司营收和利润大幅持续提高的确定性越有利分数越高。" +
		"（不显示思考过程，输出简要分析总结，将评分结果写在前）"
}
