package extraction

import (
	"context"
	"fmt"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/imrishuroy/go-chat-orderflow/internal/orders"
)

const defaultModel = "gemini-2.0-flash"

// Generator is the part of the genai Models service the oracle needs.
// *genai.Models satisfies it.
type Generator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// GeminiConfig configures the Gemini oracle.
type GeminiConfig struct {
	Model   string
	Timeout time.Duration // per call; zero leaves the caller's deadline alone
}

// GeminiOracle implements Oracle on top of the Gemini API.
type GeminiOracle struct {
	gen      Generator
	model    string
	timeout  time.Duration
	validate *validatorv10.Validate
	logger   *zap.Logger
	nowFunc  func() time.Time
}

// NewGeminiClient creates a genai client for the Gemini Developer API.
func NewGeminiClient(ctx context.Context, apiKey string) (*genai.Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return client, nil
}

// NewGeminiOracle returns an oracle that calls gen with cfg.Model.
func NewGeminiOracle(gen Generator, cfg GeminiConfig, logger *zap.Logger) *GeminiOracle {
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GeminiOracle{
		gen:      gen,
		model:    model,
		timeout:  cfg.Timeout,
		validate: validatorv10.New(),
		logger:   logger.Named("oracle"),
		nowFunc:  time.Now,
	}
}

// Extract implements Oracle.
func (o *GeminiOracle) Extract(ctx context.Context, message string, prior *orders.OrderRecord) (orders.Fragment, error) {
	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	fail := func(err error) (orders.Fragment, error) {
		return orders.Fragment{}, &ExtractionError{Message: message, At: o.nowFunc(), Err: err}
	}

	resp, err := o.gen.GenerateContent(ctx, o.model, genai.Text(buildPrompt(message, prior)), &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(systemInstruction, genai.RoleUser),
		Temperature:       float32Ptr(0),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    fragmentSchema,
	})
	if err != nil {
		return fail(fmt.Errorf("generate content: %w", err))
	}
	if resp == nil {
		return fail(fmt.Errorf("%w: empty response", ErrMalformedOutput))
	}

	frag, dropped, err := parseFragment(resp.Text(), o.validate)
	if err != nil {
		return fail(err)
	}
	if len(dropped) > 0 {
		o.logger.Warn("dropped invalid items from fragment",
			zap.Int("dropped", len(dropped)),
			zap.Any("items", dropped))
	}
	return frag, nil
}

var fragmentSchema = &genai.Schema{
	Type: genai.TypeObject,
	Properties: map[string]*genai.Schema{
		"customer_name": {Type: genai.TypeString},
		"phone":         {Type: genai.TypeString},
		"address":       {Type: genai.TypeString},
		"delivery_time": {Type: genai.TypeString},
		"note":          {Type: genai.TypeString},
		"items": {
			Type: genai.TypeArray,
			Items: &genai.Schema{
				Type: genai.TypeObject,
				Properties: map[string]*genai.Schema{
					"name":     {Type: genai.TypeString},
					"quantity": {Type: genai.TypeInteger},
				},
				Required: []string{"name", "quantity"},
			},
		},
	},
	Required: []string{"items"},
}

func float32Ptr(f float32) *float32 { return &f }
