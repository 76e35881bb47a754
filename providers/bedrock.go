package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go"
)

// bedrockInvoker is the subset of the Bedrock runtime client in use, so
// tests can substitute a fake.
type bedrockInvoker interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockProvider calls AWS Bedrock's InvokeModel for Anthropic Claude,
// Amazon Titan and Meta Llama model families. Credentials come from the
// default AWS chain.
type BedrockProvider struct {
	Base
	client bedrockInvoker
	region string
}

// NewBedrock creates a Bedrock provider. region defaults to us-east-1.
func NewBedrock(ctx context.Context, region string) (*BedrockProvider, error) {
	if region == "" {
		region = "us-east-1"
	}
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
		// One attempt per model; the coordinator owns fallback.
		config.WithRetryMaxAttempts(1),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return newBedrockWithClient(bedrockruntime.NewFromConfig(cfg), region), nil
}

func newBedrockWithClient(client bedrockInvoker, region string) *BedrockProvider {
	return &BedrockProvider{
		Base:   Base{name: "bedrock", baseURL: fmt.Sprintf("https://bedrock-runtime.%s.amazonaws.com", region)},
		client: client,
		region: region,
	}
}

// SupportedModels returns well-known Bedrock model IDs.
func (p *BedrockProvider) SupportedModels() []string {
	return []string{
		"anthropic.claude-3-5-sonnet-20241022-v2:0",
		"anthropic.claude-3-5-haiku-20241022-v1:0",
		"anthropic.claude-3-haiku-20240307-v1:0",
		"amazon.titan-text-express-v1",
		"amazon.titan-text-premier-v1:0",
		"meta.llama3-1-70b-instruct-v1:0",
		"meta.llama3-1-8b-instruct-v1:0",
	}
}

// SupportsModel accepts the model families this provider can encode.
func (p *BedrockProvider) SupportsModel(model string) bool {
	return hasAnyPrefix(model, "anthropic.", "amazon.titan", "meta.llama")
}

type bedrockAnthropicRequest struct {
	AnthropicVersion string             `json:"anthropic_version"`
	MaxTokens        int                `json:"max_tokens"`
	Messages         []anthropicMessage `json:"messages"`
	Temperature      *float64           `json:"temperature,omitempty"`
	System           string             `json:"system,omitempty"`
}

type bedrockTitanConfig struct {
	MaxTokenCount int      `json:"maxTokenCount,omitempty"`
	Temperature   *float64 `json:"temperature,omitempty"`
}

type bedrockTitanRequest struct {
	InputText            string             `json:"inputText"`
	TextGenerationConfig bedrockTitanConfig `json:"textGenerationConfig"`
}

type bedrockTitanResponse struct {
	InputTextTokenCount int `json:"inputTextTokenCount"`
	Results             []struct {
		TokenCount int    `json:"tokenCount"`
		OutputText string `json:"outputText"`
	} `json:"results"`
}

type bedrockLlamaRequest struct {
	Prompt      string   `json:"prompt"`
	MaxGenLen   int      `json:"max_gen_len,omitempty"`
	Temperature *float64 `json:"temperature,omitempty"`
}

type bedrockLlamaResponse struct {
	Generation           string `json:"generation"`
	PromptTokenCount     int    `json:"prompt_token_count"`
	GenerationTokenCount int    `json:"generation_token_count"`
}

// Complete encodes req for the model family, invokes it and decodes the
// family-specific response.
func (p *BedrockProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := req.Validate(); err != nil {
		return nil, &Error{Provider: p.name, Kind: KindMalformed, Err: err}
	}

	var payload any
	switch {
	case strings.HasPrefix(req.Model, "anthropic."):
		payload = bedrockAnthropicRequest{
			AnthropicVersion: "bedrock-2023-05-31",
			MaxTokens:        req.maxTokens(),
			Messages:         []anthropicMessage{{Role: "user", Content: req.Prompt}},
			Temperature:      req.Temperature,
			System:           req.SystemPrompt,
		}
	case strings.HasPrefix(req.Model, "amazon.titan"):
		prompt := req.Prompt
		if req.SystemPrompt != "" {
			prompt = req.SystemPrompt + "\n\n" + prompt
		}
		payload = bedrockTitanRequest{
			InputText:            prompt,
			TextGenerationConfig: bedrockTitanConfig{MaxTokenCount: req.maxTokens(), Temperature: req.Temperature},
		}
	case strings.HasPrefix(req.Model, "meta.llama"):
		payload = bedrockLlamaRequest{
			Prompt:      llamaPrompt(req.SystemPrompt, req.Prompt),
			MaxGenLen:   req.maxTokens(),
			Temperature: req.Temperature,
		}
	default:
		return nil, &Error{Provider: p.name, Kind: KindMalformed, Message: "unsupported Bedrock model family: " + req.Model}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, &Error{Provider: p.name, Kind: KindMalformed, Message: "failed to marshal request", Err: err}
	}

	output, err := p.client.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(req.Model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return nil, p.classify(err)
	}

	resp := &Response{Model: req.Model, Provider: p.name}
	switch payload.(type) {
	case bedrockAnthropicRequest:
		var out anthropicResponse
		if err := json.Unmarshal(output.Body, &out); err != nil {
			return nil, &Error{Provider: p.name, Kind: KindTransient, Message: "failed to unmarshal response", Err: err}
		}
		var text strings.Builder
		for _, block := range out.Content {
			if block.Type == "text" {
				text.WriteString(block.Text)
			}
		}
		resp.ID = out.ID
		resp.Text = text.String()
		resp.Usage = Usage{InputTokens: out.Usage.InputTokens, OutputTokens: out.Usage.OutputTokens}
	case bedrockTitanRequest:
		var out bedrockTitanResponse
		if err := json.Unmarshal(output.Body, &out); err != nil {
			return nil, &Error{Provider: p.name, Kind: KindTransient, Message: "failed to unmarshal response", Err: err}
		}
		resp.Usage.InputTokens = out.InputTextTokenCount
		for i, r := range out.Results {
			if i == 0 {
				resp.Text = r.OutputText
			}
			resp.Usage.OutputTokens += r.TokenCount
		}
	case bedrockLlamaRequest:
		var out bedrockLlamaResponse
		if err := json.Unmarshal(output.Body, &out); err != nil {
			return nil, &Error{Provider: p.name, Kind: KindTransient, Message: "failed to unmarshal response", Err: err}
		}
		resp.Text = out.Generation
		resp.Usage = Usage{InputTokens: out.PromptTokenCount, OutputTokens: out.GenerationTokenCount}
	}
	return resp, nil
}

func llamaPrompt(system, user string) string {
	var sb strings.Builder
	sb.WriteString("<|begin_of_text|>")
	if system != "" {
		fmt.Fprintf(&sb, "<|start_header_id|>system<|end_header_id|>\n\n%s<|eot_id|>\n", system)
	}
	fmt.Fprintf(&sb, "<|start_header_id|>user<|end_header_id|>\n\n%s<|eot_id|>\n", user)
	sb.WriteString("<|start_header_id|>assistant<|end_header_id|>\n\n")
	return sb.String()
}

// classify maps Bedrock's modelled exceptions to failure kinds.
func (p *BedrockProvider) classify(err error) error {
	var (
		throttling   *types.ThrottlingException
		accessDenied *types.AccessDeniedException
		validation   *types.ValidationException
		quota        *types.ServiceQuotaExceededException
		timeout      *types.ModelTimeoutException
		internal     *types.InternalServerException
		unavailable  *types.ServiceUnavailableException
		notReady     *types.ModelNotReadyException
		notFound     *types.ResourceNotFoundException
	)
	kind := Kind("")
	switch {
	case errors.As(err, &throttling):
		kind = KindRateLimit
	case errors.As(err, &accessDenied):
		kind = KindAuth
	case errors.As(err, &validation), errors.As(err, &notFound):
		kind = KindMalformed
	case errors.As(err, &quota):
		kind = KindQuota
	case errors.As(err, &timeout), errors.As(err, &internal), errors.As(err, &unavailable), errors.As(err, &notReady):
		kind = KindTransient
	}
	if kind == "" {
		return Classify(p.name, err)
	}
	e := &Error{Provider: p.name, Kind: kind, Err: err}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		e.Message = apiErr.ErrorCode() + ": " + apiErr.ErrorMessage()
	}
	return e
}
