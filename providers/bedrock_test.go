package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type fakeBedrock struct {
	body  []byte
	err   error
	input *bedrockruntime.InvokeModelInput
}

func (f *fakeBedrock) InvokeModel(_ context.Context, in *bedrockruntime.InvokeModelInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error) {
	f.input = in
	if f.err != nil {
		return nil, f.err
	}
	return &bedrockruntime.InvokeModelOutput{Body: f.body}, nil
}

func TestBedrockProvider_CompleteFamilies(t *testing.T) {
	tests := []struct {
		name     string
		model    string
		body     string
		wantText string
		wantIn   int
		wantOut  int
	}{
		{
			name:     "anthropic",
			model:    "anthropic.claude-3-haiku-20240307-v1:0",
			body:     `{"id":"m1","content":[{"type":"text","text":"Nivea"}],"usage":{"input_tokens":7,"output_tokens":2}}`,
			wantText: "Nivea", wantIn: 7, wantOut: 2,
		},
		{
			name:     "titan",
			model:    "amazon.titan-text-express-v1",
			body:     `{"inputTextTokenCount":5,"results":[{"tokenCount":3,"outputText":"Dove"}]}`,
			wantText: "Dove", wantIn: 5, wantOut: 3,
		},
		{
			name:     "llama",
			model:    "meta.llama3-1-8b-instruct-v1:0",
			body:     `{"generation":"Oral-B","prompt_token_count":11,"generation_token_count":4}`,
			wantText: "Oral-B", wantIn: 11, wantOut: 4,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake := &fakeBedrock{body: []byte(tt.body)}
			p := newBedrockWithClient(fake, "eu-west-1")

			resp, err := p.Complete(context.Background(), Request{Model: tt.model, SystemPrompt: "sys", Prompt: "x"})
			if err != nil {
				t.Fatalf("Complete() error: %v", err)
			}
			if resp.Text != tt.wantText || resp.Usage.InputTokens != tt.wantIn || resp.Usage.OutputTokens != tt.wantOut {
				t.Errorf("unexpected response %+v", resp)
			}
			if aws.ToString(fake.input.ModelId) != tt.model {
				t.Errorf("ModelId = %q", aws.ToString(fake.input.ModelId))
			}
			if !json.Valid(fake.input.Body) {
				t.Error("request body is not valid JSON")
			}
		})
	}
}

func TestBedrockProvider_UnsupportedFamily(t *testing.T) {
	p := newBedrockWithClient(&fakeBedrock{}, "us-east-1")
	_, err := p.Complete(context.Background(), Request{Model: "cohere.command-r-v1:0", Prompt: "x"})
	var pe *Error
	if !errors.As(err, &pe) || pe.Kind != KindMalformed {
		t.Fatalf("expected malformed error, got %v", err)
	}
}

func TestBedrockProvider_Classify(t *testing.T) {
	msg := aws.String("m")
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"throttling", &types.ThrottlingException{Message: msg}, KindRateLimit},
		{"access denied", &types.AccessDeniedException{Message: msg}, KindAuth},
		{"validation", &types.ValidationException{Message: msg}, KindMalformed},
		{"quota", &types.ServiceQuotaExceededException{Message: msg}, KindQuota},
		{"model timeout", &types.ModelTimeoutException{Message: msg}, KindTransient},
		{"internal", &types.InternalServerException{Message: msg}, KindTransient},
		{"unavailable", &types.ServiceUnavailableException{Message: msg}, KindTransient},
		{"wrapped deadline", fmt.Errorf("op: %w", context.DeadlineExceeded), KindTransient},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newBedrockWithClient(&fakeBedrock{err: tt.err}, "us-east-1")
			_, err := p.Complete(context.Background(), Request{Model: "anthropic.claude-3-haiku-20240307-v1:0", Prompt: "x"})
			var pe *Error
			if !errors.As(err, &pe) {
				t.Fatalf("expected *Error, got %v", err)
			}
			if pe.Kind != tt.want {
				t.Errorf("Kind = %s, want %s", pe.Kind, tt.want)
			}
		})
	}
}
