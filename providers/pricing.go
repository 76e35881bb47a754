package providers

// ModelPricing holds list prices in USD per 1 million tokens.
type ModelPricing struct {
	InputPer1M  float64
	OutputPer1M float64
}

// PerUnit converts the list price to USD per single token.
func (p ModelPricing) PerUnit() (input, output float64) {
	return p.InputPer1M / 1_000_000, p.OutputPer1M / 1_000_000
}

// PricingTable maps "provider/model" keys to public list prices. It is
// best-effort and only used to fill model costs left unset in
// configuration.
var PricingTable = map[string]ModelPricing{
	"openai/gpt-4o":        {InputPer1M: 2.50, OutputPer1M: 10.00},
	"openai/gpt-4o-mini":   {InputPer1M: 0.15, OutputPer1M: 0.60},
	"openai/gpt-4.1":       {InputPer1M: 2.00, OutputPer1M: 8.00},
	"openai/gpt-4.1-mini":  {InputPer1M: 0.40, OutputPer1M: 1.60},
	"openai/gpt-3.5-turbo": {InputPer1M: 0.50, OutputPer1M: 1.50},

	"anthropic/claude-sonnet-4-20250514":   {InputPer1M: 3.00, OutputPer1M: 15.00},
	"anthropic/claude-3-5-sonnet-20241022": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"anthropic/claude-3-5-haiku-20241022":  {InputPer1M: 0.80, OutputPer1M: 4.00},
	"anthropic/claude-3-haiku-20240307":    {InputPer1M: 0.25, OutputPer1M: 1.25},

	"gemini/gemini-2.0-flash":      {InputPer1M: 0.10, OutputPer1M: 0.40},
	"gemini/gemini-2.0-flash-lite": {InputPer1M: 0.075, OutputPer1M: 0.30},
	"gemini/gemini-1.5-pro":        {InputPer1M: 1.25, OutputPer1M: 5.00},
	"gemini/gemini-1.5-flash":      {InputPer1M: 0.075, OutputPer1M: 0.30},

	"bedrock/anthropic.claude-3-5-sonnet-20241022-v2:0": {InputPer1M: 3.00, OutputPer1M: 15.00},
	"bedrock/anthropic.claude-3-5-haiku-20241022-v1:0":  {InputPer1M: 0.80, OutputPer1M: 4.00},
	"bedrock/anthropic.claude-3-haiku-20240307-v1:0":    {InputPer1M: 0.25, OutputPer1M: 1.25},
	"bedrock/amazon.titan-text-express-v1":              {InputPer1M: 0.20, OutputPer1M: 0.60},
	"bedrock/meta.llama3-1-70b-instruct-v1:0":           {InputPer1M: 0.72, OutputPer1M: 0.72},
	"bedrock/meta.llama3-1-8b-instruct-v1:0":            {InputPer1M: 0.22, OutputPer1M: 0.22},
}

// ListPrice looks up pricing by provider and model. Local providers such as
// ollama are free.
func ListPrice(provider, model string) (ModelPricing, bool) {
	if provider == "ollama" {
		return ModelPricing{}, true
	}
	p, ok := PricingTable[provider+"/"+model]
	return p, ok
}
