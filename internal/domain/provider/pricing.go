package provider

// Rate is the price of a model in USD per 1000 tokens.
//
// To convert from provider pricing (typically per million tokens):
//
//	rate_per_1k = price_per_million / 1000
type Rate struct {
	Input  float64
	Output float64
}

// defaultRates covers the built-in catalog. Local models cost nothing.
var defaultRates = map[string]Rate{
	"gpt-4o":                     {Input: 0.0025, Output: 0.01},
	"gpt-4o-mini":                {Input: 0.00015, Output: 0.0006},
	"gpt-4-turbo":                {Input: 0.01, Output: 0.03},
	"gpt-4":                      {Input: 0.03, Output: 0.06},
	"gpt-4-32k":                  {Input: 0.06, Output: 0.12},
	"gpt-3.5-turbo":              {Input: 0.0005, Output: 0.0015},
	"gpt-3.5-turbo-instruct":     {Input: 0.0015, Output: 0.002},
	"o1":                         {Input: 0.015, Output: 0.06},
	"o1-mini":                    {Input: 0.003, Output: 0.012},
	"claude-3-5-sonnet-20241022": {Input: 0.003, Output: 0.015},
	"claude-3-5-haiku-20241022":  {Input: 0.0008, Output: 0.004},
	"claude-3-opus-20240229":     {Input: 0.015, Output: 0.075},
	"claude-3-haiku-20240307":    {Input: 0.00025, Output: 0.00125},
}

// PriceList estimates the spend of model calls.
type PriceList struct {
	rates map[string]Rate
}

// NewPriceList creates a price list seeded with the default rates.
// overrides replace or add entries.
func NewPriceList(overrides map[string]Rate) *PriceList {
	rates := make(map[string]Rate, len(defaultRates)+len(overrides))
	for id, r := range defaultRates {
		rates[id] = r
	}
	for id, r := range overrides {
		rates[id] = r
	}
	return &PriceList{rates: rates}
}

// Rate returns the rate of a model and whether one is known.
func (p *PriceList) Rate(modelID string) (Rate, bool) {
	r, ok := p.rates[modelID]
	return r, ok
}

// Estimate returns the cost in USD of the given token counts.
// Models without a known rate, including every ollama model, cost 0.
func (p *PriceList) Estimate(modelID string, promptTokens, completionTokens int) float64 {
	r, ok := p.rates[modelID]
	if !ok {
		return 0
	}
	return float64(promptTokens)/1000*r.Input + float64(completionTokens)/1000*r.Output
}
