package anthropic

import "go.uber.org/zap"

// TokenUsage counts the tokens billed for one request.
type TokenUsage struct {
	InputTokens      int64
	OutputTokens     int64
	CacheWriteTokens int64
	CacheReadTokens  int64
}

// USD per million tokens.
type price struct{ in, out float64 }

var prices = map[string]price{
	"claude-haiku-4-5-20251001":  {0.80, 4.00},
	"claude-sonnet-4-5-20250929": {3.00, 15.00},
	"claude-opus-4-6":            {15.00, 75.00},
}

// Cache writes bill at 1.25x input, cache reads at 0.1x.
const (
	cacheWriteFactor = 1.25
	cacheReadFactor  = 0.1
)

// EstimateCost returns the USD cost of u under model, or 0 for an unpriced model.
func (u TokenUsage) EstimateCost(model string) float64 {
	p, ok := prices[model]
	if !ok {
		return 0
	}
	in := float64(u.InputTokens) + float64(u.CacheWriteTokens)*cacheWriteFactor + float64(u.CacheReadTokens)*cacheReadFactor
	return (in*p.in + float64(u.OutputTokens)*p.out) / 1e6
}

// LogCost logs the usage of one request against operation.
func (u TokenUsage) LogCost(model, operation string) {
	zap.L().Info("anthropic: usage",
		zap.String("model", model),
		zap.String("operation", operation),
		zap.Int64("input_tokens", u.InputTokens),
		zap.Int64("output_tokens", u.OutputTokens),
		zap.Int64("cache_write_tokens", u.CacheWriteTokens),
		zap.Int64("cache_read_tokens", u.CacheReadTokens),
		zap.Float64("estimated_cost_usd", u.EstimateCost(model)),
	)
}
