package ai

// Per-1000-token prices used for cost estimates.
const (
	InputPricePer1K  = 0.003
	OutputPricePer1K = 0.015
)

// EstimateTokens approximates the token count of s at four characters per token.
func EstimateTokens(s string) int {
	if s == "" {
		return 0
	}
	return max(1, len(s)/4)
}

// Cost estimates the dollar cost of one call from its prompt and answer.
func Cost(prompt, answer string) float64 {
	in := float64(EstimateTokens(prompt))
	out := float64(EstimateTokens(answer))
	return (in*InputPricePer1K + out*OutputPricePer1K) / 1000
}
