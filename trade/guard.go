package trade

// PriceImpactPct is the fractional loss in USD value between what goes
// into a swap and what is expected back, as a percentage of the input.
// Negative when the swap returns more value than it consumes.
func PriceImpactPct(amountInUSD, amountOutUSD float64) float64 {
	if amountInUSD <= 0 {
		return 0
	}
	return (amountInUSD - amountOutUSD) / amountInUSD * 100
}

// CheckImpact applies the execution guard: impact strictly greater than
// the ceiling is rejected, impact exactly at the ceiling is accepted,
// and negative impact always passes.
func CheckImpact(amountInUSD, amountOutUSD, ceilingPct float64) (impactPct float64, ok bool) {
	impactPct = PriceImpactPct(amountInUSD, amountOutUSD)
	return impactPct, impactPct <= ceilingPct
}

// MinOut derives the minimum acceptable output from a quoted amount and
// a slippage tolerance in percent.
func MinOut(quotedOut, slippagePct float64) float64 {
	return quotedOut * (1 - slippagePct/100)
}
