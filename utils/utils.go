package utils

import (
	"fmt"
	"math"
	"math/rand"
	"time"
	"unsafe"

	json "github.com/bytedance/sonic"
	"github.com/kaptinlin/jsonrepair"
	"github.com/samber/lo"
)

// ParseLLMJSON repairs model output (stray commentary, trailing commas,
// unquoted keys) and unmarshals it into T.
func ParseLLMJSON[T any](raw string) (T, error) {
	repaired, err := jsonrepair.JSONRepair(raw)
	if err != nil {
		return lo.Empty[T](), fmt.Errorf("failed to repair JSON: %w", err)
	}

	var result T
	if err := json.Unmarshal(unsafe.Slice(unsafe.StringData(repaired), len(repaired)), &result); err != nil {
		return lo.Empty[T](), fmt.Errorf("failed to parse model output: %w", err)
	}
	return result, nil
}

// RetryWithBackoff runs op up to maxRetries extra times with jittered
// exponential backoff. Delays are capped at 5s.
func RetryWithBackoff[T any](op func() (T, error), maxRetries int) (T, error) {
	if maxRetries < 0 {
		maxRetries = 0
	}

	baseDelay := 100 * time.Millisecond
	maxDelay := 5 * time.Second

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		res, err := op()
		if err == nil {
			return res, nil
		}
		lastErr = err

		if attempt == maxRetries {
			break
		}

		delay := baseDelay << attempt
		if delay > maxDelay {
			delay = maxDelay
		}

		// Jitter within [delay/2, delay].
		half := delay / 2
		jitter := half + time.Duration(rand.Int63n(int64(delay-half)+1))
		time.Sleep(jitter)
	}

	return lo.Empty[T](), fmt.Errorf("after %d retries, last error: %w", maxRetries, lastErr)
}

func Avg(data []float64) float64 {
	if len(data) == 0 {
		return 0.0
	}
	return lo.Sum(data) / float64(len(data))
}

// StdDev is the sample standard deviation (n-1).
func StdDev(data []float64) float64 {
	if len(data) < 2 {
		return 0.0
	}

	mean := Avg(data)
	sumOfSquares := 0.0
	for _, val := range data {
		sumOfSquares += math.Pow(val-mean, 2)
	}

	variance := sumOfSquares / float64(len(data)-1)
	return math.Sqrt(variance)
}
