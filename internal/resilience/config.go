package resilience

import "time"

// Circuit breaker configuration constants
const (
	DefaultThreshold         = 5
	DefaultResetTimeout      = 30 * time.Second
	DefaultHalfOpenSuccesses = 3

	// OCR: a dead OCR service should fall back to tesseract quickly
	OCRThreshold         = 3
	OCRResetTimeout      = 15 * time.Second
	OCRHalfOpenSuccesses = 2

	// Webhook: availability alerts are rare, tolerate more failures
	WebhookThreshold         = 5
	WebhookResetTimeout      = 2 * time.Minute
	WebhookHalfOpenSuccesses = 1
)

// Config holds circuit breaker settings.
type Config struct {
	Threshold         int           // failures before opening
	ResetTimeout      time.Duration // wait before half-open attempt
	HalfOpenSuccesses int           // successes needed to close
}

// DefaultConfig returns production-ready defaults.
func DefaultConfig() Config {
	return Config{
		Threshold:         DefaultThreshold,
		ResetTimeout:      DefaultResetTimeout,
		HalfOpenSuccesses: DefaultHalfOpenSuccesses,
	}
}

// OCRConfig returns settings for the remote OCR client.
func OCRConfig() Config {
	return Config{
		Threshold:         OCRThreshold,
		ResetTimeout:      OCRResetTimeout,
		HalfOpenSuccesses: OCRHalfOpenSuccesses,
	}
}

// WebhookConfig returns settings for notification webhooks.
func WebhookConfig() Config {
	return Config{
		Threshold:         WebhookThreshold,
		ResetTimeout:      WebhookResetTimeout,
		HalfOpenSuccesses: WebhookHalfOpenSuccesses,
	}
}

func (c Config) withDefaults() Config {
	if c.Threshold <= 0 {
		c.Threshold = DefaultThreshold
	}
	if c.ResetTimeout <= 0 {
		c.ResetTimeout = DefaultResetTimeout
	}
	if c.HalfOpenSuccesses <= 0 {
		c.HalfOpenSuccesses = DefaultHalfOpenSuccesses
	}
	return c
}
