package provider

import (
	"fmt"
	"strings"
	"time"

	"interviewer/pkg/provider/internal/llmimpl/anthropic"
	"interviewer/pkg/provider/internal/llmimpl/google"
	"interviewer/pkg/provider/internal/llmimpl/openai"
	"interviewer/pkg/provider/llm"
	"interviewer/pkg/provider/middleware/circuit"
	"interviewer/pkg/provider/middleware/metrics"
	"interviewer/pkg/provider/middleware/ratelimit"
	"interviewer/pkg/provider/middleware/retry"
	"interviewer/pkg/provider/middleware/timeout"
)

// Known provider vendors. The set is closed: selection is parse-and-dispatch,
// there is no plugin registry.
const (
	VendorAnthropic = "anthropic"
	VendorOpenAI    = "openai"
	VendorGoogle    = "google"
	VendorMock      = "mock"
)

// ParseModelSpec splits a "vendor:model" string and validates the vendor.
func ParseModelSpec(spec string) (vendor, model string, err error) {
	vendor, model, found := strings.Cut(spec, ":")
	if !found || vendor == "" || model == "" {
		return "", "", fmt.Errorf("model spec %q must have the form vendor:model", spec)
	}
	switch vendor {
	case VendorAnthropic, VendorOpenAI, VendorGoogle, VendorMock:
		return vendor, model, nil
	default:
		return "", "", fmt.Errorf("unsupported provider vendor %q (supported: anthropic, openai, google, mock)", vendor)
	}
}

// ResilienceConfig bundles the middleware settings for one factory.
type ResilienceConfig struct {
	Retry     retry.Config
	Circuit   circuit.Config
	RateLimit map[string]ratelimit.Config // keyed by vendor
	Timeout   time.Duration
}

// DefaultResilienceConfig returns workable defaults for interactive use.
func DefaultResilienceConfig() ResilienceConfig {
	return ResilienceConfig{
		Retry:   retry.DefaultConfig,
		Circuit: circuit.DefaultConfig,
		RateLimit: map[string]ratelimit.Config{
			VendorAnthropic: {TokensPerMinute: 100000, Burst: 50000, MaxConcurrency: 4},
			VendorOpenAI:    {TokensPerMinute: 100000, Burst: 50000, MaxConcurrency: 4},
			VendorGoogle:    {TokensPerMinute: 100000, Burst: 50000, MaxConcurrency: 4},
		},
		Timeout: 60 * time.Second,
	}
}

// Factory builds Providers with the full middleware chain. Circuit breakers
// and rate limiters are shared per vendor across all clients the factory
// creates.
type Factory struct {
	recorder   metrics.Recorder
	breakers   map[string]circuit.Breaker
	limiterMap *ratelimit.ProviderLimiterMap
	resilience ResilienceConfig
}

// NewFactory creates a factory with a Prometheus metrics recorder.
func NewFactory(resilience ResilienceConfig) *Factory {
	return newFactory(resilience, metrics.NewPrometheusRecorder())
}

// NewFactoryWithRecorder creates a factory with a caller-supplied recorder.
func NewFactoryWithRecorder(resilience ResilienceConfig, recorder metrics.Recorder) *Factory {
	return newFactory(resilience, recorder)
}

func newFactory(resilience ResilienceConfig, recorder metrics.Recorder) *Factory {
	breakers := make(map[string]circuit.Breaker)
	for _, vendor := range []string{VendorAnthropic, VendorOpenAI, VendorGoogle} {
		breakers[vendor] = circuit.New(resilience.Circuit)
	}
	return &Factory{
		recorder:   recorder,
		breakers:   breakers,
		limiterMap: ratelimit.NewProviderLimiterMap(resilience.RateLimit),
		resilience: resilience,
	}
}

// NewProvider creates a Provider for a "vendor:model" spec. The mock vendor
// needs no API key and bypasses the middleware chain entirely.
func (f *Factory) NewProvider(modelSpec, apiKey string) (Provider, error) {
	vendor, model, err := ParseModelSpec(modelSpec)
	if err != nil {
		return nil, err
	}

	if vendor == VendorMock {
		return NewMockProvider(), nil
	}
	if apiKey == "" {
		return nil, fmt.Errorf("no API key provided for vendor %s", vendor)
	}

	var rawClient llm.Client
	switch vendor {
	case VendorAnthropic:
		rawClient = anthropic.NewClaudeClient(apiKey, model)
	case VendorOpenAI:
		rawClient = openai.NewOfficialClient(apiKey, model)
	case VendorGoogle:
		rawClient = google.NewGeminiClient(apiKey, model)
	default:
		return nil, fmt.Errorf("unsupported provider vendor %q", vendor)
	}

	breaker, ok := f.breakers[vendor]
	if !ok {
		return nil, fmt.Errorf("no circuit breaker for vendor %s", vendor)
	}
	limiter, err := f.limiterMap.GetLimiter(vendor)
	if err != nil {
		return nil, fmt.Errorf("rate limiter lookup failed: %w", err)
	}

	// Metrics -> CircuitBreaker -> Retry -> RateLimit -> Timeout -> RawClient
	client := llm.Chain(rawClient,
		metrics.Middleware(f.recorder, nil),
		circuit.Middleware(breaker),
		retry.Middleware(retry.NewPolicy(f.resilience.Retry, nil)),
		ratelimit.Middleware(limiter, nil, f.recorder),
		timeout.Middleware(f.resilience.Timeout),
	)

	return NewLLMProvider(vendor, client), nil
}
