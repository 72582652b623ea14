package depadvise

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Compile-time interface compliance checks
var _ LayerVerifier = StaticVerifier{}
var _ LayerVerifier = (*FailingVerifier)(nil)
var _ LayerVerifier = (*SlowVerifier)(nil)

// StaticVerifier answers every layer with a fixed verdict. Useful for
// deterministic pipeline tests.
type StaticVerifier struct {
	// Results holds the verdict per layer. Layers not listed pass.
	Results map[Layer]bool

	// Kind classifies failures. Defaults to FailureRuntime when empty.
	Kind FailureKind
}

// NewPassingVerifier returns a verifier that passes every layer.
func NewPassingVerifier() StaticVerifier {
	return StaticVerifier{}
}

// VerifyLayer returns the configured verdict for the layer.
func (v StaticVerifier) VerifyLayer(_ context.Context, _ ConfigurationSet, layer Layer) (LayerVerification, error) {
	passed := true
	if verdict, ok := v.Results[layer]; ok {
		passed = verdict
	}
	if passed {
		return LayerVerification{Passed: true, Log: fmt.Sprintf("layer %s: ok", layer)}, nil
	}
	kind := v.Kind
	if kind == FailureNone {
		kind = FailureRuntime
	}
	return LayerVerification{
		Passed: false,
		Kind:   kind,
		Log:    fmt.Sprintf("layer %s: failed", layer),
	}, nil
}

// FailingVerifier always returns an error. Useful for testing
// infrastructure failure paths.
type FailingVerifier struct {
	Err error
}

// NewFailingVerifier creates a verifier that fails with the given
// error.
func NewFailingVerifier(err error) *FailingVerifier {
	if err == nil {
		err = errors.New("verification failed")
	}
	return &FailingVerifier{Err: err}
}

// VerifyLayer always returns an error.
func (v *FailingVerifier) VerifyLayer(context.Context, ConfigurationSet, Layer) (LayerVerification, error) {
	return LayerVerification{}, v.Err
}

// SlowVerifier delays before passing, or hangs on the configurations it
// is told to stall, honoring context cancellation. Useful for testing
// timeout handling.
type SlowVerifier struct {
	// Delay is applied to every layer verification.
	Delay time.Duration

	// StallNames lists configuration names that block until the context
	// expires.
	StallNames map[string]bool
}

// VerifyLayer sleeps for Delay, or until the context ends for stalled
// configurations.
func (v *SlowVerifier) VerifyLayer(ctx context.Context, cfg ConfigurationSet, layer Layer) (LayerVerification, error) {
	if v.StallNames[cfg.Name] {
		<-ctx.Done()
		return LayerVerification{}, ctx.Err()
	}
	if v.Delay > 0 {
		select {
		case <-time.After(v.Delay):
		case <-ctx.Done():
			return LayerVerification{}, ctx.Err()
		}
	}
	return LayerVerification{Passed: true, Log: fmt.Sprintf("layer %s: ok", layer)}, nil
}
