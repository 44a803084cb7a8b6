// Package generator provides the text-generation capability used by the lab agents.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ashureev/ailab/internal/domain"
)

// ErrUnavailable wraps every generation failure. Callers treat it as a signal
// to substitute a fallback sentence.
var ErrUnavailable = errors.New("text generation unavailable")

// Request is a single generation call.
type Request struct {
	Role        domain.Role
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Generator produces one completion per call. Implementations make a single
// attempt and never retry.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// Func adapts a function to the Generator interface.
type Func func(ctx context.Context, req Request) (string, error)

// Generate calls f.
func (f Func) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// Provider names accepted by New.
const (
	ProviderOpenAI = "openai"
	ProviderGroq   = "groq"
	ProviderGRPC   = "grpc"
	ProviderStatic = "static"
)

// Config selects and configures a backend.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	BaseURL  string
	GRPCAddr string
	Timeout  time.Duration
}

// New builds the backend named by cfg.Provider.
func New(ctx context.Context, cfg Config) (Generator, error) {
	switch strings.ToLower(cfg.Provider) {
	case ProviderOpenAI:
		return NewOpenAI(cfg), nil
	case ProviderGroq:
		return NewGroq(cfg), nil
	case ProviderGRPC:
		c, err := NewGRPC(ctx, GRPCConfig{Address: cfg.GRPCAddr, RequestTimeout: cfg.Timeout}, nil)
		if err != nil {
			return nil, err
		}
		return c, nil
	case ProviderStatic, "":
		return NewStatic(), nil
	default:
		return nil, fmt.Errorf("unknown AI provider %q", cfg.Provider)
	}
}

func unavailable(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrUnavailable, fmt.Sprintf(format, args...))
}
