package tools

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/BaSui01/finagent/types"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// HandlerFunc runs a tool. It must be total: failures are returned as text.
type HandlerFunc func(ctx context.Context, argument string) string

// RateLimit caps calls per second for one tool.
type RateLimit struct {
	PerSecond float64
	Burst     int
}

// ToolSpec describes a registered tool.
type ToolSpec struct {
	Name        string
	Description string
	Handler     HandlerFunc

	// Timeout bounds one dispatch. Zero uses the registry default.
	Timeout time.Duration

	// RateLimit is optional.
	RateLimit *RateLimit
}

// DefaultToolTimeout applies to specs registered without a Timeout.
const DefaultToolTimeout = 30 * time.Second

// Registry holds tools by exact name, in registration order.
type Registry struct {
	mu       sync.RWMutex
	specs    map[string]ToolSpec
	order    []string
	limiters map[string]*rate.Limiter
	frozen   bool
	logger   *zap.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		specs:    make(map[string]ToolSpec),
		limiters: make(map[string]*rate.Limiter),
		logger:   logger.With(zap.String("component", "tool_registry")),
	}
}

// Register adds spec. Names are unique and case-sensitive.
func (r *Registry) Register(spec ToolSpec) error {
	if spec.Name == "" {
		return types.NewError(types.ErrInvalidRequest, "tool name is required").WithHTTPStatus(http.StatusBadRequest)
	}
	if spec.Handler == nil {
		return types.NewError(types.ErrInvalidRequest, "tool "+spec.Name+" has no handler").WithHTTPStatus(http.StatusBadRequest)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.frozen {
		return types.NewError(types.ErrRegistryFrozen, "registry is read-only after startup")
	}
	if _, exists := r.specs[spec.Name]; exists {
		return &DuplicateNameError{Name: spec.Name}
	}

	if spec.Timeout == 0 {
		spec.Timeout = DefaultToolTimeout
	}
	if spec.RateLimit != nil && spec.RateLimit.PerSecond > 0 {
		burst := spec.RateLimit.Burst
		if burst <= 0 {
			burst = 1
		}
		r.limiters[spec.Name] = rate.NewLimiter(rate.Limit(spec.RateLimit.PerSecond), burst)
	}

	r.specs[spec.Name] = spec
	r.order = append(r.order, spec.Name)

	r.logger.Info("tool registered", zap.String("name", spec.Name), zap.Duration("timeout", spec.Timeout))
	return nil
}

// Lookup returns the spec registered under exactly name.
func (r *Registry) Lookup(name string) (ToolSpec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	spec, ok := r.specs[name]
	if !ok {
		return ToolSpec{}, &UnknownToolError{Name: name}
	}
	return spec, nil
}

// Specs returns all specs in registration order.
func (r *Registry) Specs() []ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ToolSpec, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.specs[name])
	}
	return out
}

// Names returns tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Len returns the number of tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}

// Freeze makes the registry read-only.
func (r *Registry) Freeze() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.frozen {
		r.frozen = true
		r.logger.Info("tool registry frozen", zap.Int("tools", len(r.order)))
	}
}

// Frozen reports whether Freeze was called.
func (r *Registry) Frozen() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.frozen
}

func (r *Registry) allow(name string) bool {
	r.mu.RLock()
	limiter, ok := r.limiters[name]
	r.mu.RUnlock()
	return !ok || limiter.Allow()
}
