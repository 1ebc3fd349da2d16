package nav

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/five82/termstack/internal/config"
	"github.com/five82/termstack/internal/template"
)

var (
	// ErrNoRoute means no rule matched and there is no default.
	ErrNoRoute = errors.New("no navigation rule matched")
	// ErrUnknownPage means a target names a page that does not exist.
	ErrUnknownPage = errors.New("unknown page")
)

// Router evaluates navigation rules.
type Router struct {
	engine *template.Engine
	logger *slog.Logger
}

func NewRouter(engine *template.Engine, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{engine: engine, logger: logger}
}

// Resolve returns the target of the first rule whose condition is true,
// else the default. A condition that fails to evaluate counts as false.
func (r *Router) Resolve(n *config.Navigation, s template.Scope) (config.Target, error) {
	if n == nil {
		return config.Target{}, ErrNoRoute
	}
	for i, rule := range n.Rules {
		if rule.Condition == "" {
			return rule.Target, nil
		}
		ok, err := r.engine.Evaluate(rule.Condition, s)
		if err != nil {
			r.logger.Warn("navigation condition failed", "rule", i, "condition", rule.Condition, "error", err)
			continue
		}
		if ok {
			return rule.Target, nil
		}
	}
	if n.Default != nil {
		return *n.Default, nil
	}
	return config.Target{}, fmt.Errorf("%w: %d rules evaluated", ErrNoRoute, len(n.Rules))
}
