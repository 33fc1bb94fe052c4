package bootstrap

import (
	"fmt"
	"sync"

	"mlwio/internal/shared/logging"
)

// BootstrapStage is one step of server startup.
type BootstrapStage struct {
	Name     string
	Required bool // failure aborts startup; otherwise recorded as degraded
	Init     func() error
}

// DegradedComponents tracks optional stages that failed without stopping
// the server. /api/health reports them.
type DegradedComponents struct {
	mu         sync.RWMutex
	components map[string]string
}

// NewDegradedComponents creates an empty tracker.
func NewDegradedComponents() *DegradedComponents {
	return &DegradedComponents{components: make(map[string]string)}
}

// Record marks a component as degraded.
func (d *DegradedComponents) Record(name, reason string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.components[name] = reason
}

// Map returns a snapshot of all degraded components.
func (d *DegradedComponents) Map() map[string]string {
	if d == nil {
		return nil
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]string, len(d.components))
	for k, v := range d.components {
		out[k] = v
	}
	return out
}

// IsEmpty reports whether nothing is degraded.
func (d *DegradedComponents) IsEmpty() bool {
	if d == nil {
		return true
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.components) == 0
}

// RunStages runs stages in order. A failing required stage stops the run.
func RunStages(stages []BootstrapStage, degraded *DegradedComponents, logger logging.Logger) error {
	logger = logging.OrNop(logger)
	for _, stage := range stages {
		logger.Info("[Bootstrap] Running stage: %s (required=%v)", stage.Name, stage.Required)
		if err := stage.Init(); err != nil {
			if stage.Required {
				return fmt.Errorf("required stage %q failed: %w", stage.Name, err)
			}
			logger.Warn("[Bootstrap] Optional stage %q failed: %v (continuing in degraded mode)", stage.Name, err)
			if degraded != nil {
				degraded.Record(stage.Name, err.Error())
			}
		}
	}
	return nil
}
