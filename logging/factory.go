package logging

import (
	"sync"
)

// Factory hands out named children of one root logger.
type Factory struct {
	root    Logger
	loggers sync.Map // map[string]Logger
}

// NewFactory creates a Factory whose loggers share the given root.
func NewFactory(root Logger) *Factory {
	if root == nil {
		root = NewNop()
	}
	return &Factory{root: root}
}

// GetLogger returns the logger for name, creating it on first use.
func (f *Factory) GetLogger(name string) Logger {
	if v, ok := f.loggers.Load(name); ok {
		return v.(Logger)
	}
	actual, _ := f.loggers.LoadOrStore(name, f.root.Named(name))
	return actual.(Logger)
}

// Root returns the unnamed root logger.
func (f *Factory) Root() Logger {
	return f.root
}
