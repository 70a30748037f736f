package opts

// Scope names used by the built-in sources.
const (
	ScopeDefaults = "defaults"
	ScopeFile     = "file"
	ScopeEnv      = "env"
	ScopeRuntime  = "runtime"
)

const (
	// Recommended priorities for the built-in layers. Higher numbers win.
	ScopePriorityDefaults = 100
	ScopePriorityFile     = 200
	ScopePriorityEnv      = 300
	// ScopePriorityRuntime is above every source so Set always wins until the
	// next Reload.
	ScopePriorityRuntime = 1000
)

func runtimeScope() Scope {
	return NewScope(ScopeRuntime, ScopePriorityRuntime, WithScopeLabel("Runtime"))
}
