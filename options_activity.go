package opts

import "github.com/goliatone/go-optstore/pkg/activity"

// WithActivityHooks sends lifecycle events (layer applied, value set, reload)
// to hooks. Nil entries are dropped. A failing hook is logged and never fails
// the operation that triggered it.
func WithActivityHooks(hooks activity.Hooks) Option {
	normalized := cloneActivityHooks(hooks)
	return func(cfg *optionsConfig) {
		cfg.activityHooks = normalized
	}
}

// WithActivityChannel sets the channel stamped on emitted events.
func WithActivityChannel(channel string) Option {
	return func(cfg *optionsConfig) {
		cfg.activityChannel = channel
	}
}

// ActivityHooks returns a copy of the configured hooks.
func (o *Options) ActivityHooks() activity.Hooks {
	if o == nil {
		return nil
	}
	return cloneActivityHooks(o.cfg.activityHooks)
}

func cloneActivityHooks(hooks activity.Hooks) activity.Hooks {
	var normalized activity.Hooks
	for _, hook := range hooks {
		if hook != nil {
			normalized = append(normalized, hook)
		}
	}
	return normalized
}
