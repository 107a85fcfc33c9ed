package quota

import "time"

type options struct {
	now func() time.Time
}

// Option adjusts construction of a quota component.
type Option func(*options)

// WithNow overrides the wall clock, used by tests to pin time buckets and
// timestamps.
func WithNow(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func applyOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
