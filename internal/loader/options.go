package loader

import "github.com/sirupsen/logrus"

type config struct {
	log  logrus.FieldLogger
	name string
}

// Option configures a Pipeline or Materializer.
type Option func(*config)

// WithLogger sets the logger used for per-record events.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *config) {
		c.log = l
	}
}

// WithName sets the record name reported in log fields. It defaults to the
// record type's name.
func WithName(name string) Option {
	return func(c *config) {
		c.name = name
	}
}

func newConfig(defaultName string, opts []Option) *config {
	c := &config{
		log:  logrus.StandardLogger(),
		name: defaultName,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}
