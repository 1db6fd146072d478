package tsaclient

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

type options struct {
	log    logrus.FieldLogger
	client *http.Client
	now    func() time.Time
}

// Option configures a SourceRegistry, Service or CreditClient.
type Option func(*options)

// WithLogger sets the logger. The default is logrus.StandardLogger().
func WithLogger(log logrus.FieldLogger) Option {
	return func(o *options) { o.log = log }
}

// WithHTTPClient sets the client used to reach the TSA. The default is
// http.DefaultClient, which has no timeout.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{
		log:    logrus.StandardLogger(),
		client: http.DefaultClient,
		now:    time.Now,
	}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}
