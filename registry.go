package tsaclient

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/digitorus/tsaclient/internal/metrics"
)

// SourceConfig describes how to reach a TSA.
type SourceConfig struct {
	URL      string
	Username string // customer id in vendor mode
	Password string

	// VendorMode replaces HTTP Basic with per-request identity tokens.
	VendorMode bool
}

// Source is a configured TSA endpoint: where to send requests and how to
// authenticate them.
type Source struct {
	URL       *url.URL
	Transport *Transport
	Auth      Authenticator
}

// Post sends a DER TimeStampReq and returns the raw TimeStampResp.
func (s *Source) Post(ctx context.Context, tsq []byte) ([]byte, error) {
	header := http.Header{"Accept": {ContentTypeReply}}
	for k, vs := range s.Auth.Headers(s.URL, tsq) {
		header[k] = vs
	}
	start := time.Now()
	defer func() { metrics.RecordTSARoundTrip("timestamp", time.Since(start)) }()
	return s.Transport.Post(ctx, s.URL.String(), tsq, header)
}

// SourceRegistry lazily builds the process-wide Source. The first successful
// build is cached for the lifetime of the registry; a failed build is not, so
// a later call after the configuration was corrected succeeds.
type SourceRegistry struct {
	load func() SourceConfig
	opts options

	mu     sync.Mutex
	source atomic.Pointer[Source]
	builds atomic.Int64
}

// NewSourceRegistry returns a registry over a fixed configuration.
func NewSourceRegistry(cfg SourceConfig, opts ...Option) *SourceRegistry {
	return NewSourceRegistryFunc(func() SourceConfig { return cfg }, opts...)
}

// NewSourceRegistryFunc returns a registry that reads its configuration from
// load on every call until a Source has been built.
func NewSourceRegistryFunc(load func() SourceConfig, opts ...Option) *SourceRegistry {
	return &SourceRegistry{load: load, opts: buildOptions(opts)}
}

// Available reports whether a TSA URL is configured.
func (r *SourceRegistry) Available() bool {
	if r.source.Load() != nil {
		return true
	}
	return strings.TrimSpace(r.load().URL) != ""
}

// Get returns the cached Source, building it on first use.
func (r *SourceRegistry) Get() (*Source, error) {
	if s := r.source.Load(); s != nil {
		return s, nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if s := r.source.Load(); s != nil {
		return s, nil
	}

	cfg := r.load()
	if strings.TrimSpace(cfg.URL) == "" {
		return nil, fmt.Errorf("%w: TSA URL is empty", ErrNotConfigured)
	}

	r.builds.Add(1)
	s, err := buildSource(cfg, r.opts)
	if err != nil {
		r.opts.log.WithError(err).Error("cannot configure timestamp source")
		return nil, err
	}
	r.source.Store(s)
	return s, nil
}

func buildSource(cfg SourceConfig, o options) (*Source, error) {
	u, err := url.Parse(strings.TrimSpace(cfg.URL))
	if err != nil {
		return nil, fmt.Errorf("%w: TSA URL: %v", ErrConfiguration, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" || u.Host == "" {
		return nil, fmt.Errorf("%w: TSA URL %q must be an absolute http(s) URL", ErrConfiguration, cfg.URL)
	}

	log := o.log.WithField("url", u.Redacted())
	s := &Source{URL: u, Transport: NewTransport(o.client, o.log)}

	switch {
	case cfg.VendorMode:
		id, err := ParseCustomerID(cfg.Username)
		if err != nil {
			return nil, err
		}
		if cfg.Password == "" {
			return nil, fmt.Errorf("%w: vendor mode requires a password", ErrConfiguration)
		}
		s.Auth = &VendorAuth{CustomerID: id, Password: cfg.Password, Log: o.log}
		log.WithField("customer_id", id).Info("timestamp source configured with vendor identity authentication")
	case cfg.Username != "":
		s.Auth = NewBasicAuth(u, cfg.Username, cfg.Password)
		log.WithField("username", cfg.Username).Info("timestamp source configured with basic authentication")
	default:
		s.Auth = NoAuth{}
		log.Info("timestamp source configured without authentication")
	}
	return s, nil
}

// ParseCustomerID parses a decimal vendor customer id.
func ParseCustomerID(s string) (int32, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(s), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: customer id %q is not a 32-bit integer", ErrConfiguration, s)
	}
	return int32(id), nil
}
