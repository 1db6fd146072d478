package tsaclient

import (
	"context"
	"crypto/sha1"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/digitorus/tsaclient/identity"
	"github.com/digitorus/tsaclient/internal/metrics"
)

// CreditResult is the remaining balance reported by a vendor TSA.
type CreditResult struct {
	RemainingCredit int64  `json:"remainingCredit"`
	CustomerID      int32  `json:"customerId"`
	RawResponse     string `json:"rawResponse"`
}

// CreditClient queries the remaining timestamp credit of a vendor TSA
// customer.
type CreditClient struct {
	cfg       SourceConfig
	transport *Transport
	opts      options

	// Identity tunes token generation; nil uses the defaults.
	Identity *identity.Options
}

// NewCreditClient returns a client for the TSA in cfg.
func NewCreditClient(cfg SourceConfig, opts ...Option) *CreditClient {
	o := buildOptions(opts)
	return &CreditClient{
		cfg:       cfg,
		transport: NewTransport(o.client, o.log),
		opts:      o,
	}
}

// Available reports whether vendor mode is enabled and the URL, customer id
// and password are all set.
func (c *CreditClient) Available() bool {
	return c.cfg.VendorMode &&
		strings.TrimSpace(c.cfg.URL) != "" &&
		strings.TrimSpace(c.cfg.Username) != "" &&
		c.cfg.Password != ""
}

// CheckCredit asks the TSA for the remaining credit of the configured
// customer. A body that is not a decimal integer yields a zero balance.
func (c *CreditClient) CheckCredit(ctx context.Context) (*CreditResult, error) {
	res, err := c.checkCredit(ctx)
	metrics.RecordCreditQuery(err)
	return res, err
}

func (c *CreditClient) checkCredit(ctx context.Context) (*CreditResult, error) {
	if !c.Available() {
		return nil, fmt.Errorf("%w: vendor credit query needs vendor mode, URL, customer id and password", ErrNotConfigured)
	}
	id, err := ParseCustomerID(c.cfg.Username)
	if err != nil {
		return nil, err
	}
	log := c.opts.log.WithField("customer_id", id)

	customer := strconv.FormatInt(int64(id), 10)
	now := strconv.FormatInt(c.opts.now().UnixMilli(), 10)
	authHash := sha1.Sum([]byte(customer + now))

	tok, err := identity.Encrypt(id, c.cfg.Password, authHash[:], c.Identity)
	if err != nil {
		return nil, fmt.Errorf("credit query: %w", err)
	}

	header := http.Header{
		HeaderIdentity:      {tok},
		HeaderCreditRequest: {customer},
		HeaderCreditTime:    {now},
		"User-Agent":        {VendorUserAgent},
	}
	start := time.Now()
	body, err := c.transport.Post(ctx, strings.TrimSpace(c.cfg.URL), nil, header)
	metrics.RecordTSARoundTrip("credit", time.Since(start))
	if err != nil {
		log.WithError(err).Warn("credit query failed")
		return nil, fmt.Errorf("credit query: %w", err)
	}

	raw := strings.TrimSpace(string(body))
	credit, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.WithField("response", raw).Warn("credit response is not a number, reporting zero credit")
		credit = 0
	}
	log.WithFields(logrus.Fields{"remaining_credit": credit}).Info("credit queried")

	return &CreditResult{
		RemainingCredit: credit,
		CustomerID:      id,
		RawResponse:     raw,
	}, nil
}
