package tsaclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"
)

// Media types of RFC 3161 section 3.4.
const (
	ContentTypeQuery = "application/timestamp-query"
	ContentTypeReply = "application/timestamp-reply"
)

const maxResponseSize = 10 << 20

// Transport POSTs request bodies to a TSA. It makes exactly one attempt per
// call and never retries.
type Transport struct {
	Client *http.Client
	Log    logrus.FieldLogger
}

// NewTransport returns a Transport using client, or http.DefaultClient when
// client is nil.
func NewTransport(client *http.Client, log logrus.FieldLogger) *Transport {
	if client == nil {
		client = http.DefaultClient
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Transport{Client: client, Log: log}
}

// Post sends body to url with Content-Type application/timestamp-query plus
// header, and returns the response body of a 200 reply. Header keys are sent
// verbatim. Any other status, and any network failure, is a *TransportError.
func (t *Transport) Post(ctx context.Context, url string, body []byte, header http.Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	req.Header.Set("Content-Type", ContentTypeQuery)
	for k, vs := range header {
		req.Header[k] = vs
	}

	log := t.Log.WithField("url", url)
	log.WithField("bytes", len(body)).Debug("posting to TSA")

	resp, err := t.Client.Do(req)
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize+1))
	if err != nil {
		return nil, &TransportError{URL: url, Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		log.WithField("status", resp.StatusCode).Warn("TSA answered with non-200 status")
		return nil, &TransportError{URL: url, StatusCode: resp.StatusCode, Err: errors.New(resp.Status)}
	}
	if len(data) > maxResponseSize {
		return nil, &TransportError{URL: url, Err: fmt.Errorf("response exceeds %d bytes", maxResponseSize)}
	}
	return data, nil
}
