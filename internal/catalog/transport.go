package catalog

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"

	"uploadflow/internal/upload"
)

// Transport PUTs raw file bytes to pre-signed upload URLs.
type Transport struct {
	log  logrus.FieldLogger
	http *http.Client
}

var _ upload.Transport = (*Transport)(nil)

// NewTransport builds a Transport. The client should carry no timeout for
// large files; there is no transfer timeout policy.
func NewTransport(log logrus.FieldLogger, httpClient *http.Client) *Transport {
	if httpClient == nil {
		httpClient = &http.Client{}
	}

	return &Transport{
		log:  log.WithField("component", "put-transport"),
		http: httpClient,
	}
}

// Put uploads data to url. progress receives the fraction of the body sent.
func (t *Transport) Put(ctx context.Context, url string, data []byte, progress func(float64)) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, newBody(data, progress))
	if err != nil {
		return fmt.Errorf("building upload request: %w", err)
	}
	req.ContentLength = int64(len(data))
	// redirects and retries on a reused connection replay the body
	req.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(newBody(data, progress)), nil
	}
	req.Header.Set("Content-Type", mimetype.Detect(data).String())

	resp, err := t.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequest, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if err := checkResponse(resp); err != nil {
		return err
	}

	t.log.WithFields(logrus.Fields{
		"bytes":  len(data),
		"status": resp.StatusCode,
	}).Debug("Upload request completed")

	return nil
}

func newBody(data []byte, progress func(float64)) io.Reader {
	if len(data) == 0 {
		return http.NoBody
	}

	return &progressReader{r: bytes.NewReader(data), total: int64(len(data)), progress: progress}
}

type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	progress func(float64)
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.total > 0 {
		p.read += int64(n)
		if p.progress != nil {
			p.progress(float64(p.read) / float64(p.total))
		}
	}

	return n, err
}
