package nyx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"

	"github.com/cenkalti/backoff/v4"
)

// maxAuthRetries bounds re-authentication to one attempt per call.
const maxAuthRetries = 1

// request is a single portal call. The body is held as bytes so the call
// can be replayed after re-authentication.
type request struct {
	method      string
	endpoint    string
	query       url.Values
	body        []byte
	contentType string
	accept      string
}

func newRequest(method, endpoint string) *request {
	return &request{method: method, endpoint: endpoint}
}

func (r *request) withQuery(q url.Values) *request {
	r.query = q
	return r
}

func (r *request) withJSON(v any) (*request, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode body: %w", err)
	}
	r.body = b
	r.contentType = "application/json"
	return r, nil
}

func (r *request) withRaw(body []byte, contentType, accept string) *request {
	r.body = body
	r.contentType = contentType
	r.accept = accept
	return r
}

// filePart is an optional file attached to a multipart body.
type filePart struct {
	field       string
	filename    string
	contentType string
	data        io.Reader
}

// withMultipart encodes fields and an optional file as multipart/form-data.
func (r *request) withMultipart(fields map[string]string, file *filePart) (*request, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, fmt.Errorf("write field %s: %w", k, err)
		}
	}
	if file != nil {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.field, file.filename))
		h.Set("Content-Type", file.contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, fmt.Errorf("create file part: %w", err)
		}
		if _, err := io.Copy(part, file.data); err != nil {
			return nil, fmt.Errorf("copy file part: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	r.body = buf.Bytes()
	r.contentType = w.FormDataContentType()
	return r, nil
}

// call runs setup if needed and performs r with one re-authentication on 401.
func (c *Client) call(ctx context.Context, r *request, out any) error {
	if err := c.ensureSetup(ctx); err != nil {
		return fmt.Errorf("setup: %w", err)
	}
	return withAuthRetry(ctx, maxAuthRetries,
		func() error { return c.do(ctx, r, out) },
		func() error {
			c.logger.Debug("Re-authenticating after 401", "endpoint", r.endpoint)
			return c.session.ForceRefresh(ctx)
		},
	)
}

// withAuthRetry runs op, and when it fails with 401 runs reauth and then op
// again, at most maxRetries times. Any other error ends the loop at once.
// The attempt counter lives in this call only.
func withAuthRetry(ctx context.Context, maxRetries uint64, op func() error, reauth func() error) error {
	attempt := 0
	operation := func() error {
		if attempt > 0 {
			if err := reauth(); err != nil {
				return backoff.Permanent(fmt.Errorf("reauthenticate: %w", err))
			}
		}
		attempt++

		err := op()
		if err == nil {
			return nil
		}
		if IsStatus(err, http.StatusUnauthorized) {
			return err
		}
		return backoff.Permanent(err)
	}

	b := backoff.WithMaxRetries(&backoff.ZeroBackOff{}, maxRetries)
	return backoff.Retry(operation, backoff.WithContext(b, ctx))
}

// do performs a single HTTP round trip and decodes a JSON response into out.
// A *string out receives the raw body.
func (c *Client) do(ctx context.Context, r *request, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	target := c.baseURL + r.endpoint
	if len(r.query) > 0 {
		target += "?" + r.query.Encode()
	}

	var body io.Reader
	if r.body != nil {
		body = bytes.NewReader(r.body)
	}
	req, err := http.NewRequestWithContext(ctx, r.method, target, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("X-Requested-With", "nyx-sdk")
	req.Header.Set("X-Client-Type", "nyx-sdk")
	req.Header.Set("sdk-version", Version)
	if r.contentType != "" {
		req.Header.Set("Content-Type", r.contentType)
	}
	if r.accept != "" {
		req.Header.Set("Accept", r.accept)
	} else {
		req.Header.Set("Accept", "application/json")
	}
	c.session.Authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", r.method, r.endpoint, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w", r.method, r.endpoint, err)
	}
	c.logger.Debug("Portal call", "method", r.method, "endpoint", r.endpoint, "status", resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if resp.StatusCode == http.StatusBadRequest {
			c.logger.Warn("Bad request", "method", r.method, "endpoint", r.endpoint, "body", string(payload))
		}
		return &HTTPError{
			Method:     r.method,
			Endpoint:   r.endpoint,
			StatusCode: resp.StatusCode,
			Body:       string(payload),
		}
	}

	if out == nil || resp.StatusCode == http.StatusNoContent || len(bytes.TrimSpace(payload)) == 0 {
		return nil
	}
	if s, ok := out.(*string); ok {
		*s = string(payload)
		return nil
	}
	if err := json.Unmarshal(payload, out); err != nil {
		return fmt.Errorf("%s %s: decode response: %w", r.method, r.endpoint, err)
	}
	return nil
}
