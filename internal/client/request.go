package client

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
)

// originalRequest is a replayable snapshot of an outbound call. The body is
// buffered once so the request can be sent a second time after a refresh.
// Values are never mutated after creation; markRetried returns a copy.
type originalRequest struct {
	req     *http.Request
	body    []byte
	hasBody bool
	retried bool
}

// snapshotRequest buffers the request body and closes the original
func snapshotRequest(req *http.Request) (*originalRequest, error) {
	orig := &originalRequest{req: req}
	if req.Body == nil || req.Body == http.NoBody {
		return orig, nil
	}

	body, err := io.ReadAll(req.Body)
	closeErr := req.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to buffer request body: %w", err)
	}
	if closeErr != nil {
		return nil, fmt.Errorf("failed to close request body: %w", closeErr)
	}

	orig.body = body
	orig.hasBody = true
	return orig, nil
}

// markRetried returns a copy of the snapshot flagged as already replayed
func (o *originalRequest) markRetried() *originalRequest {
	retry := *o
	retry.retried = true
	return &retry
}

// build creates a fresh *http.Request for one attempt
func (o *originalRequest) build() *http.Request {
	out := o.req.Clone(o.req.Context())
	if o.hasBody {
		body := o.body
		out.Body = io.NopCloser(bytes.NewReader(body))
		out.GetBody = func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(body)), nil
		}
		out.ContentLength = int64(len(body))
	}
	return out
}

func (o *originalRequest) path() string {
	return o.req.URL.Path
}
