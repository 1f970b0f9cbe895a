package opendata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	userAgent = "velo-ingest/1.0"
	accept    = "application/json"
)

type Response struct {
	Body []byte

	rawRequest  *http.Request
	rawResponse *http.Response
}

func (r *Response) StatusCode() int {
	return r.rawResponse.StatusCode
}

func (r *Response) IsOK() bool {
	return r.StatusCode() == http.StatusOK
}

func (r *Response) URL() string {
	return r.rawRequest.URL.String()
}

func newResponse(request *http.Request, response *http.Response, body []byte) *Response {
	return &Response{
		Body:        body,
		rawRequest:  request,
		rawResponse: response,
	}
}

type httpClient interface {
	Do(request *http.Request) (*http.Response, error)
}

// Client issues one GET per call and hands back the body untouched,
// whatever the status code.
type Client struct {
	httpClient httpClient
}

func NewClient(timeout time.Duration) *Client {
	return &Client{httpClient: &http.Client{Timeout: timeout}}
}

func (c *Client) Get(ctx context.Context, rawURL string) (*Response, error) {
	req, err := newRequestBuilder(http.MethodGet, rawURL).
		withHeader("User-Agent", userAgent).
		withHeader("Accept", accept).
		build(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return newResponse(req, resp, body), nil
}

type requestBuilder struct {
	method string
	url    *url.URL
	header http.Header
	err    error
}

func newRequestBuilder(method string, rawURL string) *requestBuilder {
	b := &requestBuilder{
		method: method,
		header: http.Header{},
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		b.err = fmt.Errorf("invalid url %q: %w", rawURL, err)
		return b
	}
	b.url = u

	return b
}

func (b *requestBuilder) withHeader(key string, value string) *requestBuilder {
	if b.err != nil {
		return b
	}

	b.header.Add(key, value)

	return b
}

func (b *requestBuilder) build(ctx context.Context) (*http.Request, error) {
	if b.err != nil {
		return nil, b.err
	}

	req, err := http.NewRequestWithContext(ctx, b.method, b.url.String(), nil)
	if err != nil {
		return nil, err
	}

	for header, values := range b.header {
		for _, value := range values {
			req.Header.Add(header, value)
		}
	}

	return req, nil
}
