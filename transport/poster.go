package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-relay/core"
)

const defaultClientTimeout = 30 * time.Second
const defaultResponseBodyLimit int64 = 10 << 20 // 10 MiB

const defaultUserAgent = "go-relay/webhooks"

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Poster sends webhook requests as JSON POSTs. Non-2xx responses are
// returned together with an upstream failure error.
type Poster struct {
	Client               HTTPDoer
	DefaultHeaders       map[string]string
	MaxResponseBodyBytes int64
}

func NewPoster(client HTTPDoer) *Poster {
	if client == nil {
		client = &http.Client{Timeout: defaultClientTimeout}
	}
	return &Poster{
		Client: client,
		DefaultHeaders: map[string]string{
			"Content-Type": "application/json",
			"User-Agent":   defaultUserAgent,
		},
		MaxResponseBodyBytes: defaultResponseBodyLimit,
	}
}

func (p *Poster) Post(ctx context.Context, req core.OutboundRequest) (core.OutboundResponse, error) {
	if p == nil || p.Client == nil {
		return core.OutboundResponse{}, transportError(
			"transport: poster requires an http client",
			goerrors.CategoryInternal,
			http.StatusInternalServerError,
			nil,
		)
	}
	if ctx == nil {
		ctx = context.Background()
	}

	parsedURL, err := url.Parse(strings.TrimSpace(req.URL))
	if err != nil {
		return core.OutboundResponse{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: invalid request url",
			http.StatusBadRequest,
			map[string]any{"url": strings.TrimSpace(req.URL)},
		)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return core.OutboundResponse{}, transportError(
			"transport: request url must be absolute http(s)",
			goerrors.CategoryBadInput,
			http.StatusBadRequest,
			map[string]any{"url": parsedURL.String()},
		)
	}

	requestCtx := ctx
	cancel := func() {}
	if req.Timeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, req.Timeout)
	}
	defer cancel()

	httpReq, err := http.NewRequestWithContext(requestCtx, http.MethodPost, parsedURL.String(), bytes.NewReader(req.Body))
	if err != nil {
		return core.OutboundResponse{}, transportWrapError(
			err,
			goerrors.CategoryBadInput,
			"transport: create http request",
			http.StatusBadRequest,
			map[string]any{"url": parsedURL.String()},
		)
	}
	for key, value := range p.DefaultHeaders {
		if strings.TrimSpace(key) == "" {
			continue
		}
		httpReq.Header.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}
	for key, value := range req.Headers {
		if strings.TrimSpace(key) == "" {
			continue
		}
		httpReq.Header.Set(strings.TrimSpace(key), strings.TrimSpace(value))
	}

	httpRes, err := p.Client.Do(httpReq)
	if err != nil {
		return core.OutboundResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: execute http request",
			http.StatusBadGateway,
			map[string]any{"url": parsedURL.String()},
		)
	}
	defer httpRes.Body.Close()

	maxBodyBytes := p.responseBodyLimit()
	body, err := io.ReadAll(io.LimitReader(httpRes.Body, maxBodyBytes+1))
	if err != nil {
		return core.OutboundResponse{}, transportWrapError(
			err,
			goerrors.CategoryExternal,
			"transport: read response body",
			http.StatusBadGateway,
			map[string]any{"status_code": httpRes.StatusCode},
		)
	}
	if int64(len(body)) > maxBodyBytes {
		return core.OutboundResponse{}, transportError(
			fmt.Sprintf("transport: response body exceeds limit of %d bytes", maxBodyBytes),
			goerrors.CategoryExternal,
			http.StatusBadGateway,
			map[string]any{
				"status_code":      httpRes.StatusCode,
				"response_limit_b": maxBodyBytes,
			},
		)
	}

	resp := core.OutboundResponse{
		StatusCode: httpRes.StatusCode,
		Headers:    flattenHeaders(httpRes.Header),
		Body:       body,
	}
	if httpRes.StatusCode < 200 || httpRes.StatusCode >= 300 {
		return resp, core.UpstreamError(nil, fmt.Sprintf("HTTP %d", httpRes.StatusCode), map[string]any{
			"url":         parsedURL.String(),
			"status_code": httpRes.StatusCode,
		})
	}
	return resp, nil
}

func (p *Poster) responseBodyLimit() int64 {
	if p.MaxResponseBodyBytes > 0 {
		return p.MaxResponseBodyBytes
	}
	return defaultResponseBodyLimit
}

func flattenHeaders(headers http.Header) map[string]string {
	if len(headers) == 0 {
		return map[string]string{}
	}
	flat := make(map[string]string, len(headers))
	for key, values := range headers {
		if len(values) == 0 {
			flat[key] = ""
			continue
		}
		flat[key] = strings.Join(values, ",")
	}
	return flat
}

var _ core.HTTPPoster = (*Poster)(nil)
