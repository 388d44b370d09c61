/*
PURPOSE:
  Request executor for the crowd-counting detection function.
  Sends one encoded image to the OpenFaaS endpoint and returns the reported
  count together with the wall-clock response time.

REQUIREMENTS:
  User-specified:
  - POST {"image_data":{"image":"<base64>"}} with Content-Type application/json.
  - Read {"status":"success","count":N} from the response.
  - Bound every request by a transport timeout (300s by default).

  Implementation-discovered:
  - The function wrapper sometimes prefixes its JSON with log noise.
    A strict decode is tried first, then the last {...} match on a line.
  - Connection, timeout and status failures must be told apart in logs.

ARCHITECTURE INTEGRATION:
  - Called by: internal/engine/runner.go, internal/cli (probe)
  - Uses: internal/output (logger)

ERROR HANDLING:
  - Every failure is classified (see errors.go). No retry here; a failed
    request fails its trial and the runner moves on.

IMPLEMENTATION RULES:
  - Use net/http.
  - Elapsed covers request send through body read.

USAGE:
  c := engine.NewClient(url, 300*time.Second)
  resp, err := c.Execute(ctx, payload)

SELF-HEALING INSTRUCTIONS:
  - If the function changes its response shape, update parseResponse.

RELATED FILES:
  - internal/engine/errors.go
  - internal/engine/payload.go

MAINTENANCE:
  - Keep the salvage pattern in sync with the function wrapper's output.
*/

package engine

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"regexp"
	"strings"
	"time"

	"github.com/daryltucker/crowdcount-bench/internal/output"
)

// DefaultTimeout bounds one detection request.
const DefaultTimeout = 300 * time.Second

// Response is a successful detection result.
type Response struct {
	Count   int
	Elapsed time.Duration
	Status  string
}

// Executor performs one detection request.
type Executor interface {
	Execute(ctx context.Context, payload []byte) (Response, error)
}

// Client executes requests against an HTTP endpoint.
type Client struct {
	URL     string
	HTTP    *http.Client
	Timeout time.Duration
}

// NewClient creates a Client. A non-positive timeout selects DefaultTimeout.
func NewClient(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	// Header timeout matches the overall timeout: the model runs before the
	// first response byte.
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout

	return &Client{
		URL:     url,
		Timeout: timeout,
		HTTP: &http.Client{
			Transport: transport,
			Timeout:   timeout,
		},
	}
}

// FunctionURL joins a gateway address and function name the way OpenFaaS
// routes them.
func FunctionURL(gateway, function string) string {
	gateway = strings.TrimRight(gateway, "/")
	if function == "" || strings.Contains(gateway, "/function/") {
		return gateway
	}
	return gateway + "/function/" + function
}

// Execute sends payload and decodes the response.
func (c *Client) Execute(ctx context.Context, payload []byte) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	defer cancel()

	trace := &httptrace.ClientTrace{
		GotConn: func(info httptrace.GotConnInfo) {
			output.Logger.Debug("Network: Connected", "remote", info.Conn.RemoteAddr(), "reused", info.Reused)
		},
		GotFirstResponseByte: func() {
			output.Logger.Debug("Network: First Byte Received", "url", c.URL)
		},
	}
	ctx = httptrace.WithClientTrace(ctx, trace)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(payload))
	if err != nil {
		return Response{}, fmt.Errorf("%w: %w", ErrRequest, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return Response{}, classifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	elapsed := time.Since(start)
	if err != nil {
		return Response{}, classifyTransport(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Response{}, &StatusError{
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       truncate(string(body), 512),
		}
	}

	out, err := parseResponse(body)
	if err != nil {
		return Response{}, err
	}
	out.Elapsed = elapsed
	return out, nil
}

type functionResponse struct {
	Status  string   `json:"status"`
	Count   *float64 `json:"count"`
	Message string   `json:"message"`
}

// No (?s): a match never spans lines, and the greedy .* takes the widest
// object on its line.
var salvagePattern = regexp.MustCompile(`\{.*\}`)

// parseResponse decodes a response body, salvaging the last JSON object
// embedded in surrounding noise when the strict decode fails.
func parseResponse(body []byte) (Response, error) {
	var fr functionResponse
	if err := json.Unmarshal(body, &fr); err != nil {
		matches := salvagePattern.FindAll(body, -1)
		if len(matches) == 0 {
			return Response{}, fmt.Errorf("%w: %s", ErrMalformedResponse, truncate(string(body), 128))
		}
		last := matches[len(matches)-1]
		fr = functionResponse{}
		if err := json.Unmarshal(last, &fr); err != nil {
			return Response{}, fmt.Errorf("%w: %w", ErrMalformedResponse, err)
		}
		output.Logger.Debug("Salvaged JSON from noisy response", "json", string(last))
	}

	if fr.Status == "error" {
		return Response{}, &FunctionError{Message: fr.Message}
	}
	if fr.Count == nil {
		return Response{}, fmt.Errorf("%w: missing count", ErrMalformedResponse)
	}
	return Response{Count: int(*fr.Count), Status: fr.Status}, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
