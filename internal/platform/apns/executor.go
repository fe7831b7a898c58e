package apns

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sideshow/apns2"
	"golang.org/x/net/http2"
)

// request is one device's share of a Send call.
type request struct {
	device  string
	token   string
	headers map[string]string
	body    []byte
}

func (r request) path() string {
	return "/3/device/" + r.device
}

// execute issues a single request on cc and always resolves to an Outcome.
// Transport errors are captured in the Outcome rather than returned.
func (m *sessionManager) execute(ctx context.Context, cc *http2.ClientConn, r request) Outcome {
	ctx, cancel := context.WithTimeout(ctx, m.requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "https://"+m.authority+r.path(), bytes.NewReader(r.body))
	if err != nil {
		return Outcome{Device: r.device, Kind: TransportFailed, Err: fmt.Errorf("build request: %w", err)}
	}
	req.Header.Set("content-type", "application/json; charset=utf-8")
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("authorization", "bearer "+r.token)

	resp, err := cc.RoundTrip(req)
	if err != nil {
		m.logger.Debug("APNs stream failed", "device", r.device, "err", err)
		return Outcome{Device: r.device, Kind: TransportFailed, Err: err}
	}
	defer resp.Body.Close()

	// The body is drained before resolving so the stream is released.
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return Outcome{Device: r.device, Kind: TransportFailed, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode == http.StatusOK {
		return Outcome{Device: r.device, Kind: Delivered}
	}
	return Outcome{
		Device:     r.device,
		Kind:       Rejected,
		StatusCode: resp.StatusCode,
		ApnsID:     resp.Header.Get("apns-id"),
		Body:       body,
	}
}

func parseRejection(status int, apnsID string, body []byte) (*apns2.Response, error) {
	resp := &apns2.Response{}
	if err := json.Unmarshal(body, resp); err != nil {
		return nil, &ResponseParseError{StatusCode: status, Body: body, Err: err}
	}
	resp.StatusCode = status
	resp.ApnsID = apnsID
	return resp, nil
}
