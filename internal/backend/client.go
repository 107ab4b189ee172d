package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Riboost-Studio/restorank-print-bridge/internal/model"
	"github.com/Riboost-Studio/restorank-print-bridge/internal/observability"
)

const (
	ListTimeout = 10 * time.Second
	PostTimeout = 5 * time.Second
)

// Settings supplies the backend location. It is read on every request so a
// configuration change applies to the next call.
type Settings interface {
	ServerURL() string
	RestaurantID() string
}

// Client talks to the POS backend. Every failure is returned as a
// *model.RemoteServiceError.
type Client struct {
	settings Settings
	apiKey   string

	listClient *http.Client
	postClient *http.Client
	logger     zerolog.Logger
}

func NewClient(settings Settings, apiKey string) *Client {
	return &Client{
		settings:   settings,
		apiKey:     apiKey,
		listClient: &http.Client{Timeout: ListTimeout},
		postClient: &http.Client{Timeout: PostTimeout},
		logger:     observability.Component("backend"),
	}
}

// --- Fetches ---

// FetchPrintJobs returns the queued jobs in server order. Each job is
// decoded on its own: one whose payload cannot be decoded comes back as a
// model.MalformedJob when its id is readable and is dropped otherwise.
func (c *Client) FetchPrintJobs(ctx context.Context) ([]model.PrintJob, error) {
	var raws []json.RawMessage
	if err := c.getList(ctx, "fetch print jobs", c.restaurantPath("print-jobs"), &raws); err != nil {
		return nil, err
	}

	jobs := make([]model.PrintJob, 0, len(raws))
	for _, raw := range raws {
		var job model.PrintJob
		if err := json.Unmarshal(raw, &job); err != nil {
			id := readID(raw)
			c.logger.Warn().Err(err).Str("job_id", id.String()).Msg("Malformed print job")
			if id != "" {
				jobs = append(jobs, model.MalformedJob(id, err))
			}
			continue
		}
		jobs = append(jobs, job)
	}
	return jobs, nil
}

func (c *Client) FetchPendingTestPrints(ctx context.Context) ([]model.TestPrintRequest, error) {
	var raws []json.RawMessage
	if err := c.getList(ctx, "fetch pending test prints", c.restaurantPath("pending-test-prints"), &raws); err != nil {
		return nil, err
	}
	return decodeEach[model.TestPrintRequest](c.logger, "test print", raws), nil
}

// FetchPrinters returns the printer configuration of the restaurant. Both a
// bare array and a {"data":{"printers":[...]}} envelope are accepted.
func (c *Client) FetchPrinters(ctx context.Context) ([]model.Printer, error) {
	const op = "fetch printers"

	var raw json.RawMessage
	if err := c.getList(ctx, op, c.restaurantPath("printers"), &raw); err != nil {
		return nil, err
	}

	var raws []json.RawMessage
	if trimmed := bytes.TrimSpace(raw); len(trimmed) > 0 && trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &raws); err != nil {
			return nil, &model.RemoteServiceError{Op: op, StatusCode: http.StatusOK, Err: err}
		}
		return decodeEach[model.Printer](c.logger, "printer", raws), nil
	}

	var envelope struct {
		Data struct {
			Printers []json.RawMessage `json:"printers"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &model.RemoteServiceError{Op: op, StatusCode: http.StatusOK, Err: err}
	}
	return decodeEach[model.Printer](c.logger, "printer", envelope.Data.Printers), nil
}

// decodeEach decodes every element on its own and skips the ones that fail,
// so one bad element cannot hide the others.
func decodeEach[T any](logger zerolog.Logger, what string, raws []json.RawMessage) []T {
	out := make([]T, 0, len(raws))
	for _, raw := range raws {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			logger.Warn().Err(err).Str("id", readID(raw).String()).Msgf("Skipping malformed %s", what)
			continue
		}
		out = append(out, v)
	}
	return out
}

// readID extracts the id of an element that failed to decode, or "".
func readID(raw json.RawMessage) model.ID {
	var ref struct {
		ID model.ID `json:"id"`
	}
	if err := json.Unmarshal(raw, &ref); err != nil {
		return ""
	}
	return ref.ID
}

// --- Outcome reports ---

func (c *Client) Acknowledge(ctx context.Context, jobID string) error {
	return c.post(ctx, "acknowledge job", "/api/print-jobs/"+url.PathEscape(jobID)+"/acknowledge", struct{}{})
}

func (c *Client) Fail(ctx context.Context, jobID, message string) error {
	return c.post(ctx, "fail job", "/api/print-jobs/"+url.PathEscape(jobID)+"/fail", errorBody{Error: message})
}

// CompleteTestPrint reports a test print. An empty message means success.
func (c *Client) CompleteTestPrint(ctx context.Context, id, message string) error {
	var body any = struct{}{}
	if message != "" {
		body = errorBody{Error: message}
	}
	return c.post(ctx, "complete test print", "/api/test-prints/"+url.PathEscape(id)+"/complete", body)
}

func (c *Client) MarkOrderPrinted(ctx context.Context, orderID string) error {
	return c.post(ctx, "mark order printed", "/api/orders/"+url.PathEscape(orderID)+"/printed", struct{}{})
}

func (c *Client) MarkBillPrinted(ctx context.Context, orderID string) error {
	return c.post(ctx, "mark bill printed", "/api/orders/"+url.PathEscape(orderID)+"/bill-printed", struct{}{})
}

type errorBody struct {
	Error string `json:"error"`
}

// --- Plumbing ---

func (c *Client) restaurantPath(resource string) string {
	return "/api/restaurants/" + url.PathEscape(c.settings.RestaurantID()) + "/" + resource
}

func (c *Client) endpoint(path string) string {
	return strings.TrimRight(c.settings.ServerURL(), "/") + path
}

func (c *Client) getList(ctx context.Context, op, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint(path), nil)
	if err != nil {
		return &model.RemoteServiceError{Op: op, Err: err}
	}
	c.setHeaders(req)

	resp, err := c.listClient.Do(req)
	if err != nil {
		observability.RecordBackendRequest(op, false)
		return &model.RemoteServiceError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		observability.RecordBackendRequest(op, false)
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &model.RemoteServiceError{
			Op:         op,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("API Error %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		observability.RecordBackendRequest(op, false)
		return &model.RemoteServiceError{Op: op, StatusCode: resp.StatusCode, Err: err}
	}
	observability.RecordBackendRequest(op, true)
	return nil
}

func (c *Client) post(ctx context.Context, op, path string, body any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return &model.RemoteServiceError{Op: op, Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint(path), bytes.NewReader(data))
	if err != nil {
		return &model.RemoteServiceError{Op: op, Err: err}
	}
	c.setHeaders(req)

	resp, err := c.postClient.Do(req)
	if err != nil {
		observability.RecordBackendRequest(op, false)
		return &model.RemoteServiceError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		observability.RecordBackendRequest(op, false)
		return &model.RemoteServiceError{Op: op, StatusCode: resp.StatusCode}
	}
	observability.RecordBackendRequest(op, true)
	c.logger.Debug().Str("op", op).Str("path", path).Msg("Backend call succeeded")
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}
}
