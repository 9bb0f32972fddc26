// Package backend is the REST client of the upstream service that owns the
// domain data. Objects leave the process without annotations and come back
// annotated.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"resty.dev/v3"

	"github.com/flowmesh/schemaui/internal/logger"
	"github.com/flowmesh/schemaui/internal/metrics"
	"github.com/flowmesh/schemaui/internal/tracing"
	"github.com/flowmesh/schemaui/internal/xpath"
)

// SchemaPath is the path of the JSON Schema document
const SchemaPath = "/schema.json"

// Options configures a Client
type Options struct {
	BaseURL string
	Timeout time.Duration
	Metrics *metrics.TransportMetrics
}

// Client talks to the upstream backend
type Client struct {
	http    *resty.Client
	metrics *metrics.TransportMetrics
	log     zerolog.Logger
}

// New creates a client for the backend at opts.BaseURL
func New(opts Options) *Client {
	c := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetHeader("Accept", "application/json")
	if opts.Timeout > 0 {
		c.SetTimeout(opts.Timeout)
	}
	return &Client{
		http:    c,
		metrics: opts.Metrics,
		log:     logger.WithComponent("backend"),
	}
}

// Close releases idle connections
func (c *Client) Close() error {
	return c.http.Close()
}

// Schema fetches the raw JSON Schema document
func (c *Client) Schema(ctx context.Context) ([]byte, error) {
	var raw json.RawMessage
	if err := c.do(ctx, "schema", http.MethodGet, SchemaPath, nil, nil, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// GetAll fetches every instance of model
func (c *Client) GetAll(ctx context.Context, model string) ([]any, error) {
	var items []any
	if err := c.do(ctx, "get_all", http.MethodGet, "/get-all-"+Endpoint(model), nil, nil, &items); err != nil {
		return nil, err
	}
	return lo.Map(items, func(item any, _ int) any {
		return xpath.AddXPath(item)
	}), nil
}

// Get fetches one instance of model by id
func (c *Client) Get(ctx context.Context, model string, id any) (map[string]any, error) {
	params := map[string]string{"id": idString(id)}
	var obj map[string]any
	if err := c.do(ctx, "get", http.MethodGet, "/get-"+Endpoint(model)+"/{id}", params, nil, &obj); err != nil {
		return nil, err
	}
	if err := requireObject("get", obj); err != nil {
		return nil, err
	}
	return annotated(obj), nil
}

// Create posts a new instance and returns the stored object
func (c *Client) Create(ctx context.Context, model string, obj map[string]any) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, "create", http.MethodPost, "/create-"+Endpoint(model), nil, xpath.ClearXPath(obj), &out); err != nil {
		return nil, err
	}
	if err := requireObject("create", out); err != nil {
		return nil, err
	}
	return annotated(out), nil
}

// Update replaces an existing instance and returns the stored object
func (c *Client) Update(ctx context.Context, model string, obj map[string]any) (map[string]any, error) {
	var out map[string]any
	if err := c.do(ctx, "update", http.MethodPut, "/put-"+Endpoint(model), nil, xpath.ClearXPath(obj), &out); err != nil {
		return nil, err
	}
	if err := requireObject("update", out); err != nil {
		return nil, err
	}
	return annotated(out), nil
}

func (c *Client) do(ctx context.Context, op, method, path string, params map[string]string, body, out any) error {
	headers := make(map[string]string)
	tracing.InjectToHeaders(ctx, headers)

	req := c.http.R().
		SetContext(ctx).
		SetHeaders(headers)
	if params != nil {
		req.SetPathParams(params)
	}
	if body != nil {
		req.SetBody(body)
	}

	start := time.Now()
	res, err := req.Execute(method, path)
	if err == nil && res.IsError() {
		err = StatusError{
			Operation:  op,
			StatusCode: res.StatusCode(),
			Body:       strings.TrimSpace(res.String()),
		}
	}
	// the body is decoded whatever the Content-Type
	if err == nil && out != nil {
		err = decode(op, res.Bytes(), out)
	}
	c.metrics.RecordBackendRequest(op, time.Since(start), err)

	if err != nil {
		c.log.Warn().Err(err).Str("operation", op).Str("path", path).Msg("Backend request failed")
		switch err.(type) {
		case StatusError, DecodeError:
			return err
		}
		return fmt.Errorf("backend %s: %w", op, err)
	}
	c.log.Debug().Str("operation", op).Str("path", path).Dur("duration", time.Since(start)).Msg("Backend request")
	return nil
}

func decode(op string, body []byte, out any) error {
	if len(bytes.TrimSpace(body)) == 0 {
		return DecodeError{Operation: op, Reason: "empty response body"}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return DecodeError{Operation: op, Reason: err.Error()}
	}
	return nil
}

// requireObject rejects a JSON null where an object is expected
func requireObject(op string, obj map[string]any) error {
	if obj == nil {
		return DecodeError{Operation: op, Reason: "expected an object, got null"}
	}
	return nil
}

func annotated(obj map[string]any) map[string]any {
	if obj == nil {
		return nil
	}
	out, _ := xpath.AddXPath(obj).(map[string]any)
	return out
}

// Endpoint converts a model name to the snake_case segment used in backend
// paths, e.g. OrderLine becomes order_line
func Endpoint(model string) string {
	var b strings.Builder
	runes := []rune(model)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('_')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func idString(id any) string {
	switch v := id.(type) {
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}
