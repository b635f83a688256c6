// Package client 后端 /api/glebas 接口的 HTTP 传输层，实现 editor.Backend
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/GrainArc/GlebaMap/editor"
	"github.com/GrainArc/GlebaMap/metrics"
	"github.com/gorilla/websocket"
	"github.com/paulmach/orb/geojson"
)

// StatusError 后端返回非 2xx
type StatusError struct {
	Method string
	Path   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.Status, e.Body)
}

type Client struct {
	base string
	http *http.Client
	log  *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.http = h } }

func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.log = l } }

// New baseURL 形如 http://127.0.0.1:5000，末尾斜杠可有可无
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: &http.Client{Timeout: 30 * time.Second},
		log:  slog.Default(),
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

var _ editor.Backend = (*Client)(nil)

func (c *Client) List(ctx context.Context) (*geojson.FeatureCollection, error) {
	var fc geojson.FeatureCollection
	if err := c.do(ctx, "list", http.MethodGet, "/api/glebas", nil, &fc); err != nil {
		return nil, err
	}
	return &fc, nil
}

type createResponse struct {
	Message string `json:"message"`
	ID      int64  `json:"id"`
}

func (c *Client) Create(ctx context.Context, req editor.CreateRequest) (int64, error) {
	var out createResponse
	if err := c.do(ctx, "create", http.MethodPost, "/api/glebas", req, &out); err != nil {
		return 0, err
	}
	if out.ID == 0 {
		return 0, fmt.Errorf("create: response without id")
	}
	return out.ID, nil
}

func (c *Client) Update(ctx context.Context, id int64, p editor.Patch) error {
	return c.do(ctx, "update", http.MethodPut, fmt.Sprintf("/api/glebas/%d", id), p, nil)
}

func (c *Client) Delete(ctx context.Context, id int64) error {
	return c.do(ctx, "delete", http.MethodDelete, fmt.Sprintf("/api/glebas/%d", id), nil, nil)
}

func (c *Client) Message(ctx context.Context) (*editor.Banner, error) {
	var b editor.Banner
	if err := c.do(ctx, "message", http.MethodGet, "/api/message", nil, &b); err != nil {
		return nil, err
	}
	return &b, nil
}

// ExportURL 导出链接，前端直接作为下载地址使用
func (c *Client) ExportURL(format string, id int64) string {
	return fmt.Sprintf("%s/export/%s/%d", c.base, format, id)
}

// Watch 订阅 /ws/changes，每条消息交给 fn，直到 ctx 取消或连接断开
func (c *Client) Watch(ctx context.Context, fn func(editor.ChangeEvent)) error {
	u := "ws" + strings.TrimPrefix(c.base, "http") + "/ws/changes"
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
	if err != nil {
		return err
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		var ev editor.ChangeEvent
		if err := conn.ReadJSON(&ev); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		c.log.Debug("change_event", "type", ev.Type, "op", ev.Op)
		fn(ev)
	}
}

func (c *Client) do(ctx context.Context, op, method, path string, in, out interface{}) (err error) {
	t0 := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		metrics.SyncCallsTotal.WithLabelValues(op, result).Inc()
		metrics.SyncDurationMs.WithLabelValues(op).Observe(float64(time.Since(t0).Milliseconds()))
	}()

	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%s: encode body: %w", op, err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	if s := editor.EditSessionFrom(ctx); s != "" {
		req.Header.Set(editor.EditSessionHeader, s)
	}

	c.log.Debug("sync_req", "op", op, "method", method, "path", path)
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Error("sync_http_error", "op", op, "err", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &StatusError{Method: method, Path: path, Status: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.log.Error("sync_decode_error", "op", op, "err", err)
		return fmt.Errorf("%s: decode response: %w", op, err)
	}
	return nil
}
