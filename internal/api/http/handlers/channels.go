package handlers

import (
	"context"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/flowmesh/schemaui/internal/wsquery"
)

// ChannelSource lists the current query channels. The set follows the
// schema, so it is read on every request.
type ChannelSource interface {
	Channels() []*wsquery.Client
}

// StaticChannels is a fixed channel set
type StaticChannels []*wsquery.Client

// Channels returns the set
func (c StaticChannels) Channels() []*wsquery.Client {
	return c
}

// ChannelHandlers exposes the upstream query channels
type ChannelHandlers struct {
	// ctx outlives requests; reconnected channels run under it
	ctx    context.Context
	source ChannelSource
}

// NewChannelHandlers creates new channel handlers
func NewChannelHandlers(ctx context.Context, source ChannelSource) *ChannelHandlers {
	if source == nil {
		source = StaticChannels(nil)
	}
	return &ChannelHandlers{ctx: ctx, source: source}
}

// ChannelInfo describes one query channel
type ChannelInfo struct {
	Name  string `json:"name"`
	URL   string `json:"url"`
	State string `json:"state"`
	Items int    `json:"items"`
	Error string `json:"error,omitempty"`
}

// List handles GET /api/v1/channels
func (h *ChannelHandlers) List(w http.ResponseWriter, r *http.Request) {
	channels := h.source.Channels()
	out := lo.Map(channels, func(c *wsquery.Client, _ int) ChannelInfo { return channelInfo(c) })
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	writeJSON(w, http.StatusOK, out)
}

// Reconnect handles POST /api/v1/channels/{name}/reconnect
func (h *ChannelHandlers) Reconnect(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	c, ok := lo.Find(h.source.Channels(), func(c *wsquery.Client) bool { return c.Name() == name })
	if !ok {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Status: "error", Message: "unknown channel: " + name})
		return
	}

	if err := c.Reconnect(h.ctx); err != nil {
		if errors.Is(err, wsquery.ErrRunning) {
			writeJSON(w, http.StatusConflict, ErrorResponse{Status: "error", Message: err.Error()})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, channelInfo(c))
}

func channelInfo(c *wsquery.Client) ChannelInfo {
	info := ChannelInfo{
		Name:  c.Name(),
		URL:   c.URL(),
		State: c.State().String(),
		Items: len(c.Items()),
	}
	if err := c.Err(); err != nil {
		info.Error = err.Error()
	}
	return info
}
