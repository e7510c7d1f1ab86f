package view

import (
	"context"
	"encoding/json"
	"sync"

	"pkt.systems/pslog"

	"github.com/dshills/linebridge/internal/protocol"
)

// Engine is the command surface the manager needs from the engine
// handle. The manager depends on the interface so tests can mock the
// engine side.
type Engine interface {
	Fetcher
	NewView(ctx context.Context, filePath string) (string, error)
	CloseView(viewID string)
}

// Manager routes inbound engine messages to views and signals the
// presentation layer when something repaint-worthy happened.
type Manager struct {
	mu    sync.RWMutex
	views map[string]*View

	eng    Engine
	config Config
	log    pslog.Logger

	// redraw is a coalescing signal: pending repaints collapse into one.
	redraw chan struct{}

	onStyle     func(protocol.StyleDef)
	onAlert     func(string)
	onUnhandled func(method string, params json.RawMessage)
}

// ManagerOption configures the manager.
type ManagerOption func(*Manager)

// WithLogger sets the manager logger.
func WithLogger(log pslog.Logger) ManagerOption {
	return func(m *Manager) {
		m.log = log
	}
}

// OnStyle registers a handler for style table definitions.
func OnStyle(fn func(protocol.StyleDef)) ManagerOption {
	return func(m *Manager) {
		m.onStyle = fn
	}
}

// OnAlert registers a handler for engine alerts.
func OnAlert(fn func(msg string)) ManagerOption {
	return func(m *Manager) {
		m.onAlert = fn
	}
}

// OnUnhandled registers a handler for out-of-band notifications this
// core does not interpret (theme lists, config changes). They are
// forwarded unchanged.
func OnUnhandled(fn func(method string, params json.RawMessage)) ManagerOption {
	return func(m *Manager) {
		m.onUnhandled = fn
	}
}

// NewManager creates a view manager.
func NewManager(eng Engine, config Config, opts ...ManagerOption) *Manager {
	m := &Manager{
		views:  make(map[string]*View),
		eng:    eng,
		config: config,
		log:    pslog.Ctx(context.Background()),
		redraw: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Open creates an engine view, optionally backed by a file, and
// registers it.
func (m *Manager) Open(ctx context.Context, filePath string) (*View, error) {
	viewID, err := m.eng.NewView(ctx, filePath)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	v := New(viewID, m.eng, m.config)
	m.views[viewID] = v
	m.mu.Unlock()

	m.log.Info("view opened", "view", viewID, "path", filePath)
	return v, nil
}

// Close releases a view on both sides.
func (m *Manager) Close(viewID string) {
	m.mu.Lock()
	_, ok := m.views[viewID]
	delete(m.views, viewID)
	m.mu.Unlock()

	if ok {
		m.eng.CloseView(viewID)
	}
}

// SetFetchChunk changes the fetch widening granularity on every
// registered view and on views opened afterwards. Used by config
// live-reload.
func (m *Manager) SetFetchChunk(chunk int) {
	m.mu.Lock()
	m.config.FetchChunk = chunk
	views := make([]*View, 0, len(m.views))
	for _, v := range m.views {
		views = append(views, v)
	}
	m.mu.Unlock()

	for _, v := range views {
		v.SetFetchChunk(chunk)
	}
	m.log.Info("fetch chunk changed", "chunk", chunk)
}

// Get returns a registered view.
func (m *Manager) Get(viewID string) (*View, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.views[viewID]
	return v, ok
}

// Redraw returns the coalescing repaint signal channel.
func (m *Manager) Redraw() <-chan struct{} {
	return m.redraw
}

// HandleMessage is the transport's inbound handler. It runs on the
// receive goroutine: it decodes, applies, signals, and returns; painting
// happens elsewhere. It must never issue a synchronous engine call.
func (m *Manager) HandleMessage(method string, params json.RawMessage) {
	switch method {
	case protocol.MethodUpdate:
		var n protocol.UpdateNotification
		if err := protocol.DecodeParams(params, &n); err != nil {
			m.log.Warn("dropping undecodable update", "err", err)
			return
		}
		v, ok := m.Get(n.ViewID)
		if !ok {
			m.log.Warn("update for unknown view", "view", n.ViewID)
			return
		}
		if n.Update.Skipped > 0 {
			// The cache may drift from true engine state until the next
			// full update.
			m.log.Warn("update contained malformed ops", "view", n.ViewID, "skipped", n.Update.Skipped)
		}
		v.ApplyUpdate(n.Update)
		m.signalRedraw()

	case protocol.MethodSetLines:
		var n protocol.SetLinesNotification
		if err := protocol.DecodeParams(params, &n); err != nil {
			m.log.Warn("dropping undecodable snapshot", "err", err)
			return
		}
		v, ok := m.Get(n.ViewID)
		if !ok {
			m.log.Warn("snapshot for unknown view", "view", n.ViewID)
			return
		}
		v.ApplySnapshot(n)
		m.signalRedraw()

	case protocol.MethodScrollTo:
		var n protocol.ScrollToNotification
		if err := protocol.DecodeParams(params, &n); err != nil {
			m.log.Warn("dropping undecodable scroll_to", "err", err)
			return
		}
		if v, ok := m.Get(n.ViewID); ok {
			v.ScrollTo(n.Line, n.Col)
			m.signalRedraw()
		}

	case protocol.MethodDefStyle:
		var def protocol.StyleDef
		if err := protocol.DecodeParams(params, &def); err != nil {
			m.log.Warn("dropping undecodable def_style", "err", err)
			return
		}
		if m.onStyle != nil {
			m.onStyle(def)
		}

	case protocol.MethodAlert:
		var n protocol.AlertNotification
		if err := protocol.DecodeParams(params, &n); err != nil {
			m.log.Warn("dropping undecodable alert", "err", err)
			return
		}
		if m.onAlert != nil {
			m.onAlert(n.Msg)
		}

	default:
		if m.onUnhandled != nil {
			m.onUnhandled(method, params)
			return
		}
		m.log.Debug("dropping unhandled notification", "method", method)
	}
}

// signalRedraw posts one coalesced repaint request.
func (m *Manager) signalRedraw() {
	select {
	case m.redraw <- struct{}{}:
	default:
	}
}
