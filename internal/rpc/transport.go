package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/tidwall/gjson"
	"pkt.systems/pslog"
)

// Handler receives inbound frames that are not responses to a pending
// request: engine notifications and anything else carrying a method.
// Handlers run on the receive goroutine; one dispatch completes before
// the next frame is parsed, so a handler that blocks stalls the whole
// inbound stream. Hand expensive work off to another goroutine.
type Handler func(method string, params json.RawMessage)

// ResponseFunc receives the result of an asynchronous request. It fires
// exactly once, on the receive goroutine, when the matching response
// arrives; if the engine never answers, it never fires.
type ResponseFunc func(result json.RawMessage, err *ResponseError)

// request is the outbound envelope.
type request struct {
	Method string `json:"method"`
	Params any    `json:"params,omitempty"`
	ID     *int64 `json:"id,omitempty"`
}

// Transport frames and routes messages on one shared byte stream.
type Transport struct {
	reader io.Reader
	writer io.Writer
	closer io.Closer
	log    pslog.Logger

	// mu serializes id allocation, pending-map mutation, and writes.
	// Correlation ids are generated in the same critical section that
	// inserts the pending entry.
	mu      sync.Mutex
	nextID  int64
	pending map[int64]ResponseFunc

	handler Handler

	closed atomic.Bool
	done   chan struct{}

	// eof closes when the receive loop observes end of stream.
	eof     chan struct{}
	eofOnce sync.Once
}

// Option configures a Transport.
type Option func(*Transport)

// WithLogger sets the transport logger.
func WithLogger(log pslog.Logger) Option {
	return func(t *Transport) {
		t.log = log
	}
}

// NewTransport creates a transport over the given streams, typically the
// engine child process's stdout (r) and stdin (w).
func NewTransport(r io.Reader, w io.Writer, c io.Closer, opts ...Option) *Transport {
	t := &Transport{
		reader:  r,
		writer:  w,
		closer:  c,
		log:     pslog.Ctx(context.Background()),
		pending: make(map[int64]ResponseFunc),
		done:    make(chan struct{}),
		eof:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// OnMessage sets the generic inbound handler. Must be called before
// Start.
func (t *Transport) OnMessage(h Handler) {
	t.handler = h
}

// Start begins draining the inbound stream.
func (t *Transport) Start(ctx context.Context) {
	go t.readLoop(ctx)
}

// Close shuts the transport down and discards pending requests. Their
// callbacks never fire.
func (t *Transport) Close() error {
	if t.closed.Swap(true) {
		return nil
	}
	close(t.done)

	t.mu.Lock()
	t.pending = make(map[int64]ResponseFunc)
	t.mu.Unlock()

	if t.closer != nil {
		return t.closer.Close()
	}
	return nil
}

// IsClosed reports whether Close has been called.
func (t *Transport) IsClosed() bool {
	return t.closed.Load()
}

// Done returns a channel closed when the receive loop stops, either via
// Close or because the engine's stream ended.
func (t *Transport) Done() <-chan struct{} {
	return t.eof
}

// Notify sends a fire-and-forget notification. No response is tracked.
func (t *Transport) Notify(method string, params any) error {
	if t.closed.Load() {
		return ErrShutdown
	}
	return t.send(&request{Method: method, Params: params})
}

// RequestAsync sends a request whose response is delivered to cb on the
// receive goroutine. If the engine never responds, the pending entry is
// never collected; there is no timeout or cancel primitive.
func (t *Transport) RequestAsync(method string, params any, cb ResponseFunc) error {
	if t.closed.Load() {
		return ErrShutdown
	}
	_, err := t.register(method, params, cb)
	return err
}

// Call sends a request and blocks until its response arrives, the
// context is cancelled, or the transport closes. Calling it from the
// receive goroutine deadlocks; see the package comment.
func (t *Transport) Call(ctx context.Context, method string, params any, result any) error {
	if t.closed.Load() {
		return ErrShutdown
	}

	type outcome struct {
		result json.RawMessage
		err    *ResponseError
	}
	ch := make(chan outcome, 1)

	id, err := t.register(method, params, func(res json.RawMessage, rerr *ResponseError) {
		ch <- outcome{result: res, err: rerr}
	})
	if err != nil {
		return err
	}
	defer t.forget(id)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.done:
		return ErrShutdown
	case <-t.eof:
		return ErrDisconnected
	case out := <-ch:
		if out.err != nil {
			return out.err
		}
		if result != nil && len(out.result) > 0 {
			if err := json.Unmarshal(out.result, result); err != nil {
				return fmt.Errorf("unmarshal result: %w", err)
			}
		}
		return nil
	}
}

// register allocates a correlation id, inserts the pending entry, and
// writes the request, all under one lock so ids and insertions cannot
// race.
func (t *Transport) register(method string, params any, cb ResponseFunc) (int64, error) {
	t.mu.Lock()
	t.nextID++
	id := t.nextID
	t.pending[id] = cb
	err := t.writeLocked(&request{Method: method, Params: params, ID: &id})
	t.mu.Unlock()

	if err != nil {
		t.forget(id)
		return 0, fmt.Errorf("send request: %w", err)
	}
	return id, nil
}

// forget drops a pending entry, if still present.
func (t *Transport) forget(id int64) {
	t.mu.Lock()
	delete(t.pending, id)
	t.mu.Unlock()
}

// send serializes and writes one frame.
func (t *Transport) send(msg *request) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.writeLocked(msg)
}

// writeLocked marshals and writes a frame. Caller holds t.mu.
func (t *Transport) writeLocked(msg *request) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}
	data = append(data, '\n')
	if _, err := t.writer.Write(data); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// readLoop drains the inbound stream. Chunks carry no frame alignment;
// every complete frame extracted from a chunk is dispatched before the
// next read. A zero-length read or any read error ends the session.
func (t *Transport) readLoop(ctx context.Context) {
	defer t.eofOnce.Do(func() { close(t.eof) })

	var frames frameBuffer
	chunk := make([]byte, 32*1024)

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.done:
			return
		default:
		}

		n, err := t.reader.Read(chunk)
		if n > 0 {
			frames.Append(chunk[:n])
			for {
				frame, ok := frames.Next()
				if !ok {
					break
				}
				if len(frame) == 0 {
					continue
				}
				t.dispatch(frame)
			}
		}
		if err != nil {
			if t.closed.Load() {
				return
			}
			if err != io.EOF && err != io.ErrClosedPipe {
				t.log.Warn("engine stream read failed", "err", err)
			}
			return
		}
	}
}

// dispatch routes one complete frame: to a pending request's callback if
// it is a matching response, otherwise to the inbound handler. Malformed
// frames are logged and dropped; the loop continues.
func (t *Transport) dispatch(frame []byte) {
	if !gjson.ValidBytes(frame) {
		t.log.Warn("dropping malformed frame", "len", len(frame))
		return
	}
	msg := gjson.ParseBytes(frame)

	if id := msg.Get("id"); id.Exists() && id.Type == gjson.Number {
		if res, errField := msg.Get("result"), msg.Get("error"); res.Exists() || errField.Exists() {
			t.handleResponse(id.Int(), res, errField)
			return
		}
	}

	if method := msg.Get("method"); method.Exists() {
		if t.handler != nil {
			params := json.RawMessage(msg.Get("params").Raw)
			t.handler(method.String(), params)
		}
		return
	}

	t.log.Warn("dropping uninterpretable frame", "len", len(frame))
}

// handleResponse routes a response frame to its pending callback and
// removes the entry. Unmatched responses are dropped.
func (t *Transport) handleResponse(id int64, res, errField gjson.Result) {
	if t.closed.Load() {
		return
	}

	t.mu.Lock()
	cb, ok := t.pending[id]
	if ok {
		delete(t.pending, id)
	}
	t.mu.Unlock()

	if !ok {
		t.log.Warn("dropping response with no pending request", "id", id)
		return
	}

	var rerr *ResponseError
	if errField.Exists() && errField.Type != gjson.Null {
		rerr = &ResponseError{}
		if err := json.Unmarshal([]byte(errField.Raw), rerr); err != nil {
			rerr = &ResponseError{Message: errField.Raw}
		}
	}

	// The callback may outlive this dispatch (Call hands the result to a
	// waiting goroutine), while the raw frame's backing buffer belongs
	// to the receive loop.
	var result json.RawMessage
	if res.Exists() {
		result = append(json.RawMessage(nil), res.Raw...)
	}
	cb(result, rerr)
}
