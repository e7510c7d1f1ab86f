package engine

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os/exec"
	"testing"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/dshills/linebridge/internal/rpc"
)

// testEngine wires an engine handle to a fake engine over pipes,
// bypassing process launch.
type testEngine struct {
	eng       *Engine
	engineIn  *bufio.Scanner
	engineOut io.Writer
}

func newTestEngine(t *testing.T) *testEngine {
	t.Helper()

	toEngineR, toEngineW := io.Pipe()
	fromEngineR, fromEngineW := io.Pipe()

	e := New(Config{Command: "fake"})
	e.transport = rpc.NewTransport(fromEngineR, toEngineW, nil)
	e.transport.Start(context.Background())
	e.status.Store(int32(StatusRunning))

	t.Cleanup(func() {
		e.transport.Close()
		toEngineR.Close()
		toEngineW.Close()
		fromEngineR.Close()
		fromEngineW.Close()
	})

	return &testEngine{
		eng:       e,
		engineIn:  bufio.NewScanner(toEngineR),
		engineOut: fromEngineW,
	}
}

func (te *testEngine) nextFrame(t *testing.T) string {
	t.Helper()
	if !te.engineIn.Scan() {
		t.Fatalf("no frame: %v", te.engineIn.Err())
	}
	return te.engineIn.Text()
}

func TestNewView(t *testing.T) {
	te := newTestEngine(t)

	go func() {
		frame := te.nextFrame(t)
		resp, _ := sjson.Set(`{}`, "id", gjson.Get(frame, "id").Int())
		resp, _ = sjson.Set(resp, "result", "view-7")
		fmt.Fprintf(te.engineOut, "%s\n", resp)
	}()

	viewID, err := te.eng.NewView(context.Background(), "/tmp/notes.txt")
	if err != nil {
		t.Fatalf("NewView: %v", err)
	}
	if viewID != "view-7" {
		t.Errorf("viewID = %q, want view-7", viewID)
	}
}

func TestNewViewNotRunning(t *testing.T) {
	e := New(Config{Command: "fake"})
	if _, err := e.NewView(context.Background(), ""); err != ErrNotRunning {
		t.Errorf("err = %v, want ErrNotRunning", err)
	}
}

func TestEditCommandFrames(t *testing.T) {
	te := newTestEngine(t)

	tests := []struct {
		name string
		send func()
		// gjson path mapped to the expected value inside the frame
		want map[string]any
	}{
		{
			name: "insert",
			send: func() { te.eng.Insert("v1", "ab") },
			want: map[string]any{
				"method":              "edit",
				"params.view_id":      "v1",
				"params.method":       "insert",
				"params.params.chars": "ab",
			},
		},
		{
			name: "delete_backward",
			send: func() { te.eng.DeleteBackward("v1") },
			want: map[string]any{"params.method": "delete_backward"},
		},
		{
			name: "move",
			send: func() { te.eng.Move("v1", "move_down") },
			want: map[string]any{"params.method": "move_down"},
		},
		{
			name: "scroll",
			send: func() { te.eng.Scroll("v1", 10, 40) },
			want: map[string]any{
				"params.method":       "scroll",
				"params.params.first": float64(10),
				"params.params.last":  float64(40),
			},
		},
		{
			name: "click",
			send: func() { te.eng.Click("v1", 3, 7, 0, 1) },
			want: map[string]any{
				"params.method":      "click",
				"params.params.line": float64(3),
				"params.params.col":  float64(7),
			},
		},
		{
			name: "save",
			send: func() { te.eng.Save("v1", "/tmp/out.txt") },
			want: map[string]any{
				"params.method":           "save",
				"params.params.file_path": "/tmp/out.txt",
			},
		},
		{
			name: "undo",
			send: func() { te.eng.Undo("v1") },
			want: map[string]any{"params.method": "undo"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			done := make(chan string, 1)
			go func() {
				done <- te.nextFrame(t)
			}()
			tt.send()

			select {
			case frame := <-done:
				for path, want := range tt.want {
					got := gjson.Get(frame, path).Value()
					if got != want {
						t.Errorf("%s = %v, want %v (frame %s)", path, got, want, frame)
					}
				}
				if gjson.Get(frame, "id").Exists() {
					t.Error("edit command carries an id, want notification")
				}
			case <-time.After(2 * time.Second):
				t.Fatal("no frame written")
			}
		})
	}
}

func TestRequestLinesFrame(t *testing.T) {
	te := newTestEngine(t)

	done := make(chan string, 1)
	go func() { done <- te.nextFrame(t) }()

	te.eng.RequestLines("v1", 100, 164)

	select {
	case frame := <-done:
		if gjson.Get(frame, "method").String() != "request_lines" {
			t.Errorf("method = %q", gjson.Get(frame, "method").String())
		}
		if gjson.Get(frame, "params.first").Int() != 100 || gjson.Get(frame, "params.last").Int() != 164 {
			t.Errorf("params = %s", gjson.Get(frame, "params").Raw)
		}
		if gjson.Get(frame, "id").Exists() {
			t.Error("fetch carries an id, want fire-and-forget")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame written")
	}
}

func TestSetThemeFrame(t *testing.T) {
	te := newTestEngine(t)

	done := make(chan string, 1)
	go func() { done <- te.nextFrame(t) }()

	te.eng.SetTheme("solarized-dark")

	select {
	case frame := <-done:
		if gjson.Get(frame, "method").String() != "set_theme" {
			t.Errorf("method = %q", gjson.Get(frame, "method").String())
		}
		if gjson.Get(frame, "params.theme_name").String() != "solarized-dark" {
			t.Errorf("params = %s", gjson.Get(frame, "params").Raw)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no frame written")
	}
}

func TestNotificationsDroppedWhenStopped(t *testing.T) {
	e := New(Config{Command: "fake"})

	// Must be a silent no-op, not a panic on the nil transport.
	e.Insert("v1", "x")
	e.CloseView("v1")
	e.RequestLines("v1", 0, 10)
}

// TestProcessLifecycle exercises the real spawn path using cat, which
// echoes our own frames back as inbound messages.
func TestProcessLifecycle(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	e := New(Config{Command: "cat"})

	got := make(chan string, 8)
	e.OnMessage(func(method string, params json.RawMessage) {
		got <- method
	})

	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Shutdown()

	if e.Status() != StatusRunning {
		t.Fatalf("status = %v, want running", e.Status())
	}

	// cat echoes the client_started handshake straight back.
	select {
	case method := <-got:
		if method != "client_started" {
			t.Errorf("method = %q, want client_started", method)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no echoed handshake")
	}

	e.Shutdown()
	if e.Status() != StatusStopped {
		t.Errorf("status = %v, want stopped", e.Status())
	}

	select {
	case <-e.ExitChannel():
	case <-time.After(5 * time.Second):
		t.Fatal("no exit reported")
	}
}

func TestStartTwice(t *testing.T) {
	if _, err := exec.LookPath("cat"); err != nil {
		t.Skip("cat not available")
	}

	e := New(Config{Command: "cat"})
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer e.Shutdown()

	if err := e.Start(context.Background()); err != ErrAlreadyStarted {
		t.Errorf("second Start err = %v, want ErrAlreadyStarted", err)
	}
}

func TestLaunchFailureIsFatal(t *testing.T) {
	e := New(Config{Command: "/nonexistent/engine/binary"})
	if err := e.Start(context.Background()); err == nil {
		t.Fatal("Start succeeded with nonexistent binary")
	}
	if e.Status() != StatusError {
		t.Errorf("status = %v, want error", e.Status())
	}
}
