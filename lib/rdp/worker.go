package rdp

import (
	"context"
	"sync"
	"time"

	"github.com/gravitational/trace"
	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"

	"github.com/gravitational/rustconn/lib/errs"
)

// Engine is the embedded-session driver interface satisfied by
// lib/rdp/rdpclient.Client (CGO, build-tag gated) and exercised by Worker.
// Separating it from the CGO package lets Worker, StateMachine and
// PixelBuffer stay portable and testable without the rustconn_rdp build
// tag.
type Engine interface {
	Connect(ctx context.Context, cfg Config, security SecurityProtocol) error
	Send(cmd Command) error
	Events() <-chan Event
	Close() error
}

// EngineFactory constructs a new Engine instance; lib/rdp/rdpclient.NewEngine
// is the production implementation, gated behind the rustconn_rdp build tag.
type EngineFactory func() (Engine, error)

// Worker is the one-worker-per-session driver of spec §4.2: it owns the
// socket (via Engine), the state machine, and the pixel buffer's writer
// side. The UI thread only ever touches Commands, Events and PixelBuffer.
type Worker struct {
	cfg     Config
	factory EngineFactory

	state   *StateMachine
	pixels  *PixelBuffer
	cmdQ    CommandQueue
	eventQ  EventQueue

	log *logrus.Entry

	mu            sync.Mutex
	embeddedTried bool
	useFallback   bool

	frameCounter uint64
}

// NewWorker builds a Worker. If factory is nil or every embedded attempt
// fails, UsesFallback() reports true and the session manager should fall back
// to lib/rdp.Fallback (spec §4.2, "Fallback to external client").
func NewWorker(cfg Config, factory EngineFactory, clock clockwork.Clock) (*Worker, error) {
	if err := cfg.checkAndSetDefaults(); err != nil {
		return nil, err
	}
	return &Worker{
		cfg:     cfg,
		factory: factory,
		state:   NewStateMachine(cfg.Reconnect, clock),
		pixels:  NewPixelBuffer(cfg.InitialWidth, cfg.InitialHeight),
		cmdQ:    NewCommandQueue(32),
		eventQ:  NewEventQueue(256),
		log:     logrus.WithField("component", "rdp.worker"),
	}, nil
}

func (w *Worker) Commands() CommandQueue { return w.cmdQ }
func (w *Worker) Events() EventQueue     { return w.eventQ }
func (w *Worker) Pixels() *PixelBuffer   { return w.pixels }
func (w *Worker) State() State           { return w.state.State() }

// UsesFallback reports whether the embedded/external decision already fell
// through to the external client. It is a one-shot decision per session
// (spec §4.2: "not renegotiated mid-stream").
func (w *Worker) UsesFallback() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.useFallback
}

// Run drives the state machine and engine for the session's lifetime. It
// returns once the session reaches Disconnected, either from the caller
// sending CmdDisconnect or from exhausting the reconnect budget.
func (w *Worker) Run(ctx context.Context) error {
	if w.factory == nil {
		w.mu.Lock()
		w.useFallback = true
		w.mu.Unlock()
		w.eventQ <- EvtError{Err: errs.ErrEmbeddedUnavailable}
		return errs.ErrEmbeddedUnavailable
	}

	engine, err := w.factory()
	if err != nil {
		w.mu.Lock()
		w.useFallback = true
		w.mu.Unlock()
		w.eventQ <- EvtError{Err: trace.Wrap(err)}
		return trace.Wrap(err)
	}
	defer engine.Close()

	for {
		if err := w.connectOnce(ctx, engine); err != nil {
			w.state.TransportFailed()
			if w.state.State() == StateDisconnected {
				w.mu.Lock()
				w.useFallback = true
				w.mu.Unlock()
				w.eventQ <- EvtDisconnected{Reason: err.Error()}
				return trace.Wrap(err)
			}
			continue
		}
		w.state.Active()
		w.eventQ <- EvtConnected{}

		if err := w.pump(ctx, engine); err != nil {
			w.state.TransportFailed()
			if w.state.State() == StateDisconnected {
				w.mu.Lock()
				w.useFallback = true
				w.mu.Unlock()
				w.eventQ <- EvtDisconnected{Reason: err.Error()}
				return trace.Wrap(err)
			}
			continue
		}
		return nil
	}
}

// connectOnce walks the security-protocol fallback order of spec §4.2 on an
// Auto setting, trying NLA, then TLS, then RDP until one succeeds.
func (w *Worker) connectOnce(ctx context.Context, engine Engine) error {
	w.state.BeginConnect()
	w.state.Authenticating()

	if w.cfg.SecurityProtocol != "Auto" {
		return engine.Connect(ctx, w.cfg, parseSecurity(w.cfg.SecurityProtocol))
	}

	var lastErr error
	for {
		sec, ok := w.state.NextSecurityFallback()
		if !ok {
			return trace.Wrap(lastErr)
		}
		if err := engine.Connect(ctx, w.cfg, sec); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
}

func parseSecurity(s string) SecurityProtocol {
	switch s {
	case "NLA":
		return SecurityNLA
	case "TLS":
		return SecurityTLS
	default:
		return SecurityRDP
	}
}

// pump relays engine events to the UI event queue and engine-bound commands
// from the UI command queue until the engine reports a terminal condition.
func (w *Worker) pump(ctx context.Context, engine Engine) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case cmd := <-w.cmdQ:
			if _, ok := cmd.(CmdDisconnect); ok {
				w.state.Disconnect()
				return nil
			}
			if err := engine.Send(cmd); err != nil {
				return trace.Wrap(err)
			}
		case evt, ok := <-engine.Events():
			if !ok {
				return trace.ConnectionProblem(nil, "rdp engine event stream closed")
			}
			if fu, ok := evt.(EvtFrameUpdate); ok {
				w.frameCounter++
				fu.FrameNumber = w.frameCounter
				evt = fu
			}
			select {
			case w.eventQ <- evt:
			default:
				// UI is behind; drop this event rather than block the
				// worker's socket loop.
			}
		}
	}
}

// RequestResize is invoked by the UI layer after ResizeDebounce
// quiescence (spec §4.2: "debounce 500ms"). It is exposed as a method so the
// debounce timer itself can live in the GUI-facing caller.
func (w *Worker) RequestResize(width, height int) {
	select {
	case w.cmdQ <- CmdResize{Width: width, Height: height}:
	case <-time.After(0):
	}
}
