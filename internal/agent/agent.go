package agent

import (
	"fmt"
	"sync"
	"time"

	"github.com/laceai/lace-core/internal/approval"
	"github.com/laceai/lace-core/internal/persona"
	"github.com/laceai/lace-core/internal/project"
	"github.com/laceai/lace-core/internal/provider"
	"github.com/laceai/lace-core/internal/session"
	"github.com/laceai/lace-core/internal/thread"
	"github.com/laceai/lace-core/internal/tool"
)

// State is one of the Agent's turn states.
type State string

const (
	StateIdle         State = "idle"
	StateThinking     State = "thinking"
	StateStreaming    State = "streaming"
	StateAwaitingTool State = "awaiting_tool"
	StateCancelling   State = "cancelling"
)

const (
	// MaxToolIterations bounds step 4's loop so a misbehaving Provider
	// cannot keep a turn alive forever.
	MaxToolIterations = 50

	// DefaultApprovalDeadline is used when RunOptions.ApprovalDeadline
	// is zero.
	DefaultApprovalDeadline = 10 * time.Minute

	// DefaultPersona is used when RunOptions.Persona is empty.
	DefaultPersona = "build"
)

// RunOptions configure a single turn.
type RunOptions struct {
	// Persona selects which persona.Agent supplies the system prompt
	// and tool-advertisement rules. Defaults to DefaultPersona.
	Persona string

	// Model, in "provider/model" form, overrides the registry default
	// for this turn. Empty means use the Registry's DefaultModel.
	Model string

	// ApprovalDeadline bounds how long step 3.e waits for a decision
	// before treating the call as timed out. Zero means
	// DefaultApprovalDeadline; a deadline of exactly 0 duration must be
	// requested with NegativeApprovalDeadline to get an immediate
	// timeout.
	ApprovalDeadline time.Duration

	// NegativeApprovalDeadline, set true, requests an already-elapsed
	// deadline — awaitDecision returns ErrApprovalTimeout immediately,
	// to get an immediate timeout.
	NegativeApprovalDeadline bool

	// MaxTokens passes through to the Provider unchanged (zero leaves
	// the limit to the Provider). Temperature and TopP are not set here;
	// they always come from the persona.
	MaxTokens int
}

// Driver is the Agent. One Driver instance can run turns for any
// number of threads; it is the per-thread single-writer lock and
// per-thread cancellation signal that keep "at most one Agent runs per
// thread at a time" true.
type Driver struct {
	threads   *thread.Manager
	approvals *approval.Coordinator
	tools     *tool.Registry
	providers *provider.Registry
	personas  *persona.Registry
	projects  *project.Service
	sessions  *session.Service

	mu      sync.Mutex
	running map[string]bool
	states  map[string]State
	cancels map[string]chan struct{}
}

// NewDriver wires a Driver over the Core's components.
func NewDriver(
	threads *thread.Manager,
	approvals *approval.Coordinator,
	tools *tool.Registry,
	providers *provider.Registry,
	personas *persona.Registry,
	projects *project.Service,
	sessions *session.Service,
) *Driver {
	return &Driver{
		threads:   threads,
		approvals: approvals,
		tools:     tools,
		providers: providers,
		personas:  personas,
		projects:  projects,
		sessions:  sessions,
		running:   make(map[string]bool),
		states:    make(map[string]State),
		cancels:   make(map[string]chan struct{}),
	}
}

// State returns a thread's current turn state. Threads with no turn yet
// run report StateIdle.
func (d *Driver) State(threadID string) State {
	d.mu.Lock()
	defer d.mu.Unlock()
	if s, ok := d.states[threadID]; ok {
		return s
	}
	return StateIdle
}

// Cancel raises the cancellation signal for threadID's in-flight turn,
// if any. It is a no-op if no turn is running on that thread.
func (d *Driver) Cancel(threadID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if ch, ok := d.cancels[threadID]; ok {
		d.setStateLocked(threadID, StateCancelling)
		select {
		case <-ch:
		default:
			close(ch)
		}
	}
}

// acquire claims the single-writer slot for threadID, returning the
// cancellation channel for this turn and a release function. It fails
// if a turn is already running on the thread — concurrent writers to
// one thread are a programming error.
func (d *Driver) acquire(threadID string) (cancel <-chan struct{}, release func(), err error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running[threadID] {
		return nil, nil, fmt.Errorf("agent: a turn is already running on thread %s", threadID)
	}
	ch := make(chan struct{})
	d.running[threadID] = true
	d.cancels[threadID] = ch
	d.states[threadID] = StateThinking

	release = func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.running, threadID)
		delete(d.cancels, threadID)
		d.states[threadID] = StateIdle
	}
	return ch, release, nil
}

func (d *Driver) setState(threadID string, s State) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.setStateLocked(threadID, s)
}

func (d *Driver) setStateLocked(threadID string, s State) {
	if _, running := d.running[threadID]; running {
		d.states[threadID] = s
	}
}

// cancelled reports whether ch has been closed without blocking.
func cancelled(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
