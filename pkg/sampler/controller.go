// Package sampler runs the capture-and-dispatch loop: on every tick it
// captures a frame, sends it with the instruction to the inference endpoint
// and publishes the reply.
//
// At most one cycle is in flight. A tick that finds the dispatch guard held is
// dropped, never queued, so replies are applied in the order their captures
// started. Stopping disarms the ticker but lets an in-flight cycle finish and
// apply its reply.
package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/teslashibe/lookout/internal/log"
	"github.com/teslashibe/lookout/pkg/frame"
	"github.com/teslashibe/lookout/pkg/inference"
)

// Source is the video source as seen by the controller.
type Source interface {
	// Capture samples the current frame, or returns false if none is available.
	Capture() (frame.Image, bool)

	// Err returns a terminal acquisition error. Non-nil blocks Start.
	Err() error
}

// Config holds the initial session settings and test seams.
type Config struct {
	Endpoint    string
	Instruction string
	IntervalMs  int

	// FPSWindow is the throughput publishing window.
	FPSWindow time.Duration

	// Now and NewTicker default to the wall clock and time.Ticker.
	Now       func() time.Time
	NewTicker TickerFunc

	Logger *slog.Logger
}

// Option is a functional option for configuring the controller.
type Option func(*Config)

// WithEndpoint sets the initial endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Config) { c.Endpoint = endpoint }
}

// WithInstruction sets the initial instruction.
func WithInstruction(instruction string) Option {
	return func(c *Config) { c.Instruction = instruction }
}

// WithInterval sets the initial tick interval in milliseconds.
func WithInterval(ms int) Option {
	return func(c *Config) { c.IntervalMs = ms }
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) Option {
	return func(c *Config) { c.Now = now }
}

// WithTicker replaces the ticker factory.
func WithTicker(fn TickerFunc) Option {
	return func(c *Config) { c.NewTicker = fn }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// DefaultConfig returns the settings of a fresh session.
func DefaultConfig() *Config {
	return &Config{
		Endpoint:    "http://localhost:1234",
		Instruction: "What do you see? Create a short description of the image.",
		IntervalMs:  DefaultIntervalMs,
		FPSWindow:   time.Second,
		Now:         time.Now,
		NewTicker:   NewTimeTicker,
	}
}

// Controller owns the session state, the dispatch guard, the throughput
// counter and the ticker. All fields are guarded by mu.
type Controller struct {
	src    Source
	sender inference.Sender
	logger *slog.Logger

	now       func() time.Time
	newTicker TickerFunc

	// Dispatches run under ctx; it is cancelled only by Shutdown.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	running     bool
	closed      bool
	endpoint    string
	instruction string
	intervalMs  int
	response    string
	fps         int
	busy        bool
	counter     *Counter
	cycles      uint64
	dropped     uint64
	seq         uint64

	// run identifies the current Running period; ticks from older runs are ignored.
	run    uint64
	ticker Ticker
	done   chan struct{}

	onChange  func(Snapshot)
	onCapture func(frame.Image)
}

// New creates a stopped controller.
func New(src Source, sender inference.Sender, opts ...Option) (*Controller, error) {
	if src == nil {
		return nil, fmt.Errorf("sampler: source required")
	}
	if sender == nil {
		return nil, fmt.Errorf("sampler: sender required")
	}

	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if !ValidInterval(cfg.IntervalMs) {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidInterval, cfg.IntervalMs)
	}
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, ErrEmptyEndpoint
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewTicker == nil {
		cfg.NewTicker = NewTimeTicker
	}
	if cfg.Logger == nil {
		cfg.Logger = log.L()
	}

	response := MsgReady
	if err := src.Err(); err != nil {
		response = err.Error()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		src:         src,
		sender:      sender,
		logger:      cfg.Logger.With("component", "sampler"),
		now:         cfg.Now,
		newTicker:   cfg.NewTicker,
		ctx:         ctx,
		cancel:      cancel,
		endpoint:    strings.TrimSpace(cfg.Endpoint),
		instruction: cfg.Instruction,
		intervalMs:  cfg.IntervalMs,
		response:    response,
		counter:     NewCounter(cfg.FPSWindow),
	}, nil
}

// OnChange registers a callback receiving every published snapshot.
// It is called outside the controller's lock, possibly from several
// goroutines; use Snapshot.Seq to order.
func (c *Controller) OnChange(fn func(Snapshot)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// OnCapture registers a callback receiving every captured frame.
func (c *Controller) OnCapture(fn func(frame.Image)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onCapture = fn
}

// State returns a copy of the session state.
func (c *Controller) State() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Running reports whether a run is active.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// Start enters Running: it resets the throughput window, arms the ticker and
// starts one cycle immediately. Starting while running is a no-op. If the
// source reports an acquisition error the controller stays stopped, shows the
// error as the response and returns it wrapped in ErrSourceUnavailable.
//
// Start does not free a dispatch guard still held by a cycle of an earlier
// run; ticks of the new run drop until that cycle finishes.
func (c *Controller) Start() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.running {
		c.mu.Unlock()
		return nil
	}
	if err := c.src.Err(); err != nil {
		c.response = err.Error()
		snap, notify := c.changedLocked()
		c.mu.Unlock()
		notify(snap)
		c.logger.Warn("start blocked by video source", "error", err)
		return fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
	}

	c.running = true
	c.run++
	run := c.run
	c.counter.Reset(c.now())
	c.response = MsgStarted

	// Never leave a previous handle armed.
	if c.ticker != nil {
		c.ticker.Stop()
		close(c.done)
	}
	interval := time.Duration(c.intervalMs) * time.Millisecond
	t := c.newTicker(interval)
	done := make(chan struct{})
	c.ticker, c.done = t, done

	snap, notify := c.changedLocked()
	c.mu.Unlock()
	notify(snap)

	c.logger.Info("sampling started",
		"endpoint", snap.Endpoint,
		"interval_ms", snap.IntervalMs,
	)

	go c.loop(run, t, done)
	c.tick(run)
	return nil
}

// Stop enters Stopped and disarms the ticker. An in-flight cycle is not
// aborted and will still apply its response. Stopping while stopped is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	if c.ticker != nil {
		c.ticker.Stop()
		close(c.done)
		c.ticker, c.done = nil, nil
	}
	if strings.HasPrefix(c.response, MsgStarted) {
		c.response = MsgStopped
	}
	snap, notify := c.changedLocked()
	c.mu.Unlock()
	notify(snap)

	c.logger.Info("sampling stopped", "cycles", snap.Cycles, "dropped", snap.Dropped)
}

// Trigger attempts one cycle outside the schedule, in any state. It returns
// false when the tick is dropped because a cycle is in flight.
func (c *Controller) Trigger() bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	return c.beginLocked()
}

// Settings is a partial update of the session settings. Nil fields are
// left unchanged.
type Settings struct {
	Endpoint    *string `json:"endpoint"`
	Instruction *string `json:"instruction"`
	IntervalMs  *int    `json:"interval_ms"`
}

// Configure validates and applies every field of s under one lock, so the
// update is all or nothing. Only permitted while stopped.
func (c *Controller) Configure(s Settings) error {
	var endpoint string
	if s.Endpoint != nil {
		endpoint = strings.TrimSpace(*s.Endpoint)
		if endpoint == "" {
			return ErrEmptyEndpoint
		}
	}
	if s.IntervalMs != nil && !ValidInterval(*s.IntervalMs) {
		return fmt.Errorf("%w: got %d", ErrInvalidInterval, *s.IntervalMs)
	}

	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return ErrRunning
	}
	if s.Endpoint != nil {
		c.endpoint = endpoint
	}
	if s.Instruction != nil {
		c.instruction = *s.Instruction
	}
	if s.IntervalMs != nil {
		c.intervalMs = *s.IntervalMs
	}
	snap, notify := c.changedLocked()
	c.mu.Unlock()
	notify(snap)
	return nil
}

// SetEndpoint changes the endpoint. Only permitted while stopped.
func (c *Controller) SetEndpoint(endpoint string) error {
	return c.Configure(Settings{Endpoint: &endpoint})
}

// SetInstruction changes the instruction. Only permitted while stopped.
func (c *Controller) SetInstruction(instruction string) error {
	return c.Configure(Settings{Instruction: &instruction})
}

// SetInterval changes the tick interval. Only permitted while stopped.
func (c *Controller) SetInterval(ms int) error {
	return c.Configure(Settings{IntervalMs: &ms})
}

// Wait blocks until no cycle is in flight.
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Shutdown stops the controller and waits for in-flight cycles. If ctx ends
// first, pending dispatches are cancelled and Shutdown returns ctx.Err()
// once they have returned.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.Stop()

	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()

	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		c.cancel()
		return nil
	case <-ctx.Done():
		c.logger.Warn("cancelling in-flight dispatch")
		c.cancel()
		<-done
		return ctx.Err()
	}
}

// loop forwards ticks of one run until done is closed.
func (c *Controller) loop(run uint64, t Ticker, done <-chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-t.C():
			c.tick(run)
		}
	}
}

// tick starts a cycle if run is still the active run.
func (c *Controller) tick(run uint64) bool {
	c.mu.Lock()
	if !c.running || c.run != run {
		c.mu.Unlock()
		return false
	}
	return c.beginLocked()
}

// beginLocked acquires the guard and starts a cycle. Called with mu held;
// returns with mu released.
func (c *Controller) beginLocked() bool {
	if c.busy {
		c.dropped++
		c.mu.Unlock()
		c.logger.Debug("tick dropped, cycle in flight")
		return false
	}

	c.busy = true
	c.cycles++
	fps, publish := c.counter.Tick(c.now())
	if publish {
		c.fps = fps
	}
	endpoint, instruction := c.endpoint, c.instruction
	onCapture := c.onCapture
	c.wg.Add(1)

	var (
		snap   Snapshot
		notify = func(Snapshot) {}
	)
	if publish {
		snap, notify = c.changedLocked()
	}
	c.mu.Unlock()
	notify(snap)

	go c.cycle(endpoint, instruction, onCapture)
	return true
}

// cycle captures and dispatches one frame. The guard is released on every
// path, after the response has been applied.
func (c *Controller) cycle(endpoint, instruction string, onCapture func(frame.Image)) {
	logger := c.logger.With("cycle", uuid.NewString())
	start := c.now()

	defer c.wg.Done()
	defer c.release()
	defer func() {
		if r := recover(); r != nil {
			logger.Error("cycle panicked", "panic", r)
			c.setResponse(fmt.Sprintf("Error: %v", r))
		}
	}()

	img, ok := c.src.Capture()
	if !ok {
		logger.Debug("capture yielded no frame")
		c.setResponse(MsgCaptureFailed)
		return
	}
	if onCapture != nil {
		onCapture(img)
	}

	text := c.sender.Send(c.ctx, endpoint, instruction, img)
	c.setResponse(text)

	logger.Debug("cycle complete",
		"bytes", len(img.JPEG),
		"latency_ms", c.now().Sub(start).Milliseconds(),
	)
}

func (c *Controller) setResponse(text string) {
	c.mu.Lock()
	c.response = text
	snap, notify := c.changedLocked()
	c.mu.Unlock()
	notify(snap)
}

func (c *Controller) release() {
	c.mu.Lock()
	c.busy = false
	c.mu.Unlock()
}

// changedLocked bumps the sequence number and returns the snapshot with the
// listener to call once mu is released.
func (c *Controller) changedLocked() (Snapshot, func(Snapshot)) {
	c.seq++
	snap := c.snapshotLocked()
	if fn := c.onChange; fn != nil {
		return snap, fn
	}
	return snap, func(Snapshot) {}
}

func (c *Controller) snapshotLocked() Snapshot {
	return Snapshot{
		Seq:         c.seq,
		Running:     c.running,
		Endpoint:    c.endpoint,
		Instruction: c.instruction,
		IntervalMs:  c.intervalMs,
		Response:    c.response,
		FPS:         c.fps,
		InFlight:    c.busy,
		Cycles:      c.cycles,
		Dropped:     c.dropped,
	}
}
