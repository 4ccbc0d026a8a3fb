// Package narration plays step narration through a tiered fallback chain:
// a pre-recorded file, then generated speech, then silence.
//
// Every request gets a new epoch. Callbacks belonging to an older epoch are
// ignored, so a slow synthesis for a step the client already left can never
// start playing.
package narration

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
)

var (
	// ErrQuotaExceeded is returned by a Synthesizer when the speech
	// provider rejects the request for quota or rate limits.
	ErrQuotaExceeded = errors.New("speech quota exceeded")
	// ErrUnavailable marks a tier that could not produce audio.
	ErrUnavailable = errors.New("narration unavailable")
)

// DefaultStaticTimeout bounds how long a pre-recorded file may take to
// become playable.
const DefaultStaticTimeout = 800 * time.Millisecond

// State is the narration state of the current request.
type State int

const (
	StateIdle State = iota
	StateAttemptingStatic
	StateAttemptingGenerated
	StatePlaying
	StateFinished
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAttemptingStatic:
		return "attempting-static"
	case StateAttemptingGenerated:
		return "attempting-generated"
	case StatePlaying:
		return "playing"
	case StateFinished:
		return "finished"
	}
	return "unknown"
}

// Tier is the audio source that served a request.
type Tier int

const (
	TierNone Tier = iota
	TierStatic
	TierGenerated
	TierSilent
)

func (t Tier) String() string {
	switch t {
	case TierStatic:
		return "static"
	case TierGenerated:
		return "generated"
	case TierSilent:
		return "silent"
	}
	return "none"
}

// Event reports a state change of a narration request.
type Event struct {
	Epoch  uint64
	StepID string
	State  State
	Tier   Tier
	// Quota is set on the event emitted when generated speech was refused
	// for quota reasons, so the UI can offer to mute.
	Quota bool
}

// Stream is an audio source that has become playable.
type Stream interface {
	// Play blocks until playback finishes or ctx is cancelled.
	Play(ctx context.Context) error
	// Close stops playback and releases the source.
	Close() error
}

// StaticSource opens pre-recorded narration files.
type StaticSource interface {
	Open(ctx context.Context, url string) (Stream, error)
}

// Synthesizer produces speech audio for a script.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Decoder turns synthesized bytes into a playable buffer.
type Decoder interface {
	Decode(data []byte) (Buffer, error)
}

// Graph is the audio context generated buffers are played through.
type Graph interface {
	Start(buf Buffer) (Stream, error)
	Close() error
}

// Preferences persists the mute preference.
type Preferences interface {
	NarrationMuted(ctx context.Context) (bool, error)
	SetNarrationMuted(ctx context.Context, muted bool) error
}

// Request is one narration attempt for a step.
type Request struct {
	SessionNumber int
	StepID        string
	Script        string
}

// Config wires a Controller to its collaborators. Static, Synth and
// NewGraph may be nil to disable the corresponding tier.
type Config struct {
	BaseURL       string
	StaticTimeout time.Duration
	Static        StaticSource
	Synth         Synthesizer
	Decoder       Decoder
	NewGraph      func() (Graph, error)
	Prefs         Preferences
	OnEvent       func(Event)
}

// Controller runs one narration request at a time.
type Controller struct {
	cfg Config

	mu     sync.Mutex
	epoch  uint64
	state  State
	tier   Tier
	stepID string
	muted  bool
	cancel context.CancelFunc
	active Stream
	graph  Graph
}

// New creates a controller and loads the persisted mute preference.
func New(ctx context.Context, cfg Config) *Controller {
	if cfg.StaticTimeout <= 0 {
		cfg.StaticTimeout = DefaultStaticTimeout
	}
	if cfg.Decoder == nil {
		cfg.Decoder = PCMDecoder{}
	}
	c := &Controller{cfg: cfg}
	if cfg.Prefs != nil {
		muted, err := cfg.Prefs.NarrationMuted(ctx)
		if err != nil {
			slog.Warn("failed to load mute preference", "error", err)
		}
		c.muted = muted
	}
	return c
}

// StaticURL is the deterministic location of a step's pre-recorded file.
func StaticURL(baseURL string, sessionNumber int, stepID string) string {
	return fmt.Sprintf("%s/session-%d/%s.mp3", strings.TrimRight(baseURL, "/"), sessionNumber, stepID)
}

// Narrate stops any active narration and starts req. It returns the epoch
// assigned to the request.
func (c *Controller) Narrate(req Request) uint64 {
	c.mu.Lock()
	c.stopLocked()
	c.epoch++
	e := c.epoch
	c.stepID = req.StepID

	if c.muted || strings.TrimSpace(req.Script) == "" {
		ev := c.transitionLocked(StateFinished, TierSilent)
		c.mu.Unlock()
		c.emit(ev)
		return e
	}

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	ev := c.transitionLocked(StateAttemptingStatic, TierNone)
	c.mu.Unlock()
	c.emit(ev)

	go c.run(ctx, e, req)
	return e
}

// Stop cancels the active request and releases its audio source.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.stopLocked()
	c.epoch++
	c.state = StateIdle
	c.tier = TierNone
	c.mu.Unlock()
}

// Close stops narration and releases the audio context.
func (c *Controller) Close() error {
	c.Stop()
	c.mu.Lock()
	g := c.graph
	c.graph = nil
	c.mu.Unlock()
	if g != nil {
		return g.Close()
	}
	return nil
}

// Muted reports the mute preference.
func (c *Controller) Muted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.muted
}

// SetMuted persists the mute preference. Muting stops active narration and
// marks it finished.
func (c *Controller) SetMuted(ctx context.Context, muted bool) error {
	c.mu.Lock()
	c.muted = muted
	var ev *Event
	if muted && c.state != StateIdle && c.state != StateFinished {
		c.stopLocked()
		c.epoch++
		e := c.transitionLocked(StateFinished, TierSilent)
		ev = &e
	}
	c.mu.Unlock()
	if ev != nil {
		c.emit(*ev)
	}
	if c.cfg.Prefs == nil {
		return nil
	}
	if err := c.cfg.Prefs.SetNarrationMuted(ctx, muted); err != nil {
		return fmt.Errorf("save mute preference: %w", err)
	}
	return nil
}

// Snapshot returns the epoch, state and tier of the current request.
func (c *Controller) Snapshot() (uint64, State, Tier) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.epoch, c.state, c.tier
}

func (c *Controller) run(ctx context.Context, e uint64, req Request) {
	if c.cfg.Static != nil && c.cfg.BaseURL != "" {
		url := StaticURL(c.cfg.BaseURL, req.SessionNumber, req.StepID)
		stream, err := c.openStatic(ctx, url)
		if err == nil {
			c.play(ctx, e, stream, TierStatic)
			return
		}
		slog.Debug("static narration unavailable", "url", url, "error", err)
	}

	if !c.advance(e, StateAttemptingGenerated) {
		return
	}
	stream, err := c.generate(ctx, req.Script)
	if err != nil {
		quota := errors.Is(err, ErrQuotaExceeded)
		if quota {
			slog.Info("speech quota exceeded", "step", req.StepID)
		} else {
			slog.Debug("generated narration unavailable", "step", req.StepID, "error", err)
		}
		c.finishSilent(e, quota)
		return
	}
	c.play(ctx, e, stream, TierGenerated)
}

func (c *Controller) openStatic(ctx context.Context, url string) (Stream, error) {
	type result struct {
		s   Stream
		err error
	}
	ch := make(chan result, 1)
	go func() {
		s, err := c.cfg.Static.Open(ctx, url)
		ch <- result{s, err}
	}()

	timer := time.NewTimer(c.cfg.StaticTimeout)
	defer timer.Stop()
	select {
	case r := <-ch:
		return r.s, r.err
	case <-timer.C:
	case <-ctx.Done():
	}
	// Release a source that becomes ready after we gave up on it.
	go func() {
		if r := <-ch; r.s != nil {
			_ = r.s.Close()
		}
	}()
	return nil, fmt.Errorf("open %s: %w", url, ErrUnavailable)
}

func (c *Controller) generate(ctx context.Context, script string) (Stream, error) {
	if c.cfg.Synth == nil || c.cfg.NewGraph == nil {
		return nil, ErrUnavailable
	}
	c.mu.Lock()
	muted := c.muted
	c.mu.Unlock()
	if muted {
		return nil, ErrUnavailable
	}

	audio, err := c.cfg.Synth.Synthesize(ctx, script)
	if err != nil {
		return nil, fmt.Errorf("synthesize: %w", err)
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	buf, err := c.cfg.Decoder.Decode(audio)
	if err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	g, err := c.ensureGraph()
	if err != nil {
		return nil, fmt.Errorf("audio context: %w", err)
	}
	return g.Start(buf)
}

func (c *Controller) ensureGraph() (Graph, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.graph != nil {
		return c.graph, nil
	}
	g, err := c.cfg.NewGraph()
	if err != nil {
		return nil, err
	}
	c.graph = g
	return g, nil
}

func (c *Controller) play(ctx context.Context, e uint64, s Stream, tier Tier) {
	c.mu.Lock()
	if c.epoch != e {
		c.mu.Unlock()
		_ = s.Close()
		return
	}
	c.active = s
	ev := c.transitionLocked(StatePlaying, tier)
	c.mu.Unlock()
	c.emit(ev)

	// The listener may have started a newer request.
	c.mu.Lock()
	current := c.epoch == e
	c.mu.Unlock()
	if !current {
		_ = s.Close()
		return
	}

	err := s.Play(ctx)
	if err != nil && ctx.Err() == nil {
		slog.Debug("narration playback failed", "tier", tier, "error", err)
	}

	c.mu.Lock()
	if c.epoch != e {
		c.mu.Unlock()
		return
	}
	c.active = nil
	_ = s.Close()
	ev = c.transitionLocked(StateFinished, tier)
	c.mu.Unlock()
	c.emit(ev)
}

func (c *Controller) advance(e uint64, s State) bool {
	c.mu.Lock()
	if c.epoch != e {
		c.mu.Unlock()
		return false
	}
	ev := c.transitionLocked(s, TierNone)
	c.mu.Unlock()
	c.emit(ev)
	return true
}

func (c *Controller) finishSilent(e uint64, quota bool) {
	c.mu.Lock()
	if c.epoch != e {
		c.mu.Unlock()
		return
	}
	ev := c.transitionLocked(StateFinished, TierSilent)
	ev.Quota = quota
	c.mu.Unlock()
	c.emit(ev)
}

func (c *Controller) transitionLocked(s State, t Tier) Event {
	c.state = s
	c.tier = t
	return Event{Epoch: c.epoch, StepID: c.stepID, State: s, Tier: t}
}

func (c *Controller) stopLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	if c.active != nil {
		_ = c.active.Close()
		c.active = nil
	}
}

func (c *Controller) emit(ev Event) {
	if c.cfg.OnEvent != nil {
		c.cfg.OnEvent(ev)
	}
}
