// Package relay streams a chat history to the configured LLM vendor and
// delivers the reply, fragment by fragment, to caller-supplied callbacks.
//
// For every invocation exactly one of OnDone or OnError fires, after zero or
// more OnDelta calls. Errors never escape as return values.
package relay

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/tidwall/gjson"

	"clarifyai/internal/core"
	"clarifyai/internal/metrics"
	"clarifyai/internal/sse"
)

// Config holds the generation settings applied to every turn.
type Config struct {
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
}

// Relay is safe for concurrent use; invocations share no mutable state.
type Relay struct {
	provider core.Provider
	cfg      Config
	recorder metrics.Recorder
	logger   *slog.Logger
}

// Option customizes a Relay.
type Option func(*Relay)

// WithRecorder sets the metrics recorder.
func WithRecorder(rec metrics.Recorder) Option {
	return func(r *Relay) {
		if rec != nil {
			r.recorder = rec
		}
	}
}

// WithLogger sets the logger used for stream lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Relay) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Relay in front of provider. An empty system prompt falls back to DefaultSystemPrompt.
func New(provider core.Provider, cfg Config, opts ...Option) *Relay {
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	r := &Relay{
		provider: provider,
		cfg:      cfg,
		recorder: metrics.Noop{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Vendor returns the name of the adapter behind the relay.
func (r *Relay) Vendor() string {
	return r.provider.Name()
}

// turn tracks one invocation and enforces the single terminal callback.
type turn struct {
	cb        core.StreamCallbacks
	finished  bool
	fragments int
	outcome   string
	errMsg    string
}

func (t *turn) delta(text string) {
	if t.finished || text == "" {
		return
	}
	t.fragments++
	if t.cb.OnDelta != nil {
		t.cb.OnDelta(text)
	}
}

func (t *turn) done() {
	if t.finished {
		return
	}
	t.finished = true
	t.outcome = metrics.OutcomeDone
	if t.cb.OnDone != nil {
		t.cb.OnDone()
	}
}

func (t *turn) fail(err error) {
	if t.finished {
		return
	}
	t.finished = true
	t.outcome = metrics.OutcomeError
	t.errMsg = errorMessage(err)
	if t.cb.OnError != nil {
		t.cb.OnError(t.errMsg)
	}
}

// errorMessage returns the human-readable part of err.
func errorMessage(err error) string {
	var gwErr *core.GatewayError
	if errors.As(err, &gwErr) && gwErr.Message != "" {
		return gwErr.Message
	}
	return err.Error()
}

// StreamChat sends messages (history followed by the newest user turn) upstream and
// reports the reply through cb. It returns once a terminal callback has fired.
// Cancelling ctx aborts the upstream connection and surfaces as OnError.
func (r *Relay) StreamChat(ctx context.Context, messages []core.Message, cb core.StreamCallbacks) {
	vendor := r.provider.Name()
	start := time.Now()
	t := &turn{cb: cb}
	logger := r.logger.With(
		"vendor", vendor,
		"request_id", core.GetRequestID(ctx),
		"conversation_id", core.GetConversationID(ctx),
	)

	r.recorder.StreamStarted(vendor)
	defer func() {
		if p := recover(); p != nil {
			logger.Error("relay stream panicked", "panic", p)
			t.fail(fmt.Errorf("internal error while reading the reply: %v", p))
		}
		elapsed := time.Since(start)
		r.recorder.StreamFinished(vendor, t.outcome, t.fragments, elapsed)
		if t.outcome == metrics.OutcomeError {
			logger.Warn("relay stream failed", "error", t.errMsg, "fragments", t.fragments, "duration", elapsed)
		} else {
			logger.Debug("relay stream finished", "fragments", t.fragments, "duration", elapsed)
		}
	}()

	if len(messages) == 0 {
		t.fail(core.NewConfigurationError(vendor, "no messages to send"))
		return
	}
	if err := core.ValidateMessages(messages); err != nil {
		t.fail(err)
		return
	}

	logger.Debug("relay stream starting", "messages", len(messages), "model", r.cfg.Model)

	body, err := r.provider.StreamChatCompletion(ctx, r.buildRequest(messages))
	if err != nil {
		t.fail(err)
		return
	}
	if body == nil {
		t.fail(core.NewTransportError(vendor, "response has no body", nil))
		return
	}
	defer func() { _ = body.Close() }()

	if err := r.consume(body, t); err != nil {
		t.fail(err)
		return
	}
	t.done()
}

func (r *Relay) buildRequest(messages []core.Message) *core.ChatRequest {
	temp := r.cfg.Temperature
	req := &core.ChatRequest{
		Model:        r.cfg.Model,
		SystemPrompt: r.cfg.SystemPrompt,
		Messages:     messages,
		Temperature:  &temp,
		Stream:       true,
	}
	if r.cfg.MaxTokens > 0 {
		maxTokens := r.cfg.MaxTokens
		req.MaxTokens = &maxTokens
	}
	return req
}

// consume reads the event stream until the transport completes.
// After the [DONE] sentinel the remaining bytes are drained without decoding.
func (r *Relay) consume(body io.Reader, t *turn) error {
	vendor := r.provider.Name()
	dec := sse.NewDecoder(body)

	for {
		payload, err := dec.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return core.NewTransportError(vendor, "stream interrupted: "+err.Error(), err)
		}

		if payload == sse.Done {
			if err := dec.Drain(); err != nil {
				return core.NewTransportError(vendor, "stream interrupted after completion: "+err.Error(), err)
			}
			return nil
		}

		if !gjson.Valid(payload) {
			r.logger.Debug("skipping malformed stream event", "vendor", vendor, "bytes", len(payload))
			continue
		}

		if upstream := gjson.Get(payload, "error"); upstream.Exists() && upstream.Type != gjson.Null {
			msg := upstream.Get("message").String()
			if msg == "" {
				msg = "vendor reported an error mid-stream"
			}
			return core.NewUpstreamError(vendor, msg)
		}

		text, err := r.provider.ParseChunk(payload)
		if err != nil {
			return err
		}
		t.delta(text)
	}
}
