// Package bridge runs a realtime conversation: it reassembles the agent's
// streamed text, executes the search commands it contains and injects the
// results back into the conversation.
package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/wave/molly/internal/bullhorn"
	"github.com/wave/molly/internal/command"
	"github.com/wave/molly/internal/credential"
	"github.com/wave/molly/internal/prompts"
	"github.com/wave/molly/internal/realtime"
)

// Searcher runs one search cycle for a command payload.
type Searcher interface {
	Search(ctx context.Context, p command.Payload) (*bullhorn.Results, error)
}

// Options configures an Orchestrator.
type Options struct {
	// ID tags the conversation in logs and the search log. Generated when empty.
	ID string
	// Session is sent when the channel opens, ahead of the greeting.
	Session *realtime.SessionUpdate
	// SkipGreeting suppresses the greeting instruction on open.
	SkipGreeting bool
	Logger       *log.Logger
	Now          func() time.Time
}

// Orchestrator drives one conversation. Commands are handled strictly one at
// a time: lines completed while a search is in flight wait in order.
type Orchestrator struct {
	id       string
	searcher Searcher
	sink     Sink
	session  *realtime.SessionUpdate
	greet    bool
	logger   *log.Logger
	now      func() time.Time
}

// New returns an orchestrator that searches with searcher and reports to sink.
func New(searcher Searcher, sink Sink, opts Options) *Orchestrator {
	o := &Orchestrator{
		id:       opts.ID,
		searcher: searcher,
		sink:     sink,
		session:  opts.Session,
		greet:    !opts.SkipGreeting,
		logger:   opts.Logger,
		now:      opts.Now,
	}
	if o.id == "" {
		o.id = uuid.NewString()
	}
	if o.sink == nil {
		o.sink = Discard
	}
	if o.logger == nil {
		o.logger = log.Default()
	}
	if o.now == nil {
		o.now = time.Now
	}
	return o
}

// ID returns the conversation ID.
func (o *Orchestrator) ID() string {
	return o.id
}

type cycleResult struct {
	payload command.Payload
	results *bullhorn.Results
	err     error
}

type cycle struct {
	cancel context.CancelFunc
	done   chan cycleResult
}

// Run processes ch until it closes or ctx is done. Closing stops processing:
// the partial line is discarded and an in-flight search is cancelled with its
// result dropped. Run returns nil when the channel closed and ctx.Err() when
// the context ended first.
func (o *Orchestrator) Run(ctx context.Context, ch realtime.Channel) error {
	ctx = bullhorn.WithSource(ctx, o.id)

	var (
		reassembler command.Reassembler
		pending     []string
		inflight    *cycle
	)

	defer func() {
		if inflight != nil {
			inflight.cancel()
		}
		if rest := reassembler.Pending(); rest != "" {
			o.logger.Printf("[bridge] %s: discarding %d buffered bytes on close", o.id, len(rest))
		}
		reassembler.Reset()
	}()

	for {
		var results <-chan cycleResult
		if inflight != nil {
			results = inflight.done
		}

		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-ch.Events():
			if !ok {
				o.logger.Printf("[bridge] %s: channel closed", o.id)
				return nil
			}
			pending = append(pending, o.handleEvent(ctx, ch, event, &reassembler)...)

		case res := <-results:
			inflight.cancel()
			inflight = nil
			o.complete(ctx, ch, res)
		}

		for inflight == nil && len(pending) > 0 {
			line := pending[0]
			pending = pending[1:]
			inflight = o.processLine(ctx, line)
		}
	}
}

// handleEvent returns the lines completed by a text delta.
func (o *Orchestrator) handleEvent(ctx context.Context, ch realtime.Channel, event realtime.Event, r *command.Reassembler) []string {
	switch e := event.(type) {
	case realtime.Opened:
		o.logger.Printf("[bridge] %s: channel open", o.id)
		if o.session != nil {
			if err := ch.Send(ctx, *o.session); err != nil && !errors.Is(err, realtime.ErrClosed) {
				o.logger.Printf("[bridge] %s: session update failed: %v", o.id, err)
			}
		}
		if o.greet {
			o.inject(ctx, ch, prompts.Greeting())
		}
	case realtime.TextDelta:
		return r.Feed(e.Delta)
	case realtime.ServerError:
		o.logger.Printf("[bridge] %s: server error %s: %s", o.id, e.Code, e.Message)
		o.emit(Entry{Kind: KindWarning, Text: e.Message})
	case realtime.Unknown:
		o.emit(Entry{Kind: KindRelay, Event: e.Raw})
	}
	return nil
}

// processLine classifies line and starts a search cycle for a command.
func (o *Orchestrator) processLine(ctx context.Context, line string) *cycle {
	outcome := command.Classify(line)

	switch outcome.Kind {
	case command.KindNarrative:
		if outcome.Text != "" {
			o.emit(Entry{Kind: KindNarrative, Text: outcome.Text})
		}
		return nil

	case command.KindMalformed:
		o.logger.Printf("[bridge] %s: %v", o.id, outcome.Err)
		o.emit(Entry{Kind: KindWarning, Text: prompts.MalformedWarning(outcome.Err.Message)})
		return nil
	}

	payload := outcome.Payload
	o.logger.Printf("[bridge] %s: search requested", o.id)
	o.emit(Entry{Kind: KindCommand, Payload: &payload})

	cctx, cancel := context.WithCancel(ctx)
	c := &cycle{cancel: cancel, done: make(chan cycleResult, 1)}
	go func() {
		results, err := o.searcher.Search(cctx, payload)
		c.done <- cycleResult{payload: payload, results: results, err: err}
	}()
	return c
}

// complete reports a finished search cycle and injects the follow-up
// instruction into the conversation.
func (o *Orchestrator) complete(ctx context.Context, ch realtime.Channel, res cycleResult) {
	if res.err == nil {
		data, err := json.Marshal(res.results)
		if err != nil {
			o.logger.Printf("[bridge] %s: failed to encode results: %v", o.id, err)
			res.err = err
		} else {
			o.emit(Entry{Kind: KindResults, Results: res.results})
			o.inject(ctx, ch, prompts.SummariseResults(string(data)))
			return
		}
	}

	if errors.Is(res.err, credential.ErrUnauthenticated) {
		o.logger.Printf("[bridge] %s: search skipped, backend not connected", o.id)
		o.emit(Entry{Kind: KindWarning, Text: prompts.NotConnectedWarning()})
		o.inject(ctx, ch, prompts.NotConnected())
		return
	}

	o.logger.Printf("[bridge] %s: search failed: %v", o.id, res.err)
	o.emit(Entry{Kind: KindWarning, Text: prompts.SearchFailedWarning(res.err.Error())})
	o.inject(ctx, ch, prompts.SearchFailed())
}

func (o *Orchestrator) inject(ctx context.Context, ch realtime.Channel, instructions string) {
	if err := ch.Send(ctx, realtime.NewResponseCreate(instructions)); err != nil && !errors.Is(err, realtime.ErrClosed) {
		o.logger.Printf("[bridge] %s: failed to send instruction: %v", o.id, err)
	}
}

func (o *Orchestrator) emit(e Entry) {
	e.At = o.now()
	o.sink.Emit(e)
}
