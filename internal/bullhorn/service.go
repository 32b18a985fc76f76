package bullhorn

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/wave/molly/internal/command"
	"github.com/wave/molly/internal/credential"
	"github.com/wave/molly/internal/db"
)

// UnavailableError reports that the backend could not serve a search, either
// because the session could not be renewed or because the search call failed.
type UnavailableError struct {
	Op    string
	Cause error
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("search backend unavailable (%s): %v", e.Op, e.Cause)
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// Results is the outcome of one search cycle.
type Results struct {
	Query   string      `json:"query"`
	Results []Candidate `json:"results"`
}

// Searcher runs candidate searches.
type Searcher interface {
	Search(ctx context.Context, session credential.Session, query string, count int) ([]Candidate, error)
}

// Recorder stores an audit entry per search attempt.
type Recorder interface {
	RecordSearch(ctx context.Context, entry *db.SearchEntry) error
}

type sourceKey struct{}

// WithSource tags searches run with ctx, e.g. with a conversation ID.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

func sourceFrom(ctx context.Context) string {
	if s, ok := ctx.Value(sourceKey{}).(string); ok && s != "" {
		return s
	}
	return db.SourceManual
}

// Service runs a full search cycle: freshness check, query construction and
// the backend call.
type Service struct {
	gate     *credential.Gate
	searcher Searcher
	recorder Recorder
	logger   *log.Logger
}

// NewService creates a Service. recorder may be nil.
func NewService(gate *credential.Gate, searcher Searcher, recorder Recorder, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.Default()
	}
	return &Service{gate: gate, searcher: searcher, recorder: recorder, logger: logger}
}

// Search ensures the session is fresh and runs p against the backend.
// It returns credential.ErrUnauthenticated when no session is stored and an
// *UnavailableError when renewal or the search itself fails.
func (s *Service) Search(ctx context.Context, p command.Payload) (*Results, error) {
	start := time.Now()
	query := BuildQuery(p)
	count := command.ClampTopN(p.TopN)

	session, err := s.gate.Ensure(ctx)
	if err != nil {
		switch {
		case errors.Is(err, credential.ErrUnauthenticated):
		case ctx.Err() != nil:
			err = ctx.Err()
		default:
			err = &UnavailableError{Op: "refresh", Cause: err}
		}
		s.record(ctx, p, query, count, 0, start, err)
		return nil, err
	}

	candidates, err := s.searcher.Search(ctx, session, query, count)
	if err != nil {
		if ctx.Err() != nil {
			err = ctx.Err()
		} else {
			err = &UnavailableError{Op: "search", Cause: err}
		}
		s.record(ctx, p, query, count, 0, start, err)
		return nil, err
	}

	s.logger.Printf("[bullhorn] search %q returned %d candidates", query, len(candidates))
	s.record(ctx, p, query, count, len(candidates), start, nil)
	return &Results{Query: query, Results: candidates}, nil
}

func (s *Service) record(ctx context.Context, p command.Payload, query string, count, resultCount int, start time.Time, searchErr error) {
	if s.recorder == nil {
		return
	}

	entry := &db.SearchEntry{
		Source:         sourceFrom(ctx),
		Query:          query,
		RequestedCount: count,
		ResultCount:    resultCount,
		Outcome:        outcome(searchErr),
		DurationMs:     int(time.Since(start).Milliseconds()),
	}
	if payload, err := json.Marshal(p); err == nil {
		entry.Payload = payload
	}
	if searchErr != nil {
		msg := searchErr.Error()
		entry.ErrorMessage = &msg
	}

	recordCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.recorder.RecordSearch(recordCtx, entry); err != nil {
		s.logger.Printf("[bullhorn] failed to record search: %v", err)
	}
}

func outcome(err error) string {
	var unavailable *UnavailableError
	switch {
	case err == nil:
		return db.OutcomeOK
	case errors.As(err, &unavailable):
		return db.OutcomeUnavailable
	case errors.Is(err, credential.ErrUnauthenticated):
		return db.OutcomeUnauthenticated
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return db.OutcomeCanceled
	default:
		return db.OutcomeUnavailable
	}
}
