// Package orchestrator answers questions by running one of two fixed
// pipelines over the index, the web searcher and the generator.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"pdfqa/internal/domain"
	"pdfqa/internal/session"
)

// Retriever is the read side of the index. Retrieve treats a missing index
// as empty context; RetrieveIndexed reports it as domain.ErrNoIndex.
type Retriever interface {
	Retrieve(ctx context.Context, query string) ([]domain.Segment, error)
	RetrieveIndexed(ctx context.Context, query string) ([]domain.Segment, error)
}

// Recorder observes finished runs. Metrics implement it.
type Recorder interface {
	ObserveQuery(mode domain.Mode, err error, took time.Duration)
}

// Result is the outcome of one run.
type Result struct {
	Answer   string
	Segments []domain.Segment
	Web      []domain.WebResult
}

// Orchestrator is stateless between runs.
type Orchestrator struct {
	retriever Retriever
	web       domain.WebSearcher
	generator domain.Generator
	timeout   time.Duration
	recorder  Recorder
	log       zerolog.Logger
}

type Option func(*Orchestrator)

// WithTimeout bounds a whole run, including the join in PDF_AND_WEB mode.
func WithTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.timeout = d }
}

// WithWebSearcher enables PDF_AND_WEB mode.
func WithWebSearcher(w domain.WebSearcher) Option {
	return func(o *Orchestrator) { o.web = w }
}

func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

func New(retriever Retriever, generator domain.Generator, log zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{retriever: retriever, generator: generator, log: log}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Answer runs the pipeline for mode and returns the answer text.
func (o *Orchestrator) Answer(ctx context.Context, mode domain.Mode, question string) (string, error) {
	res, err := o.Run(ctx, mode, question)
	if err != nil {
		return "", err
	}
	return res.Answer, nil
}

// Run is Answer that also reports the context the answer was built from.
func (o *Orchestrator) Run(ctx context.Context, mode domain.Mode, question string) (res Result, err error) {
	start := time.Now()
	defer func() {
		if o.recorder != nil {
			o.recorder.ObserveQuery(mode, err, time.Since(start))
		}
		ev := o.log.Info()
		if err != nil {
			ev = o.log.Error().Err(err)
		}
		ev.Str("mode", mode.String()).Int("segments", len(res.Segments)).Int("web_results", len(res.Web)).
			Dur("took", time.Since(start)).Msg("answer")
	}()

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	switch mode {
	case domain.ModePDFOnly:
		return o.sequential(ctx, question)
	case domain.ModePDFAndWeb:
		return o.parallel(ctx, question)
	default:
		return Result{}, domain.E(domain.ErrConfiguration, "answer", fmt.Errorf("unknown mode %v", mode))
	}
}

// sequential: precondition, retrieve, prompt, generate.
func (o *Orchestrator) sequential(ctx context.Context, question string) (Result, error) {
	segments, err := o.retriever.RetrieveIndexed(ctx, question)
	if err != nil {
		return Result{}, err
	}
	answer, err := o.generate(ctx, pdfOnlyPrompt(formatSegments(segments), question))
	if err != nil {
		return Result{}, err
	}
	return Result{Answer: answer, Segments: segments}, nil
}

// parallel fans out retrieval and web search and joins both before prompting.
// No index is not an error here; the PDF section is simply empty.
func (o *Orchestrator) parallel(ctx context.Context, question string) (Result, error) {
	if o.web == nil {
		return Result{}, domain.E(domain.ErrConfiguration, "answer", errors.New("web search is not configured"))
	}
	segments, web, err := o.gather(ctx, question)
	if err != nil {
		return Result{}, err
	}
	answer, err := o.generate(ctx, pdfAndWebPrompt(formatSegments(segments), formatWeb(web), question))
	if err != nil {
		return Result{}, err
	}
	return Result{Answer: answer, Segments: segments, Web: web}, nil
}

// gather runs both branches on the raw question. Results land in named
// slots so completion order does not matter. A failing branch does not
// cancel its sibling; only the run deadline bounds them.
func (o *Orchestrator) gather(ctx context.Context, question string) ([]domain.Segment, []domain.WebResult, error) {
	var (
		segments []domain.Segment
		web      []domain.WebResult
	)
	var g errgroup.Group
	g.Go(func() (err error) {
		defer recoverTo(&err, "retrieve")
		segments, err = o.retriever.Retrieve(ctx, question)
		return err
	})
	g.Go(func() (err error) {
		defer recoverTo(&err, "web search")
		web, err = o.web.Search(ctx, question)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return segments, web, nil
}

func (o *Orchestrator) generate(ctx context.Context, prompt string) (string, error) {
	answer, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		var de *domain.Error
		if errors.As(err, &de) {
			return "", err
		}
		return "", domain.E(domain.ErrGeneration, "generate", err)
	}
	return answer, nil
}

// Ask runs one question for sess. The user turn is always recorded; the
// assistant turn only when the run succeeds. Panics in any step come back
// as errors.
func (o *Orchestrator) Ask(ctx context.Context, sess *session.Session, question string) (res Result, err error) {
	sess.Append(domain.RoleUser, question)
	defer recoverTo(&err, "ask")

	res, err = o.Run(ctx, sess.Mode(), question)
	if err != nil {
		return Result{}, err
	}
	sess.Append(domain.RoleAssistant, res.Answer)
	return res, nil
}

func recoverTo(err *error, op string) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s: panic: %v", op, r)
	}
}
