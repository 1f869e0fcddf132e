package convert

import (
	"context"
	"runtime"
	"sync"
	"time"

	"github.com/FocuswithJustin/versecorpus/core/corpus"
	"github.com/FocuswithJustin/versecorpus/core/parser"
	"github.com/FocuswithJustin/versecorpus/internal/formats"
	"github.com/FocuswithJustin/versecorpus/internal/logging"
)

// Job is one file conversion.
type Job struct {
	Input  string
	Output string
}

// Outcome reports how a job went.
type Outcome struct {
	Job      Job
	From     string
	To       string
	Stats    parser.Stats
	Digest   corpus.Digest
	Problems int // diagnostics raised while loading
	Duration time.Duration
	Err      error
}

// Batch converts many files with a pool of workers.
type Batch struct {
	Request Request
	// To forces the output format. Empty picks it from each output path.
	To   string
	Emit formats.EmitOptions
	// Workers bounds concurrency. Zero means one per CPU.
	Workers int
	// Sink, when set, returns an extra diagnostic sink for a job. It is
	// called from worker goroutines.
	Sink func(Job) parser.Sink
}

type indexedJob struct {
	i   int
	job Job
}

type indexedOutcome struct {
	i       int
	outcome Outcome
}

// Run converts jobs and returns their outcomes in input order. Jobs not
// started before ctx is done report the context error.
func (b Batch) Run(ctx context.Context, jobs []Job) []Outcome {
	workers := b.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	workers = min(workers, max(len(jobs), 1))

	jobCh := make(chan indexedJob)
	resultCh := make(chan indexedOutcome, len(jobs))

	go func() {
		defer close(jobCh)
		for i, job := range jobs {
			select {
			case jobCh <- indexedJob{i, job}:
			case <-ctx.Done():
				return
			}
		}
	}()

	var wg sync.WaitGroup
	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ij := range jobCh {
				resultCh <- indexedOutcome{ij.i, b.convert(ctx, ij.job)}
			}
		}()
	}
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	outcomes := make([]Outcome, len(jobs))
	done := make([]bool, len(jobs))
	for r := range resultCh {
		outcomes[r.i] = r.outcome
		done[r.i] = true
	}
	for i := range outcomes {
		if !done[i] {
			outcomes[i] = Outcome{Job: jobs[i], Err: context.Cause(ctx)}
		}
	}
	return outcomes
}

// convert runs a single job.
func (b Batch) convert(ctx context.Context, job Job) Outcome {
	start := time.Now()
	out := Outcome{Job: job}
	if err := ctx.Err(); err != nil {
		out.Err = err
		return out
	}

	var collector parser.Collector
	sink := collector.Sink()
	if b.Sink != nil {
		if extra := b.Sink(job); extra != nil {
			sink = parser.Tee(sink, extra)
		}
	}

	res, err := LoadFile(job.Input, b.Request, sink)
	if err != nil {
		out.Err = err
		return out
	}
	out.From, out.Stats, out.Problems = res.Format, res.Stats, len(collector.Diagnostics)

	if out.Digest, err = corpus.Hash(res.Corpus); err != nil {
		out.Err = err
		return out
	}
	if out.To, err = WriteFile(job.Output, res.Corpus, b.To, b.Emit); err != nil {
		out.Err = err
		return out
	}
	out.Duration = time.Since(start)

	logging.ConversionComplete(ctx, job.Input, job.Output,
		out.Stats.Books, out.Stats.Verses, out.Stats.Dropped,
		"from", out.From,
		"to", out.To,
		"problems", out.Problems,
		"duration", out.Duration,
	)
	return out
}

// Failed counts the outcomes that carry an error.
func Failed(outcomes []Outcome) int {
	n := 0
	for _, o := range outcomes {
		if o.Err != nil {
			n++
		}
	}
	return n
}
