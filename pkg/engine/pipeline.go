package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/graphfuse/graphfuse/pkg/config"
	"github.com/graphfuse/graphfuse/pkg/domain"
	"github.com/graphfuse/graphfuse/pkg/enrich"
	"github.com/graphfuse/graphfuse/pkg/jobs"
	"github.com/graphfuse/graphfuse/pkg/log"
	"github.com/graphfuse/graphfuse/pkg/store"
)

// Pipeline drives one ingestion run: fetch, convert, chunk, enrich,
// extract and index, file by file, reporting progress into the job
// registry. A file that fails conversion is recorded and skipped; a
// backend write error, model failure or extraction timeout fails the
// whole job. Cancellation stops the run between poll points.
type Pipeline struct {
	source    domain.Source
	converter domain.Converter
	chunker   domain.Chunker
	enricher  *enrich.Enricher
	extractor domain.PathExtractor
	stores    *store.Bundle
	registry  *jobs.Registry
	timeouts  config.TimeoutConfig
	chunking  config.ChunkingConfig
	complex   func(name string) bool
}

func NewPipeline(
	source domain.Source,
	converter domain.Converter,
	chunker domain.Chunker,
	enricher *enrich.Enricher,
	extractor domain.PathExtractor,
	stores *store.Bundle,
	registry *jobs.Registry,
	timeouts config.TimeoutConfig,
	chunking config.ChunkingConfig,
	complexFn func(name string) bool,
) *Pipeline {
	if complexFn == nil {
		complexFn = func(string) bool { return false }
	}
	if timeouts.ConvertTimeout <= 0 {
		timeouts.ConvertTimeout = 5 * time.Minute
	}
	if timeouts.ConvertCheckInterval <= 0 {
		timeouts.ConvertCheckInterval = 500 * time.Millisecond
	}
	if timeouts.ExtractTimeout <= 0 {
		timeouts.ExtractTimeout = time.Hour
	}
	if timeouts.ExtractCheckInterval <= 0 {
		timeouts.ExtractCheckInterval = 2 * time.Second
	}
	return &Pipeline{
		source:    source,
		converter: converter,
		chunker:   chunker,
		enricher:  enricher,
		extractor: extractor,
		stores:    stores,
		registry:  registry,
		timeouts:  timeouts,
		chunking:  chunking,
		complex:   complexFn,
	}
}

// Run processes refs under the given job id. It returns ErrCancelled
// when the user cancels mid-run. Conversion failures skip the file and
// continue; store and model errors abort the remaining files.
func (p *Pipeline) Run(ctx context.Context, jobID string, refs []domain.DocumentRef) error {
	start := time.Now()

	var totalBytes int64
	hasComplex := false
	for _, ref := range refs {
		totalBytes += ref.Size
		if p.complex(ref.Name) {
			hasComplex = true
		}
	}
	_ = p.registry.Update(jobID, jobs.PatchETA(
		jobs.HumanDuration(jobs.InitialEstimate(totalBytes, len(refs), hasComplex))))
	_ = p.registry.Update(jobID, jobs.PatchStatus(jobs.StatusProcessing,
		fmt.Sprintf("Processing %d files", len(refs))))

	completed := 0
	for i, ref := range refs {
		if p.registry.IsCancelled(jobID) {
			p.markRemaining(jobID, i, refs, "skipped after cancellation")
			return domain.ErrCancelled
		}

		switch err := p.processFile(ctx, jobID, i, ref); {
		case err == nil:
			completed++
			p.markFileDone(jobID, i)
		case errors.Is(err, domain.ErrCancelled):
			p.markRemaining(jobID, i+1, refs, "skipped after cancellation")
			return domain.ErrCancelled
		case fatalIngestError(err):
			p.markFileError(jobID, i, err)
			p.markRemaining(jobID, i+1, refs, "skipped after failure")
			_ = p.registry.Update(jobID, jobs.PatchStatus(jobs.StatusFailed, failureMessage(err)))
			return err
		default:
			log.Warnf("file %s failed: %v", ref.Name, err)
			p.markFileError(jobID, i, err)
		}

		done := i + 1
		_ = p.registry.Update(jobID, jobs.PatchCompleted(done))
		// Terminal status carries the final progress; the loop never
		// reports 100 so a failed job is not seen fully complete first.
		progress := done * 100 / len(refs)
		if progress > 99 {
			progress = 99
		}
		_ = p.registry.Update(jobID, jobs.PatchProgress(progress,
			fmt.Sprintf("Processed %d of %d files", done, len(refs))))
		if done < len(refs) {
			_ = p.registry.Update(jobID, jobs.PatchETA(
				jobs.HumanDuration(jobs.RefineEstimate(time.Since(start), done, len(refs)))))
		}
	}

	if completed == 0 && len(refs) > 0 {
		_ = p.registry.Update(jobID, jobs.PatchStatus(jobs.StatusFailed, "All files failed to process"))
		return fmt.Errorf("%w: no file could be processed", domain.ErrInvalidInput)
	}

	_ = p.registry.Update(jobID, jobs.PatchStatus(jobs.StatusCompleted,
		fmt.Sprintf("Processed %d of %d files", completed, len(refs))))
	return nil
}

// fatalIngestError reports errors that abort the whole job. Backend
// writes, model calls and phase timeouts affect every remaining file;
// a malformed document only affects its own.
func fatalIngestError(err error) bool {
	return errors.Is(err, domain.ErrBackendIO) ||
		errors.Is(err, domain.ErrModelIO) ||
		errors.Is(err, domain.ErrTimeout)
}

func failureMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrTimeout):
		return "Processing timeout - the model took too long; try increasing the timeout or using smaller documents"
	case errors.Is(err, domain.ErrModelIO):
		return "LLM processing was interrupted; this can happen with complex documents"
	}
	return err.Error()
}

func (p *Pipeline) processFile(ctx context.Context, jobID string, index int, ref domain.DocumentRef) error {
	p.setPhase(jobID, index, ref, jobs.PhaseConverting, 5)

	if !p.converter.Supported(ref.Name) {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedFormat, ref.Name)
	}

	data, err := p.source.Fetch(ctx, ref)
	if err != nil {
		return err
	}

	doc, err := p.convertWithPolling(ctx, jobID, ref, data)
	if err != nil {
		return err
	}

	p.setPhase(jobID, index, ref, jobs.PhaseChunking, 35)

	texts, err := p.chunker.Split(doc.Content, p.chunking.ChunkSize, p.chunking.ChunkOverlap)
	if err != nil {
		return err
	}
	chunks, err := p.enricher.Enrich(ctx, doc, texts)
	if err != nil {
		return err
	}

	var triples []domain.Triple
	if p.extractor != nil && p.stores.Graph != nil {
		p.setPhase(jobID, index, ref, jobs.PhaseExtracting, 55)
		triples, err = p.extractWithPolling(ctx, jobID, chunks)
		if err != nil {
			return err
		}
	}

	p.setPhase(jobID, index, ref, jobs.PhaseIndexing, 85)
	return p.index(ctx, chunks, triples)
}

// convertWithPolling runs conversion off-goroutine so cancellation and
// the timeout are observed even when the converter blocks.
func (p *Pipeline) convertWithPolling(ctx context.Context, jobID string, ref domain.DocumentRef, data []byte) (domain.Document, error) {
	cctx, cancel := context.WithCancel(ctx)
	defer cancel()

	type convResult struct {
		doc domain.Document
		err error
	}
	ch := make(chan convResult, 1)
	go func() {
		doc, err := p.converter.Convert(cctx, ref, data)
		ch <- convResult{doc, err}
	}()

	timeout := time.NewTimer(p.timeouts.ConvertTimeout)
	defer timeout.Stop()
	poll := time.NewTicker(p.timeouts.ConvertCheckInterval)
	defer poll.Stop()

	for {
		select {
		case res := <-ch:
			return res.doc, res.err
		case <-poll.C:
			if p.registry.IsCancelled(jobID) {
				cancel()
				<-ch
				return domain.Document{}, domain.ErrCancelled
			}
		case <-timeout.C:
			cancel()
			<-ch
			return domain.Document{}, fmt.Errorf("%w: converting %s took longer than %s",
				domain.ErrTimeout, ref.Name, p.timeouts.ConvertTimeout)
		case <-ctx.Done():
			<-ch
			return domain.Document{}, ctx.Err()
		}
	}
}

// extractWithPolling walks the chunks through the triple extractor,
// checking for cancellation at the configured interval and bounding the
// whole file by the extraction timeout.
func (p *Pipeline) extractWithPolling(ctx context.Context, jobID string, chunks []domain.Chunk) ([]domain.Triple, error) {
	deadline := time.Now().Add(p.timeouts.ExtractTimeout)
	lastCheck := time.Now()

	var triples []domain.Triple
	for _, chunk := range chunks {
		if time.Since(lastCheck) >= p.timeouts.ExtractCheckInterval {
			if p.registry.IsCancelled(jobID) {
				return nil, domain.ErrCancelled
			}
			lastCheck = time.Now()
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: graph extraction exceeded %s",
				domain.ErrTimeout, p.timeouts.ExtractTimeout)
		}

		extracted, err := p.extractor.Extract(ctx, chunk)
		if err != nil {
			return nil, err
		}
		triples = append(triples, extracted...)
	}
	return triples, nil
}

// index writes the enabled modalities in parallel. When vector and
// full-text share one backend index the vector write carries the whole
// document and the text write is skipped.
func (p *Pipeline) index(ctx context.Context, chunks []domain.Chunk, triples []domain.Triple) error {
	g, gctx := errgroup.WithContext(ctx)

	if p.stores.Vector != nil {
		g.Go(func() error { return p.stores.Vector.Store(gctx, chunks) })
	}
	if p.stores.Text != nil && !p.stores.SharedText {
		g.Go(func() error { return p.stores.Text.Index(gctx, chunks) })
	}
	if p.stores.Graph != nil && len(triples) > 0 {
		g.Go(func() error { return p.stores.Graph.UpsertTriples(gctx, triples, chunks) })
	}
	return g.Wait()
}

func (p *Pipeline) setPhase(jobID string, index int, ref domain.DocumentRef, phase jobs.Phase, progress int) {
	_ = p.registry.Update(jobID, jobs.PatchPhase(ref.Name, phase))
	_ = p.registry.UpdateFile(jobID, index, func(fp *jobs.FileProgress) {
		if fp.StartedAt == nil {
			now := time.Now()
			fp.StartedAt = &now
		}
		fp.FileName = ref.Name
		fp.FilePath = ref.Path
		fp.Phase = phase
		if progress > fp.Progress {
			fp.Progress = progress
		}
	})
}

func (p *Pipeline) markFileDone(jobID string, index int) {
	_ = p.registry.UpdateFile(jobID, index, func(fp *jobs.FileProgress) {
		now := time.Now()
		fp.Phase = jobs.PhaseFileComplete
		fp.Progress = 100
		fp.CompletedAt = &now
	})
}

func (p *Pipeline) markFileError(jobID string, index int, err error) {
	_ = p.registry.UpdateFile(jobID, index, func(fp *jobs.FileProgress) {
		now := time.Now()
		fp.Phase = jobs.PhaseFileError
		fp.Error = err.Error()
		fp.CompletedAt = &now
	})
}

// markRemaining records files that never started before the job ended.
func (p *Pipeline) markRemaining(jobID string, from int, refs []domain.DocumentRef, msg string) {
	for i := from; i < len(refs); i++ {
		_ = p.registry.UpdateFile(jobID, i, func(fp *jobs.FileProgress) {
			if fp.Phase == jobs.PhaseWaiting {
				fp.FileName = refs[i].Name
				fp.Message = msg
			}
		})
	}
}
