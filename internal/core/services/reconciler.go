package services

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/ca-shen98/knoba/internal/core/domain"
	"github.com/ca-shen98/knoba/internal/core/ports/driven"
	"github.com/ca-shen98/knoba/internal/core/ports/driving"
	"github.com/ca-shen98/knoba/internal/logger"
)

// Ensure Reconciler implements the interface.
var _ driving.Reconciler = (*Reconciler)(nil)

// maxFanOut bounds concurrent collaborator calls within one phase.
const maxFanOut = 16

// Reconciler deduplicates location content into content blocks and keeps
// every location sharing a block in sync with its canonical content.
//
// Batches run their phases strictly in order. Within a phase, calls for
// independent locations or blocks run concurrently. There is no locking
// across batches: two batches touching the same block can lose an update.
type Reconciler struct {
	index      driven.MatchIndex
	tracker    driven.LocationTracker
	embedder   driven.EmbeddingProvider
	router     *ContentRouter
	thresholds domain.MatchingSettings
	newID      func() (string, error)
}

// NewReconciler creates a reconciler over the given collaborators.
func NewReconciler(
	index driven.MatchIndex,
	tracker driven.LocationTracker,
	embedder driven.EmbeddingProvider,
	router *ContentRouter,
	thresholds domain.MatchingSettings,
) (*Reconciler, error) {
	if index == nil || tracker == nil || embedder == nil || router == nil {
		return nil, fmt.Errorf("%w: reconciler requires index, tracker, embedder and router", domain.ErrInvalidInput)
	}
	if err := thresholds.Validate(); err != nil {
		return nil, err
	}
	return &Reconciler{
		index:      index,
		tracker:    tracker,
		embedder:   embedder,
		router:     router,
		thresholds: thresholds,
		newID:      newBlockID,
	}, nil
}

func newBlockID() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// blockChange tracks one block touched by a batch.
type blockChange struct {
	// block is the working copy; its Locations become the persisted set.
	block domain.ContentBlock

	// stored is the reference set as persisted before the index write.
	// For blocks created in this batch it is the set written at creation.
	stored domain.LocationSet

	created bool
	staged  bool

	// priorContent is the content replaced by a staged update.
	priorContent string
}

// segment is one piece of fetched content and its position.
type segment struct {
	loc   domain.Location
	index int
	text  string
}

// Process validates a batch, then runs its upserts followed by its removes.
func (r *Reconciler) Process(ctx context.Context, batch domain.Batch) (*domain.BatchResult, error) {
	if err := batch.Validate(); err != nil {
		return nil, err
	}

	result := &domain.BatchResult{}
	if len(batch.Upserts) > 0 {
		upserted, err := r.ProcessUpsertBatch(ctx, batch.Upserts)
		if err != nil {
			return nil, fmt.Errorf("upsert batch: %w", err)
		}
		result.Merge(upserted)
	}
	if len(batch.Removes) > 0 {
		removed, err := r.ProcessRemoveBatch(ctx, batch.Removes)
		if err != nil {
			return nil, fmt.Errorf("remove batch: %w", err)
		}
		result.Merge(removed)
	}
	return result, nil
}

// ProcessUpsertBatch reconciles locations whose content changed.
//
//nolint:gocyclo // Phases must run in a fixed sequence
func (r *Reconciler) ProcessUpsertBatch(ctx context.Context, locs []domain.Location) (*domain.BatchResult, error) {
	locs, err := normaliseLocations(locs)
	if err != nil {
		return nil, err
	}
	result := &domain.BatchResult{}
	if len(locs) == 0 {
		return result, nil
	}

	logger.Section("Upsert batch")
	logger.Debug("Locations: %v", locs)

	// 1. Prior mappings.
	prior, err := r.readMappings(ctx, locs)
	if err != nil {
		return nil, fmt.Errorf("read mappings: %w", err)
	}
	oldReferenced := referencedBy(prior)

	// 2. Fresh content and embeddings.
	segments, err := r.fetchSegments(ctx, locs)
	if err != nil {
		return nil, fmt.Errorf("fetch content: %w", err)
	}
	embeddings, err := r.embed(ctx, segments)
	if err != nil {
		return nil, err
	}

	// 3. Match each segment, in order.
	changes := make(map[string]*blockChange)
	newLists := make(map[domain.Location][]string, len(locs))
	for _, loc := range locs {
		newLists[loc] = []string{}
	}
	for i, seg := range segments {
		id, err := r.matchSegment(ctx, seg, embeddings[i], changes, result)
		if err != nil {
			return nil, err
		}
		newLists[seg.loc] = append(newLists[seg.loc], id)
	}

	// 4. Persist mappings before any delta is applied to the index.
	written, err := r.writeMappings(ctx, locs, prior, newLists)
	if err != nil {
		return nil, fmt.Errorf("write mappings: %w", err)
	}
	result.MappingsWritten = written

	// 5. Blocks this batch referenced but did not revisit.
	if err := r.loadUnvisited(ctx, oldReferenced, changes); err != nil {
		return nil, err
	}

	// 6. Reference deltas.
	for id, ch := range changes {
		for _, loc := range locs {
			if slices.Contains(newLists[loc], id) {
				ch.block.Locations.Add(loc)
			}
		}
		for loc := range oldReferenced[id] {
			if slices.Contains(newLists[loc], id) {
				continue
			}
			if !ch.block.Locations.Has(loc) {
				return nil, domain.NewInvariantError("compute deltas",
					"location %s maps to block %s but the block does not reference it", loc, id)
			}
			ch.block.Locations.Remove(loc)
		}
	}

	// 7. Classify.
	orphans, upserts, err := classify(changes, result)
	if err != nil {
		return nil, err
	}

	// 8. Delete before upsert.
	if err := r.applyIndex(ctx, orphans, upserts); err != nil {
		return nil, err
	}

	// 9. Propagate content changes.
	batchLocs := domain.NewLocationSet(locs...)
	result.Propagations = r.propagate(ctx, changes, batchLocs)

	logSummary("Upsert", result)
	return result, nil
}

// ProcessRemoveBatch detaches deleted locations from their blocks.
func (r *Reconciler) ProcessRemoveBatch(ctx context.Context, locs []domain.Location) (*domain.BatchResult, error) {
	locs, err := normaliseLocations(locs)
	if err != nil {
		return nil, err
	}
	result := &domain.BatchResult{}
	if len(locs) == 0 {
		return result, nil
	}

	logger.Section("Remove batch")
	logger.Debug("Locations: %v", locs)

	prior, err := r.readMappings(ctx, locs)
	if err != nil {
		return nil, fmt.Errorf("read mappings: %w", err)
	}
	oldReferenced := referencedBy(prior)

	tracked := make([]domain.Location, 0, len(prior))
	for _, loc := range locs {
		if _, ok := prior[loc]; ok {
			tracked = append(tracked, loc)
		}
	}
	if err := fanOut(ctx, tracked, func(ctx context.Context, loc domain.Location) error {
		return r.tracker.Delete(ctx, loc)
	}); err != nil {
		return nil, fmt.Errorf("delete mappings: %w", err)
	}
	result.MappingsWritten = len(tracked)

	changes := make(map[string]*blockChange, len(oldReferenced))
	if err := r.loadUnvisited(ctx, oldReferenced, changes); err != nil {
		return nil, err
	}
	for id, ch := range changes {
		for loc := range oldReferenced[id] {
			if !ch.block.Locations.Has(loc) {
				return nil, domain.NewInvariantError("compute deltas",
					"location %s maps to block %s but the block does not reference it", loc, id)
			}
			ch.block.Locations.Remove(loc)
		}
	}

	orphans, upserts, err := classify(changes, result)
	if err != nil {
		return nil, err
	}
	if err := r.applyIndex(ctx, orphans, upserts); err != nil {
		return nil, err
	}

	logSummary("Remove", result)
	return result, nil
}

// Mapping returns the tracked block ids for a location.
func (r *Reconciler) Mapping(ctx context.Context, loc domain.Location) ([]string, error) {
	if _, err := domain.ParseLocation(string(loc)); err != nil {
		return nil, err
	}
	return r.tracker.Get(ctx, loc)
}

// Blocks returns the stored blocks among ids.
func (r *Reconciler) Blocks(ctx context.Context, ids []string) (map[string]domain.ContentBlock, error) {
	return r.index.Fetch(ctx, ids)
}

// matchSegment resolves one segment to a block id, recording the decision in changes.
func (r *Reconciler) matchSegment(
	ctx context.Context,
	seg segment,
	embedding []float32,
	changes map[string]*blockChange,
	result *domain.BatchResult,
) (string, error) {
	candidates, err := r.index.Query(ctx, embedding, 1)
	if err != nil {
		return "", fmt.Errorf("query match index: %w", err)
	}

	if len(candidates) > 0 {
		top := candidates[0]
		ch, visited := changes[top.BlockID]

		switch {
		case top.Score >= r.thresholds.IdentityThreshold:
			if !visited {
				ch = visit(top)
				changes[top.BlockID] = ch
			}
			logger.Debug("%s[%d]: identity match %s (%.3f)", seg.loc, seg.index, top.BlockID, top.Score)
			return top.BlockID, nil

		case top.Score >= r.thresholds.SemanticThreshold && !(visited && ch.created):
			if !visited {
				ch = visit(top)
				changes[top.BlockID] = ch
			}
			if !ch.staged {
				ch.staged = true
				ch.priorContent = ch.block.Content
				ch.block.Content = seg.text
				ch.block.Embedding = embedding
				logger.Debug("%s[%d]: semantic match %s (%.3f), content staged",
					seg.loc, seg.index, top.BlockID, top.Score)
			} else {
				logger.Debug("%s[%d]: semantic match %s (%.3f), replacement already staged",
					seg.loc, seg.index, top.BlockID, top.Score)
			}
			return top.BlockID, nil
		}
	}

	id, err := r.newID()
	if err != nil {
		return "", fmt.Errorf("generate block id: %w", err)
	}
	block := domain.ContentBlock{
		ID:        id,
		Content:   seg.text,
		Embedding: embedding,
		Locations: domain.NewLocationSet(seg.loc),
	}
	// Written now so later segments in this batch can match it.
	if err := r.index.Upsert(ctx, []domain.ContentBlock{block}); err != nil {
		return "", fmt.Errorf("create block: %w", err)
	}
	changes[id] = &blockChange{
		block:   block.Clone(),
		stored:  block.Locations.Clone(),
		created: true,
	}
	result.Created = append(result.Created, id)
	logger.Debug("%s[%d]: no match, created %s", seg.loc, seg.index, id)
	return id, nil
}

func visit(c domain.MatchCandidate) *blockChange {
	block := c.Block.Clone()
	block.ID = c.BlockID
	if block.Locations == nil {
		block.Locations = domain.NewLocationSet()
	}
	return &blockChange{
		block:  block,
		stored: block.Locations.Clone(),
	}
}

// readMappings returns the prior block ids of every tracked location.
// Untracked locations are absent from the result.
func (r *Reconciler) readMappings(ctx context.Context, locs []domain.Location) (map[domain.Location][]string, error) {
	var mu sync.Mutex
	prior := make(map[domain.Location][]string, len(locs))
	err := fanOut(ctx, locs, func(ctx context.Context, loc domain.Location) error {
		ids, err := r.tracker.Get(ctx, loc)
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%s: %w", loc, err)
		}
		mu.Lock()
		prior[loc] = ids
		mu.Unlock()
		return nil
	})
	return prior, err
}

// fetchSegments returns the non-blank trimmed segments of every location,
// flattened in batch order.
func (r *Reconciler) fetchSegments(ctx context.Context, locs []domain.Location) ([]segment, error) {
	fetched := make([][]string, len(locs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFanOut)
	for i, loc := range locs {
		g.Go(func() error {
			texts, err := r.router.Fetch(gctx, loc)
			if err != nil {
				return fmt.Errorf("%s: %w", loc, err)
			}
			fetched[i] = texts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var segments []segment
	for i, loc := range locs {
		n := 0
		for _, text := range fetched[i] {
			text = strings.TrimSpace(text)
			if text == "" {
				continue
			}
			segments = append(segments, segment{loc: loc, index: n, text: text})
			n++
		}
		logger.Debug("%s: %d segments", loc, n)
	}
	return segments, nil
}

// embed computes one embedding per segment in a single provider call.
func (r *Reconciler) embed(ctx context.Context, segments []segment) ([][]float32, error) {
	if len(segments) == 0 {
		return nil, nil
	}
	texts := make([]string, len(segments))
	for i, seg := range segments {
		texts[i] = seg.text
	}
	embeddings, err := r.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed segments: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, domain.NewInvariantError("embed segments",
			"provider returned %d embeddings for %d texts", len(embeddings), len(texts))
	}
	return embeddings, nil
}

// writeMappings persists changed location lists. Locations that no longer
// have any segment lose their mapping.
func (r *Reconciler) writeMappings(
	ctx context.Context,
	locs []domain.Location,
	prior map[domain.Location][]string,
	newLists map[domain.Location][]string,
) (int, error) {
	var changed []domain.Location
	for _, loc := range locs {
		old, tracked := prior[loc]
		next := newLists[loc]
		if len(next) == 0 {
			if tracked {
				changed = append(changed, loc)
			}
			continue
		}
		if !tracked || !slices.Equal(old, next) {
			changed = append(changed, loc)
		}
	}

	err := fanOut(ctx, changed, func(ctx context.Context, loc domain.Location) error {
		if len(newLists[loc]) == 0 {
			return r.tracker.Delete(ctx, loc)
		}
		return r.tracker.Set(ctx, loc, newLists[loc])
	})
	if err != nil {
		return 0, err
	}
	return len(changed), nil
}

// loadUnvisited fetches previously referenced blocks that have no entry in changes.
func (r *Reconciler) loadUnvisited(
	ctx context.Context,
	oldReferenced map[string]domain.LocationSet,
	changes map[string]*blockChange,
) error {
	var ids []string
	for id := range oldReferenced {
		if _, ok := changes[id]; !ok {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil
	}
	slices.Sort(ids)

	blocks, err := r.index.Fetch(ctx, ids)
	if err != nil {
		return fmt.Errorf("fetch blocks: %w", err)
	}
	for _, id := range ids {
		block, ok := blocks[id]
		if !ok {
			return fmt.Errorf("fetch blocks: %w: %s", domain.ErrBlockNotFound, id)
		}
		changes[id] = visit(domain.MatchCandidate{BlockID: id, Block: block})
	}
	return nil
}

// classify splits touched blocks into orphans and blocks to upsert, and
// records the outcome in result.
func classify(changes map[string]*blockChange, result *domain.BatchResult) ([]string, []domain.ContentBlock, error) {
	ids := make([]string, 0, len(changes))
	for id := range changes {
		ids = append(ids, id)
	}
	slices.Sort(ids)

	var orphans []string
	var upserts []domain.ContentBlock
	for _, id := range ids {
		ch := changes[id]
		switch {
		case ch.block.Locations.Len() == 0:
			if ch.staged || ch.created {
				return nil, nil, domain.NewInvariantError("classify",
					"block %s matched in this batch has no referencing locations", id)
			}
			orphans = append(orphans, id)
			result.Deleted = append(result.Deleted, id)
		case ch.staged:
			upserts = append(upserts, ch.block)
			result.ContentUpdated = append(result.ContentUpdated, id)
		case !ch.block.Locations.Equal(ch.stored):
			upserts = append(upserts, ch.block)
			if !ch.created {
				result.ReferencesUpdated = append(result.ReferencesUpdated, id)
			}
		}
	}
	return orphans, upserts, nil
}

// applyIndex deletes orphans, then upserts the remaining touched blocks.
func (r *Reconciler) applyIndex(ctx context.Context, orphans []string, upserts []domain.ContentBlock) error {
	if len(orphans) > 0 {
		logger.Debug("Deleting %d orphaned blocks", len(orphans))
		if err := r.index.Delete(ctx, orphans); err != nil {
			return fmt.Errorf("delete orphans: %w", err)
		}
	}
	if len(upserts) > 0 {
		for i := range upserts {
			if err := upserts[i].Validate(); err != nil {
				return err
			}
		}
		logger.Debug("Upserting %d blocks", len(upserts))
		if err := r.index.Upsert(ctx, upserts); err != nil {
			return fmt.Errorf("upsert blocks: %w", err)
		}
	}
	return nil
}

// propagate writes staged content to every referencing location outside
// the batch. Failures are recorded per location and never abort the batch.
func (r *Reconciler) propagate(
	ctx context.Context,
	changes map[string]*blockChange,
	batchLocs domain.LocationSet,
) []domain.Propagation {
	var pending []domain.Propagation
	prior := make(map[string]string)
	for id, ch := range changes {
		if !ch.staged {
			continue
		}
		prior[id] = ch.priorContent
		for _, loc := range ch.block.Locations.Sorted() {
			if batchLocs.Has(loc) {
				continue
			}
			pending = append(pending, domain.Propagation{Location: loc, BlockID: id})
		}
	}
	if len(pending) == 0 {
		return nil
	}
	slices.SortFunc(pending, func(a, b domain.Propagation) int {
		if c := strings.Compare(a.BlockID, b.BlockID); c != 0 {
			return c
		}
		return strings.Compare(string(a.Location), string(b.Location))
	})

	logger.Section("Propagate")
	var g errgroup.Group
	g.SetLimit(maxFanOut)
	for i := range pending {
		p := &pending[i]
		g.Go(func() error {
			content := changes[p.BlockID].block.Content
			status, err := r.router.Apply(ctx, p.Location, content, prior[p.BlockID])
			p.Status = status
			p.Err = err
			if err != nil {
				logger.Warn("Propagation of %s to %s failed: %v", p.BlockID, p.Location, err)
			} else {
				logger.Debug("Propagated %s to %s: %s", p.BlockID, p.Location, status)
			}
			return nil
		})
	}
	_ = g.Wait()
	return pending
}

// fanOut runs fn for every location concurrently and returns the first error.
func fanOut(ctx context.Context, locs []domain.Location, fn func(context.Context, domain.Location) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxFanOut)
	for _, loc := range locs {
		g.Go(func() error {
			return fn(gctx, loc)
		})
	}
	return g.Wait()
}

// referencedBy inverts location mappings into block id -> referencing locations.
func referencedBy(mappings map[domain.Location][]string) map[string]domain.LocationSet {
	refs := make(map[string]domain.LocationSet)
	for loc, ids := range mappings {
		for _, id := range ids {
			if refs[id] == nil {
				refs[id] = domain.NewLocationSet()
			}
			refs[id].Add(loc)
		}
	}
	return refs
}

func normaliseLocations(locs []domain.Location) ([]domain.Location, error) {
	for _, loc := range locs {
		if _, err := domain.ParseLocation(string(loc)); err != nil {
			return nil, err
		}
	}
	return domain.UniqueLocations(locs), nil
}

func logSummary(kind string, result *domain.BatchResult) {
	logger.Info("%s batch: %d created, %d content updated, %d references updated, %d deleted, %d mappings written, %d propagations (%d failed)",
		kind,
		len(result.Created),
		len(result.ContentUpdated),
		len(result.ReferencesUpdated),
		len(result.Deleted),
		result.MappingsWritten,
		len(result.Propagations),
		len(result.FailedPropagations()),
	)
}
