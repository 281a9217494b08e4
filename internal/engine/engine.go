// Package engine is the coordinator of the experiment grid: it owns the
// catalog, the selection state, the evaluation record cache, and the
// batched scheduler that drives the scoring collaborator.
package engine

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/raggrid/rag-grid/internal/aggregate"
	"github.com/raggrid/rag-grid/internal/bus"
	"github.com/raggrid/rag-grid/internal/catalog"
	"github.com/raggrid/rag-grid/internal/config"
	"github.com/raggrid/rag-grid/internal/matrix"
	"github.com/raggrid/rag-grid/internal/metrics"
	"github.com/raggrid/rag-grid/internal/order"
	"github.com/raggrid/rag-grid/internal/pkg/errors"
	"github.com/raggrid/rag-grid/internal/pkg/hash"
	"github.com/raggrid/rag-grid/internal/pkg/logger"
	"github.com/raggrid/rag-grid/internal/scoring"
)

// Status is an evaluation record's lifecycle state.
type Status string

const (
	// StatusPending means the record is queued or in flight.
	StatusPending Status = "pending"

	// StatusDone means the record holds real metrics.
	StatusDone Status = "done"

	// StatusError means the evaluation failed. The record holds the
	// sentinel metrics until a manual retry or until another column
	// completes onto the same parameter set.
	StatusError Status = "error"
)

// Record is one evaluation keyed by the canonical hash of its resolved
// parameter set. Columns resolving to the same set share one record.
type Record struct {
	Key       string          `json:"key"`
	Params    catalog.Params  `json:"params"`
	Status    Status          `json:"status"`
	Metrics   scoring.Metrics `json:"metrics"`
	Error     string          `json:"error,omitempty"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// recordKey derives the cache key for a resolved parameter set. Columns
// resolving to the same set always derive the same key.
func recordKey(params catalog.Params) string {
	return hash.SHA256String(params.Canonical())
}

// task is one scheduled scoring call. Epoch pins the task to the catalog
// generation it was issued under so stale completions can be discarded.
type task struct {
	column int
	key    string
	params catalog.Params
	epoch  int
}

// Deps bundles the engine's collaborators.
type Deps struct {
	Collaborator scoring.Collaborator
	Store        RecordStore
	Bus          bus.Bus
	Metrics      *metrics.Metrics
	Logger       *logger.Logger
}

// Engine coordinates selections, the record cache, and the scheduler.
// One mutex guards all grid state; the scheduler loop and HTTP handlers
// both go through it, so every observer sees one consistent grid.
type Engine struct {
	mu sync.Mutex

	cat  *catalog.Catalog
	enum *matrix.Enumerator
	sel  *matrix.SelectionStore

	// epoch increments on every catalog replacement. Completions carrying
	// an older epoch are dropped without touching the new grid.
	epoch int

	records  map[string]*Record
	byColumn map[int]string
	queue    []task

	activeMetric string
	orderCtl     *order.Controller

	batchSize int
	workers   int
	limiter   *rate.Limiter
	wake      chan struct{}
	inflight  sync.WaitGroup

	collab scoring.Collaborator
	store  RecordStore
	bus    bus.Bus
	met    *metrics.Metrics
	log    *logger.Logger
}

// New creates an engine over the given catalog. The catalog must already
// be validated.
func New(cat *catalog.Catalog, cfg config.EngineConfig, workers int, deps Deps) (*Engine, error) {
	if !scoring.ValidMetric(cfg.Metric) {
		return nil, errors.ValidationError("unknown display metric: " + cfg.Metric)
	}

	limit := rate.Inf
	if cfg.BatchIntervalMS > 0 {
		limit = rate.Every(time.Duration(cfg.BatchIntervalMS) * time.Millisecond)
	}

	e := &Engine{
		records:      make(map[string]*Record),
		byColumn:     make(map[int]string),
		activeMetric: cfg.Metric,
		orderCtl:     order.NewController(),
		batchSize:    cfg.BatchSize,
		workers:      workers,
		limiter:      rate.NewLimiter(limit, 1),
		wake:         make(chan struct{}, 1),
		collab:       deps.Collaborator,
		store:        deps.Store,
		bus:          deps.Bus,
		met:          deps.Metrics,
		log:          deps.Logger.WithComponent("engine"),
	}
	e.installCatalog(cat)
	return e, nil
}

// installCatalog swaps in a catalog and rebuilds the enumerator and
// selection store. Caller holds mu (or is the constructor).
func (e *Engine) installCatalog(cat *catalog.Catalog) {
	e.cat = cat
	e.enum = matrix.NewEnumerator(cat.Varying())
	e.sel = matrix.NewSelectionStore(cat, e.enum)
	e.sel.OnCompleted(e.onColumnCompleted)
}

// Run drives the batch scheduler until ctx is cancelled. Batches are
// issued at a fixed cadence; a batch never waits for the previous one to
// finish, so a slow call delays nothing but its own column.
func (e *Engine) Run(ctx context.Context) error {
	e.log.Info("scheduler started", "batch_size", e.batchSize)
	for {
		batch := e.takeBatch()
		if len(batch) == 0 {
			select {
			case <-ctx.Done():
				e.inflight.Wait()
				return ctx.Err()
			case <-e.wake:
			}
			continue
		}

		if err := e.limiter.Wait(ctx); err != nil {
			e.requeue(batch)
			e.inflight.Wait()
			return err
		}
		e.issueBatch(ctx, batch)
	}
}

func (e *Engine) takeBatch() []task {
	e.mu.Lock()
	defer e.mu.Unlock()

	n := e.batchSize
	if n > len(e.queue) {
		n = len(e.queue)
	}
	if n == 0 {
		return nil
	}

	batch := make([]task, n)
	copy(batch, e.queue[:n])
	e.queue = e.queue[n:]
	return batch
}

func (e *Engine) requeue(batch []task) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.queue = append(batch, e.queue...)
}

func (e *Engine) issueBatch(ctx context.Context, batch []task) {
	e.inflight.Add(1)
	go func() {
		defer e.inflight.Done()

		start := time.Now()
		g, gctx := errgroup.WithContext(ctx)
		for _, t := range batch {
			t := t
			g.Go(func() error {
				e.runTask(gctx, t)
				return nil
			})
		}
		_ = g.Wait()
		e.met.ObserveBatch(time.Since(start))
	}()
}

func (e *Engine) runTask(ctx context.Context, t task) {
	e.met.EvaluationsIssued.Inc()
	e.log.WithColumn(t.column).WithEpoch(t.epoch).Debug("evaluating configuration", "key", hash.SHA256Short([]byte(t.params.Canonical()), 12))

	m, err := e.collab.Evaluate(ctx, t.params, e.workers)
	e.completeTask(t, m, err)
}

// completeTask folds a finished scoring call back into the record cache.
// Completions from a replaced catalog are dropped; a record that already
// left Pending (manual retry raced a late response) is left untouched.
func (e *Engine) completeTask(t task, m scoring.Metrics, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if t.epoch != e.epoch {
		e.met.StaleDrops.Inc()
		e.log.WithEpoch(t.epoch).Debug("dropping stale completion", "current_epoch", e.epoch)
		return
	}

	rec, ok := e.records[t.key]
	if !ok || rec.Status != StatusPending {
		return
	}

	rec.UpdatedAt = time.Now()
	if err != nil {
		rec.Status = StatusError
		rec.Metrics = scoring.Sentinel()
		rec.Error = err.Error()
		e.met.EvaluationsFailed.Inc()
		e.log.WithColumn(t.column).WithError(err).Warn("evaluation failed")
	} else {
		rec.Status = StatusDone
		rec.Metrics = m
		rec.Error = ""
		e.met.EvaluationsDone.Inc()
		e.saveRecord(t.key, m)
	}

	e.publishDoneLocked(rec)
}

// saveRecord writes through to the persistent store off the engine lock.
func (e *Engine) saveRecord(key string, m scoring.Metrics) {
	if e.store == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := e.store.Save(ctx, key, StoredRecord{Metrics: m, SavedAt: time.Now()}); err != nil {
			e.log.WithError(err).Warn("persisting record failed", "key", key)
		}
	}()
}

// publishDoneLocked announces a record's terminal state for every column
// currently sharing it. Caller holds mu.
func (e *Engine) publishDoneLocked(rec *Record) {
	if e.bus == nil {
		return
	}

	columns := make([]int, 0, 4)
	for c, k := range e.byColumn {
		if k == rec.Key {
			columns = append(columns, c)
		}
	}

	event := bus.NewEvent(bus.TopicEvaluationDone, "engine", e.epoch, map[string]any{
		"key":     rec.Key,
		"status":  rec.Status,
		"columns": columns,
	})
	if err := e.bus.Publish(context.Background(), bus.TopicEvaluationDone, event); err != nil {
		e.log.WithError(err).Warn("publishing evaluation event failed")
	}
}

// onColumnCompleted is the selection store's notifier. The store is only
// touched under mu, so this always runs with mu held.
func (e *Engine) onColumnCompleted(column int) {
	e.met.ColumnsCompleted.Inc()

	if e.bus != nil {
		event := bus.NewEvent(bus.TopicColumnCompleted, "engine", e.epoch, map[string]any{
			"column": column,
		})
		if err := e.bus.Publish(context.Background(), bus.TopicColumnCompleted, event); err != nil {
			e.log.WithError(err).Warn("publishing column event failed")
		}
	}

	e.ensureEvaluatedLocked(column)
}

// ensureEvaluatedLocked maps a complete column onto the record for its
// resolved parameter set, creating and scheduling the record when no
// column has asked for that set yet. Caller holds mu.
func (e *Engine) ensureEvaluatedLocked(column int) {
	params, ok := e.sel.Resolve(column)
	if !ok {
		return
	}
	key := recordKey(params)
	e.byColumn[column] = key

	if rec, ok := e.records[key]; ok {
		// Same resolved set, same record: a Pending record means the
		// call is already in flight and Done is reused as-is. A failed
		// set gets another chance whenever a column completes onto it.
		switch rec.Status {
		case StatusError:
			e.met.CacheMisses.Inc()
			rec.Status = StatusPending
			rec.Error = ""
			rec.UpdatedAt = time.Now()
			e.queue = append(e.queue, task{column: column, key: key, params: rec.Params, epoch: e.epoch})
			e.signalWake()
		case StatusDone:
			e.met.CacheHits.Inc()
			e.publishDoneLocked(rec)
		default:
			e.met.CacheHits.Inc()
		}
		return
	}
	e.met.CacheMisses.Inc()

	rec := &Record{
		Key:       key,
		Params:    params.Clone(),
		Status:    StatusPending,
		UpdatedAt: time.Now(),
	}
	e.records[key] = rec

	if stored := e.loadStored(key); stored != nil {
		rec.Status = StatusDone
		rec.Metrics = stored.Metrics
		e.met.StoreHits.Inc()
		e.publishDoneLocked(rec)
		return
	}

	e.queue = append(e.queue, task{column: column, key: key, params: rec.Params, epoch: e.epoch})
	e.signalWake()
}

// loadStored consults the persistent store. A store failure degrades to a
// cache miss; the evaluation is simply recomputed.
func (e *Engine) loadStored(key string) *StoredRecord {
	if e.store == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	stored, err := e.store.Load(ctx, key)
	if err != nil {
		e.log.WithError(err).Warn("record store lookup failed", "key", key)
		return nil
	}
	return stored
}

func (e *Engine) signalWake() {
	select {
	case e.wake <- struct{}{}:
	default:
	}
}

// AutoFill sets every column to its canonical combination and schedules
// every distinct parameter set exactly once.
func (e *Engine) AutoFill() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sel.AutoFill()
	e.log.Info("grid auto-filled", "columns", e.enum.Count(), "queued", len(e.queue))
}

// Toggle edits one cell of a column and reacts to the completeness
// transition: completion schedules an evaluation, clearing detaches the
// column from its record.
func (e *Engine) Toggle(column int, dimKey string, valueIndex int) (matrix.Transition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.toggleLocked(column, dimKey, valueIndex)
}

// ToggleAt is Toggle guarded by the catalog epoch the client saw. An
// edit based on a snapshot from before a catalog replacement is
// rejected instead of landing on the new grid.
func (e *Engine) ToggleAt(epoch, column int, dimKey string, valueIndex int) (matrix.Transition, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if epoch != e.epoch {
		return matrix.StillIncomplete, errors.StaleEpochError(epoch, e.epoch)
	}
	return e.toggleLocked(column, dimKey, valueIndex)
}

func (e *Engine) toggleLocked(column int, dimKey string, valueIndex int) (matrix.Transition, error) {
	tr, err := e.sel.Toggle(column, dimKey, valueIndex)
	if err != nil {
		return tr, err
	}
	if !e.sel.IsComplete(column) {
		delete(e.byColumn, column)
	}
	return tr, nil
}

// Retry re-schedules the evaluation behind a column whose record is in
// the error state, without requiring a selection edit.
func (e *Engine) Retry(column int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	key, ok := e.byColumn[column]
	if !ok {
		return errors.IncompleteColumnError(column)
	}
	rec, ok := e.records[key]
	if !ok {
		return errors.NotFoundError("evaluation record")
	}
	if rec.Status != StatusError {
		return errors.InvalidRequestError("column has no failed evaluation to retry")
	}

	rec.Status = StatusPending
	rec.Error = ""
	rec.UpdatedAt = time.Now()
	e.queue = append(e.queue, task{column: column, key: key, params: rec.Params, epoch: e.epoch})
	e.signalWake()
	e.log.WithColumn(column).Info("retrying failed evaluation")
	return nil
}

// SetCatalog replaces the dimension catalog. All selections, records,
// and queued work are discarded; in-flight calls complete against the
// old epoch and are dropped on arrival.
func (e *Engine) SetCatalog(cat *catalog.Catalog) error {
	if err := cat.Validate(); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.epoch++
	e.records = make(map[string]*Record)
	e.byColumn = make(map[int]string)
	e.queue = nil
	e.installCatalog(cat)
	e.met.CatalogResets.Inc()
	e.log.WithEpoch(e.epoch).Info("catalog replaced", "columns", e.enum.Count())

	if e.bus != nil {
		event := bus.NewEvent(bus.TopicCatalogReset, "engine", e.epoch, map[string]any{
			"columns": e.enum.Count(),
		})
		if err := e.bus.Publish(context.Background(), bus.TopicCatalogReset, event); err != nil {
			e.log.WithError(err).Warn("publishing reset event failed")
		}
	}
	return nil
}

// SetMetric switches the active display metric. Stored results are not
// touched; only presentation and aggregation read the active metric.
func (e *Engine) SetMetric(name string) error {
	if !scoring.ValidMetric(name) {
		return errors.InvalidRequestError("unknown display metric: " + name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.activeMetric = name
	return nil
}

// Metric returns the active display metric.
func (e *Engine) Metric() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.activeMetric
}

// SetSortMode switches the display order mode.
func (e *Engine) SetSortMode(mode order.Mode) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.orderCtl.SetMode(mode)
}

// SortMode returns the active display order mode.
func (e *Engine) SortMode() order.Mode {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.orderCtl.Mode()
}

// Epoch returns the current catalog epoch.
func (e *Engine) Epoch() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epoch
}

// ColumnView is one column as presented to clients.
type ColumnView struct {
	Index    int              `json:"index"`
	Selected map[string]int   `json:"selected"`
	Complete bool             `json:"complete"`
	Status   Status           `json:"status,omitempty"`
	Metrics  *scoring.Metrics `json:"metrics,omitempty"`
	Error    string           `json:"error,omitempty"`
}

// Snapshot is one consistent view of the whole grid.
type Snapshot struct {
	Epoch      int               `json:"epoch"`
	Metric     string            `json:"metric"`
	SortMode   order.Mode        `json:"sort_mode"`
	Catalog    *catalog.Catalog  `json:"catalog"`
	Columns    []ColumnView      `json:"columns"`
	Order      []int             `json:"order"`
	Aggregates []aggregate.Entry `json:"aggregates"`
}

// Snapshot assembles the full grid state under one lock acquisition:
// every column, the display permutation, and the aggregates all describe
// the same instant.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()

	return Snapshot{
		Epoch:      e.epoch,
		Metric:     e.activeMetric,
		SortMode:   e.orderCtl.Mode(),
		Catalog:    e.cat,
		Columns:    e.columnsLocked(),
		Order:      e.orderCtl.Permutation(e.orderColumnsLocked()),
		Aggregates: aggregate.Means(e.samplesLocked()),
	}
}

// Columns returns every column's current view in natural order.
func (e *Engine) Columns() []ColumnView {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.columnsLocked()
}

// Aggregates computes the per-value means of the active metric. Recomputed
// on every read; the sample walk is linear in columns times dimensions.
func (e *Engine) Aggregates() []aggregate.Entry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return aggregate.Means(e.samplesLocked())
}

// Order returns the current display permutation.
func (e *Engine) Order() []int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.orderCtl.Permutation(e.orderColumnsLocked())
}

func (e *Engine) columnsLocked() []ColumnView {
	views := make([]ColumnView, e.enum.Count())
	for c := range views {
		v := ColumnView{
			Index:    c,
			Selected: e.sel.Selected(c),
			Complete: e.sel.IsComplete(c),
		}
		if rec := e.recordForLocked(c); rec != nil {
			v.Status = rec.Status
			v.Error = rec.Error
			if rec.Status != StatusPending {
				m := rec.Metrics
				v.Metrics = &m
			}
		}
		views[c] = v
	}
	return views
}

func (e *Engine) orderColumnsLocked() []order.Column {
	cols := make([]order.Column, e.enum.Count())
	for c := range cols {
		cols[c] = order.Column{Index: c}
		if rec := e.recordForLocked(c); rec != nil && rec.Status == StatusDone {
			if v, ok := rec.Metrics.Value(e.activeMetric); ok {
				cols[c].Value = v
				cols[c].Scored = true
			}
		}
	}
	return cols
}

func (e *Engine) samplesLocked() []aggregate.Sample {
	samples := make([]aggregate.Sample, 0, e.enum.Count())
	for c := 0; c < e.enum.Count(); c++ {
		rec := e.recordForLocked(c)
		if rec == nil || rec.Status != StatusDone {
			continue
		}
		v, ok := rec.Metrics.Value(e.activeMetric)
		if !ok {
			continue
		}
		samples = append(samples, aggregate.Sample{
			Selection: e.sel.Selected(c),
			Value:     v,
			Scored:    true,
		})
	}
	return samples
}

func (e *Engine) recordForLocked(column int) *Record {
	key, ok := e.byColumn[column]
	if !ok {
		return nil
	}
	return e.records[key]
}
