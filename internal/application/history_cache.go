package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bnema/pttsync/internal/domain"
	"github.com/bnema/pttsync/internal/ports"
)

const (
	// MaxHistoryItems bounds the cached list; the oldest CreatedAt goes first.
	MaxHistoryItems = 10
	// PriorityWindow is how long a local change outranks a pending backend copy.
	PriorityWindow = 30 * time.Second

	opQueueSize = 64
	saveTimeout = 5 * time.Second
)

type LocalRequestOption func(*domain.HistoryItem)

func WithServiceGroup(name string) LocalRequestOption {
	return func(item *domain.HistoryItem) { item.ServiceGroupName = name }
}

func WithRequester(name string) LocalRequestOption {
	return func(item *domain.HistoryItem) { item.RequesterName = name }
}

func WithHandler(name string) LocalRequestOption {
	return func(item *domain.HistoryItem) { item.HandlerName = name }
}

// HistoryCache is the offline-first history list. Every operation runs on a
// single worker goroutine in submission order; mutations are fire-and-forget
// and Items blocks until everything submitted before it has been applied.
type HistoryCache struct {
	store  ports.HistoryStore
	clock  ports.Clock
	logger *slog.Logger

	ops chan func()
	wg  sync.WaitGroup

	// mu guards closed and done; submitters hold it shared while sending
	// so Close cannot finish while an op is still on its way to the queue.
	mu     sync.RWMutex
	closed bool
	done   chan struct{}

	// owned by the worker goroutine
	records []domain.HistoryRecord
}

func NewHistoryCache(ctx context.Context, store ports.HistoryStore, clock ports.Clock, logger *slog.Logger) *HistoryCache {
	if clock == nil {
		clock = ports.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	c := &HistoryCache{
		store:  store,
		clock:  clock,
		logger: logger.With("component", "history_cache"),
		ops:    make(chan func(), opQueueSize),
		done:   make(chan struct{}),
	}

	loaded, err := store.Load(ctx)
	if err != nil {
		c.logger.Warn("loading cached history failed, starting empty", "error", err)
		loaded = nil
	}
	c.records = normalize(loaded, c.logger)

	c.wg.Add(1)
	go c.run()
	return c
}

func (c *HistoryCache) run() {
	defer c.wg.Done()
	for {
		select {
		case op := <-c.ops:
			op()
		case <-c.done:
			for {
				select {
				case op := <-c.ops:
					op()
				default:
					return
				}
			}
		}
	}
}

func (c *HistoryCache) submit(op func()) error {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		return domain.ErrCacheClosed
	}
	c.ops <- op
	return nil
}

// AddLocalRequest records an optimistic request. An ID that is already cached
// is left untouched. An empty status means pending.
func (c *HistoryCache) AddLocalRequest(id string, status domain.HistoryStatus, opts ...LocalRequestOption) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("history id is required")
	}
	if status == "" {
		status = domain.HistoryStatusPending
	}
	if !status.Valid() {
		return fmt.Errorf("unsupported history status %q", status)
	}

	now := c.clock.Now()
	return c.submit(func() {
		if indexOf(c.records, id) >= 0 {
			c.logger.Debug("local request already cached", "id", id)
			return
		}

		record := domain.HistoryRecord{
			HistoryItem: domain.HistoryItem{
				ID:        id,
				Status:    status,
				CreatedAt: now.UnixMilli(),
			},
			LocallyModifiedAt: domain.Millis(now),
			NeedsSync:         true,
		}
		for _, opt := range opts {
			opt(&record.HistoryItem)
		}

		c.records = trim(sortNewestFirst(append([]domain.HistoryRecord{record}, c.records...)))
		c.persist()
	})
}

// UpdateLocalStatus applies an optimistic status change. Unknown IDs are
// logged and ignored.
func (c *HistoryCache) UpdateLocalStatus(id string, status domain.HistoryStatus) error {
	if !status.Valid() {
		return fmt.Errorf("unsupported history status %q", status)
	}

	now := c.clock.Now()
	return c.submit(func() {
		idx := indexOf(c.records, id)
		if idx < 0 {
			c.logger.Warn("status update for unknown history record", "id", id, "status", status)
			return
		}

		updated := slices.Clone(c.records)
		updated[idx].Status = status
		updated[idx].LocallyModifiedAt = domain.Millis(now)
		updated[idx].NeedsSync = true
		c.records = updated
		c.persist()
	})
}

// SyncWithBackend merges an authoritative snapshot into the cache. The
// priority window is judged against the time of the call.
func (c *HistoryCache) SyncWithBackend(remote []domain.HistoryItem) error {
	snapshot := c.validRemote(remote)
	now := c.clock.Now()
	return c.submit(func() {
		merged := MergeHistory(c.records, snapshot, now)
		c.logger.Debug("merged backend snapshot", "remote", len(snapshot), "local", len(c.records), "result", len(merged))
		c.records = merged
		c.persist()
	})
}

// Clear drops every record, e.g. on logout.
func (c *HistoryCache) Clear() error {
	return c.submit(func() {
		c.records = nil
		c.persist()
	})
}

// Items returns the list as of every operation submitted before the call.
func (c *HistoryCache) Items(ctx context.Context) ([]domain.HistoryItem, error) {
	records, err := c.Records(ctx)
	if err != nil {
		return nil, err
	}

	items := make([]domain.HistoryItem, 0, len(records))
	for _, record := range records {
		items = append(items, record.Item())
	}
	return items, nil
}

// Records is Items including the reconciliation bookkeeping.
func (c *HistoryCache) Records(ctx context.Context) ([]domain.HistoryRecord, error) {
	reply := make(chan []domain.HistoryRecord, 1)
	if err := c.submit(func() {
		reply <- slices.Clone(c.records)
	}); err != nil {
		return nil, err
	}

	select {
	case records := <-reply:
		return records, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close applies queued operations and stops the worker. Later calls return
// ErrCacheClosed.
func (c *HistoryCache) Close() {
	c.mu.Lock()
	if !c.closed {
		c.closed = true
		close(c.done)
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *HistoryCache) validRemote(remote []domain.HistoryItem) []domain.HistoryItem {
	snapshot := make([]domain.HistoryItem, 0, len(remote))
	for _, item := range remote {
		if !remoteUsable(item) {
			c.logger.Warn("skipping malformed backend history entry", "id", item.ID, "status", item.Status)
			continue
		}
		snapshot = append(snapshot, item)
	}
	return snapshot
}

func remoteUsable(item domain.HistoryItem) bool {
	return strings.TrimSpace(item.ID) != "" && item.Status.Valid()
}

func (c *HistoryCache) persist() {
	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()

	if err := c.store.Save(ctx, slices.Clone(c.records)); err != nil {
		c.logger.Error("persisting history failed, keeping in-memory state", "error", err, "records", len(c.records))
	}
}

// MergeHistory reconciles local records with a backend snapshot taken at now.
// Remote entries win unless they are still pending and the local copy was
// changed within PriorityWindow. Local-only entries survive only inside the
// window. The result is sorted newest first and bounded.
func MergeHistory(local []domain.HistoryRecord, remote []domain.HistoryItem, now time.Time) []domain.HistoryRecord {
	localByID := make(map[string]domain.HistoryRecord, len(local))
	for _, record := range local {
		localByID[record.ID] = record
	}

	seen := make(map[string]struct{}, len(remote))
	merged := make([]domain.HistoryRecord, 0, len(remote)+len(local))
	for _, item := range remote {
		if !remoteUsable(item) {
			continue
		}
		if _, dup := seen[item.ID]; dup {
			continue
		}
		seen[item.ID] = struct{}{}

		existing, ok := localByID[item.ID]
		switch {
		case !ok:
			merged = append(merged, domain.RemoteRecord(item))
		case item.Status != domain.HistoryStatusPending:
			merged = append(merged, domain.RemoteRecord(item))
		case existing.NeedsSync && existing.ModifiedWithin(now, PriorityWindow):
			merged = append(merged, existing)
		default:
			merged = append(merged, domain.RemoteRecord(item))
		}
	}

	var recent []domain.HistoryRecord
	for _, record := range local {
		if _, ok := seen[record.ID]; ok {
			continue
		}
		if record.ModifiedWithin(now, PriorityWindow) {
			recent = append(recent, record)
		}
	}

	return trim(sortNewestFirst(append(recent, merged...)))
}

func normalize(records []domain.HistoryRecord, logger *slog.Logger) []domain.HistoryRecord {
	out := make([]domain.HistoryRecord, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, record := range records {
		if err := record.Validate(); err != nil {
			logger.Warn("discarding invalid cached record", "error", err)
			continue
		}
		if _, dup := seen[record.ID]; dup {
			continue
		}
		seen[record.ID] = struct{}{}
		out = append(out, record)
	}
	return trim(sortNewestFirst(out))
}

func sortNewestFirst(records []domain.HistoryRecord) []domain.HistoryRecord {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt > records[j].CreatedAt
	})
	return records
}

func trim(records []domain.HistoryRecord) []domain.HistoryRecord {
	if len(records) > MaxHistoryItems {
		return records[:MaxHistoryItems]
	}
	return records
}

func indexOf(records []domain.HistoryRecord, id string) int {
	for i := range records {
		if records[i].ID == id {
			return i
		}
	}
	return -1
}
