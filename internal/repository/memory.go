package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"SignalForge/internal/domain/models"
	domrepo "SignalForge/internal/domain/repository"
)

// In-memory store implementations backing tests and the dev profile. They
// mirror the SQL stores' key semantics, including natural-key upserts.

// MemoryBarStore keeps bars per symbol, sorted ascending by timestamp.
type MemoryBarStore struct {
	mu   sync.RWMutex
	bars map[string][]models.PriceBar
}

func NewMemoryBarStore() *MemoryBarStore {
	return &MemoryBarStore{bars: make(map[string][]models.PriceBar)}
}

func (s *MemoryBarStore) Init(ctx context.Context) error   { return nil }
func (s *MemoryBarStore) Health(ctx context.Context) error { return nil }
func (s *MemoryBarStore) Close() error                     { return nil }

func (s *MemoryBarStore) Store(ctx context.Context, bar *models.PriceBar) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := append(s.bars[bar.Symbol], *bar)
	sort.Slice(list, func(i, j int) bool { return list[i].Timestamp.Before(list[j].Timestamp) })
	s.bars[bar.Symbol] = list
	return nil
}

func (s *MemoryBarStore) GetBars(ctx context.Context, symbol string, from, to time.Time) ([]models.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.PriceBar
	for _, b := range s.bars[symbol] {
		if b.Timestamp.Before(from) || b.Timestamp.After(to) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (s *MemoryBarStore) GetLatestNBars(ctx context.Context, symbol string, n int) ([]models.PriceBar, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := s.bars[symbol]
	if len(list) > n {
		list = list[len(list)-n:]
	}
	out := make([]models.PriceBar, len(list))
	copy(out, list)
	return out, nil
}

var _ domrepo.BarStore = (*MemoryBarStore)(nil)

// MemorySnapshotStore upserts snapshots on (symbol, timestamp).
type MemorySnapshotStore struct {
	mu    sync.RWMutex
	snaps map[string][]models.IndicatorSnapshot
}

func NewMemorySnapshotStore() *MemorySnapshotStore {
	return &MemorySnapshotStore{snaps: make(map[string][]models.IndicatorSnapshot)}
}

func (s *MemorySnapshotStore) UpsertBatch(ctx context.Context, snaps []models.IndicatorSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, snap := range snaps {
		list := s.snaps[snap.Symbol]
		replaced := false
		for i := range list {
			if list[i].Timestamp.Equal(snap.Timestamp) {
				snap.ID = list[i].ID
				list[i] = snap
				replaced = true
				break
			}
		}
		if !replaced {
			list = append(list, snap)
			sort.Slice(list, func(i, j int) bool { return list[i].Timestamp.Before(list[j].Timestamp) })
		}
		s.snaps[snap.Symbol] = list
	}
	return nil
}

func (s *MemorySnapshotStore) GetRange(ctx context.Context, symbol string, from, to time.Time) ([]models.IndicatorSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.IndicatorSnapshot
	for _, snap := range s.snaps[symbol] {
		if snap.Timestamp.Before(from) || snap.Timestamp.After(to) {
			continue
		}
		out = append(out, snap)
	}
	return out, nil
}

var _ domrepo.SnapshotStore = (*MemorySnapshotStore)(nil)

// MemorySignalStore upserts on (symbol, timestamp, rule_version).
type MemorySignalStore struct {
	mu      sync.RWMutex
	nextID  uint
	signals []models.SignalRecord
}

func NewMemorySignalStore() *MemorySignalStore {
	return &MemorySignalStore{nextID: 1}
}

func (s *MemorySignalStore) Upsert(ctx context.Context, sig *models.SignalRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.signals {
		cur := &s.signals[i]
		if cur.Symbol == sig.Symbol && cur.Timestamp.Equal(sig.Timestamp) && cur.RuleVersion == sig.RuleVersion {
			sig.ID = cur.ID
			sig.GeneratedAt = cur.GeneratedAt
			// keep an explanation attached to an earlier version of the row
			if sig.Explanation == "" {
				sig.Explanation = cur.Explanation
			}
			*cur = *sig
			return nil
		}
	}
	sig.ID = s.nextID
	s.nextID++
	if sig.GeneratedAt.IsZero() {
		sig.GeneratedAt = time.Now().UTC()
	}
	s.signals = append(s.signals, *sig)
	return nil
}

func (s *MemorySignalStore) StrongSince(ctx context.Context, minStrength float64, since time.Time) ([]models.SignalRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.SignalRecord
	for _, sig := range s.signals {
		if sig.Strength >= minStrength && !sig.GeneratedAt.Before(since) {
			out = append(out, sig)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GeneratedAt.After(out[j].GeneratedAt) })
	return out, nil
}

func (s *MemorySignalStore) AttachExplanation(ctx context.Context, signalID uint, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.signals {
		if s.signals[i].ID == signalID {
			s.signals[i].Explanation = text
			return nil
		}
	}
	return nil
}

// All returns a copy of every stored signal, for tests.
func (s *MemorySignalStore) All() []models.SignalRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.SignalRecord, len(s.signals))
	copy(out, s.signals)
	return out
}

var _ domrepo.SignalStore = (*MemorySignalStore)(nil)

// MemorySubscriberStore serves a fixed subscriber list.
type MemorySubscriberStore struct {
	mu   sync.RWMutex
	subs []models.Subscriber
}

func NewMemorySubscriberStore(subs ...models.Subscriber) *MemorySubscriberStore {
	return &MemorySubscriberStore{subs: subs}
}

func (s *MemorySubscriberStore) Add(sub models.Subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, sub)
}

func (s *MemorySubscriberStore) ActiveConfirmed(ctx context.Context) ([]models.Subscriber, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Subscriber
	for _, sub := range s.subs {
		if sub.Confirmed && !sub.Unsubscribed {
			out = append(out, sub)
		}
	}
	return out, nil
}

var _ domrepo.SubscriberStore = (*MemorySubscriberStore)(nil)

// MemoryLedger is the append-only notification ledger. The cooldown lookup
// resolves the signal's symbol through the signal store, mirroring the SQL
// join.
type MemoryLedger struct {
	mu      sync.Mutex
	nextID  uint
	entries []models.SentNotification
	signals *MemorySignalStore
}

func NewMemoryLedger(signals *MemorySignalStore) *MemoryLedger {
	return &MemoryLedger{nextID: 1, signals: signals}
}

func (l *MemoryLedger) Append(ctx context.Context, entry *models.SentNotification) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	entry.ID = l.nextID
	l.nextID++
	if entry.SentAt.IsZero() {
		entry.SentAt = time.Now().UTC()
	}
	l.entries = append(l.entries, *entry)
	return nil
}

func (l *MemoryLedger) SentWithin(ctx context.Context, email, symbol string, since time.Time) (bool, error) {
	l.mu.Lock()
	entries := make([]models.SentNotification, len(l.entries))
	copy(entries, l.entries)
	l.mu.Unlock()

	for _, e := range entries {
		if e.Email != email || e.SentAt.Before(since) {
			continue
		}
		for _, sig := range l.signals.All() {
			if sig.ID == e.SignalID && sig.Symbol == symbol {
				return true, nil
			}
		}
	}
	return false, nil
}

// Entries returns a copy of the ledger, for tests.
func (l *MemoryLedger) Entries() []models.SentNotification {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.SentNotification, len(l.entries))
	copy(out, l.entries)
	return out
}

var _ domrepo.NotificationLedger = (*MemoryLedger)(nil)

// MemoryBacktestStore upserts summaries on (symbol, range_label, rule_version).
type MemoryBacktestStore struct {
	mu        sync.RWMutex
	nextID    uint
	summaries []models.BacktestSummary
}

func NewMemoryBacktestStore() *MemoryBacktestStore {
	return &MemoryBacktestStore{nextID: 1}
}

func (s *MemoryBacktestStore) Upsert(ctx context.Context, summary *models.BacktestSummary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.summaries {
		cur := &s.summaries[i]
		if cur.Symbol == summary.Symbol && cur.RangeLabel == summary.RangeLabel && cur.RuleVersion == summary.RuleVersion {
			summary.ID = cur.ID
			*cur = *summary
			return nil
		}
	}
	summary.ID = s.nextID
	s.nextID++
	s.summaries = append(s.summaries, *summary)
	return nil
}

func (s *MemoryBacktestStore) Get(ctx context.Context, symbol, rangeLabel, ruleVersion string) (*models.BacktestSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sum := range s.summaries {
		if sum.Symbol == symbol && sum.RangeLabel == rangeLabel && sum.RuleVersion == ruleVersion {
			out := sum
			return &out, nil
		}
	}
	return nil, nil
}

var _ domrepo.BacktestStore = (*MemoryBacktestStore)(nil)
