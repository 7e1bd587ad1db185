// enrichment_store.go keeps per-run hook data so the runner wrapper can
// attach it to the item it reports.

package agentssdk

import "sync"

// DefaultHistorySize is the number of operations kept per run.
const DefaultHistorySize = 20

// Enrichment is the context captured by hooks for one run.
type Enrichment struct {
	AgentName   string
	Model       string
	ToolName    string
	ToolCallID  string
	Operation   string // tool, llm or handoff
	OperationID string

	// History holds the most recent operations, oldest first.
	History []OperationRecord
}

// EnrichmentStore is safe for concurrent use.
type EnrichmentStore interface {
	// Update applies fn to the enrichment for runID, creating it if needed.
	// fn runs under the store lock and must not call back into the store.
	Update(runID string, fn func(e *Enrichment))

	// AppendOperation adds rec to the run's history, evicting the oldest
	// record when full.
	AppendOperation(runID string, rec OperationRecord)

	// UpdateLastOperation applies fn to the newest record of the run.
	UpdateLastOperation(runID string, fn func(rec *OperationRecord))

	// Get returns a copy of the enrichment for runID.
	Get(runID string) (Enrichment, bool)

	Delete(runID string)
}

type runEntry struct {
	enrichment Enrichment
	history    operationHistoryBuffer
}

type inMemoryEnrichmentStore struct {
	mu          sync.RWMutex
	historySize int
	data        map[string]*runEntry
}

// NewEnrichmentStore creates an in-memory store keeping DefaultHistorySize
// operations per run.
func NewEnrichmentStore() EnrichmentStore {
	return NewEnrichmentStoreWithHistory(DefaultHistorySize)
}

// NewEnrichmentStoreWithHistory creates an in-memory store keeping size
// operations per run. A size below one disables history.
func NewEnrichmentStoreWithHistory(size int) EnrichmentStore {
	if size < 0 {
		size = 0
	}
	return &inMemoryEnrichmentStore{
		historySize: size,
		data:        make(map[string]*runEntry),
	}
}

func (s *inMemoryEnrichmentStore) entry(runID string) *runEntry {
	e, ok := s.data[runID]
	if !ok {
		e = &runEntry{history: operationHistoryBuffer{maxSize: s.historySize}}
		s.data[runID] = e
	}
	return e
}

func (s *inMemoryEnrichmentStore) Update(runID string, fn func(e *Enrichment)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(&s.entry(runID).enrichment)
}

func (s *inMemoryEnrichmentStore) AppendOperation(runID string, rec OperationRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(runID).history.Add(rec)
}

func (s *inMemoryEnrichmentStore) UpdateLastOperation(runID string, fn func(rec *OperationRecord)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok := s.data[runID]; ok {
		e.history.UpdateLast(fn)
	}
}

func (s *inMemoryEnrichmentStore) Get(runID string) (Enrichment, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.data[runID]
	if !ok {
		return Enrichment{}, false
	}
	out := e.enrichment
	out.History = append([]OperationRecord(nil), e.history.GetAll()...)
	return out, true
}

func (s *inMemoryEnrichmentStore) Delete(runID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, runID)
}
