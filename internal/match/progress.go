package match

import (
	"fmt"
	"sync"
)

// Stage names a phase of a comparison run.
type Stage string

const (
	StageParsing       Stage = "parsing"
	StageBuildingIndex Stage = "building-index"
	StageComparing     Stage = "comparing"
	StageComplete      Stage = "complete"
)

// ProgressTotal is the denominator of every progress event.
const ProgressTotal = 100

// Progress bands. Parsing owns [0,30), index building [30,50) and
// comparison [50,100].
const (
	bandIndexStart   = 30
	bandIndexWidth   = 20
	bandCompareStart = 50
	bandCompareWidth = 50
)

// DefaultChunkSize is the number of records processed between progress events.
const DefaultChunkSize = 10000

// ProgressEvent reports how far a run has come.
type ProgressEvent struct {
	Stage   Stage  `json:"stage"`
	Current int    `json:"current"`
	Total   int    `json:"total"`
	Message string `json:"message"`
}

// ProgressFunc receives progress events. Its return is ignored and it may be nil.
type ProgressFunc func(ProgressEvent)

// Emit calls f if it is set.
func (f ProgressFunc) Emit(stage Stage, current int, message string) {
	if f == nil {
		return
	}
	f(ProgressEvent{Stage: stage, Current: current, Total: ProgressTotal, Message: message})
}

// meter counts processed records within one stage and emits an event at the
// start and each time a chunk boundary is crossed. It is safe for concurrent
// use; events leave in non-decreasing order of Current.
type meter struct {
	mu        sync.Mutex
	report    ProgressFunc
	stage     Stage
	verb      string
	base      int
	width     int
	count     int
	chunkSize int
	done      int
	lastChunk int
}

func newMeter(report ProgressFunc, stage Stage, verb string, base, width, count, chunkSize int) *meter {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	m := &meter{
		report:    report,
		stage:     stage,
		verb:      verb,
		base:      base,
		width:     width,
		count:     count,
		chunkSize: chunkSize,
	}
	m.emit()
	return m
}

// add records n more processed records.
func (m *meter) add(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done += n
	if chunk := m.done / m.chunkSize; chunk > m.lastChunk {
		m.lastChunk = chunk
		m.emit()
	}
}

func (m *meter) emit() {
	current := m.base
	if m.count > 0 {
		current += m.done * m.width / m.count
	}
	m.report.Emit(m.stage, current, fmt.Sprintf("%s: %d/%d rows processed...", m.verb, m.done, m.count))
}
