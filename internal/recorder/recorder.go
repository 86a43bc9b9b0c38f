package recorder

import (
	"time"

	"TradeVision/internal/model"
)

// Exchange kinds.
const (
	KindAsk      = "ask"
	KindForecast = "forecast"
)

// LoadEvent holds the outcome of one dataset load.
type LoadEvent struct {
	Source        string
	RowsRead      int
	RowsKept      int
	Dropped       int
	LevelWarnings int
	Error         string
}

// NewLoadEvent summarizes a published dataset.
func NewLoadEvent(ds *model.Dataset) *LoadEvent {
	return &LoadEvent{
		Source:        ds.Source,
		RowsRead:      ds.Stats.RowsRead,
		RowsKept:      ds.Stats.RowsKept,
		Dropped:       ds.Stats.DroppedTotal(),
		LevelWarnings: ds.Stats.LevelWarnings,
		Error:         ds.Error,
	}
}

// Exchange is one analyst round trip.
type Exchange struct {
	ID          string        `json:"id"`
	Kind        string        `json:"kind"` // "ask" or "forecast"
	Question    string        `json:"question,omitempty"`
	Answer      string        `json:"answer"`
	Confidence  string        `json:"confidence,omitempty"`
	Model       string        `json:"model"`
	DatasetRows int           `json:"datasetRows"`
	Cached      bool          `json:"cached"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	CreatedAt   time.Time     `json:"createdAt"`
}

// Recorder persists load and analyst history.
type Recorder interface {
	RecordLoad(evt *LoadEvent) error
	RecordExchange(ex *Exchange) error
	RecentExchanges(limit int) ([]Exchange, error)
	Close() error
}
