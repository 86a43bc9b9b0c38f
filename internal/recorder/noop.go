package recorder

// NoopRecorder is a no-op implementation used when SQLite is not configured.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder { return &NoopRecorder{} }

func (n *NoopRecorder) RecordLoad(_ *LoadEvent) error             { return nil }
func (n *NoopRecorder) RecordExchange(_ *Exchange) error          { return nil }
func (n *NoopRecorder) RecentExchanges(_ int) ([]Exchange, error) { return []Exchange{}, nil }
func (n *NoopRecorder) Close() error                              { return nil }
