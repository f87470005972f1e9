package mqtt

import (
	"github.com/sweeney/dreadpi/internal/status"
)

// FakePublisher records published reports for test assertions.
type FakePublisher struct {
	// Snapshots contains all reports that were published.
	Snapshots []status.Snapshot

	// Payloads contains the JSON payloads that were published.
	Payloads [][]byte

	// PublishError, if set, will be returned by Publish.
	PublishError error

	// Closed tracks if Close was called.
	Closed bool
}

// NewFakePublisher creates a FakePublisher for testing.
func NewFakePublisher() *FakePublisher {
	return &FakePublisher{}
}

// Publish records the report.
func (f *FakePublisher) Publish(snap status.Snapshot) error {
	if f.PublishError != nil {
		return f.PublishError
	}
	f.Snapshots = append(f.Snapshots, snap)
	f.Payloads = append(f.Payloads, FormatPayload(snap))
	return nil
}

// Close marks the publisher as closed.
func (f *FakePublisher) Close() error {
	f.Closed = true
	return nil
}
