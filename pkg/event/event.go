// Package event defines the unit of data flowing through a topology: a tagged
// union over log, metric, and trace payloads, plus the ordered Batch container
// that carries events between components.
package event

import (
	"strings"
	"time"

	"github.com/eventflow/eventflow/pkg/acks"
)

// Kind tags the payload variant of an Event.
type Kind uint8

const (
	KindLog Kind = iota
	KindMetric
	KindTrace
)

func (k Kind) String() string {
	names := []string{"log", "metric", "trace"}
	if int(k) < len(names) {
		return names[k]
	}
	return "unknown"
}

// Event is a single unit of telemetry. Events are mutable in content while
// they move through transforms, but their variant never changes.
type Event interface {
	// Kind reports the payload variant.
	Kind() Kind

	// Meta returns the mutable provenance and acknowledgement metadata.
	Meta() *Metadata

	// Field looks up a value by dotted path ("message", "tags.host").
	Field(path string) (interface{}, bool)

	// SetField writes a value at a dotted path, creating intermediate
	// containers where the variant allows it. Returns false if the path
	// cannot be written for this variant.
	SetField(path string, value interface{}) bool

	// Clone returns a deep copy sharing only the acknowledgement linkage.
	Clone() Event
}

// Metadata carries ingestion provenance and the acknowledgement linkage back
// to the originating batch.
type Metadata struct {
	// Source is the component key of the originating source.
	Source string

	// IngestedAt is when the source created the event.
	IngestedAt time.Time

	finalizer *acks.Finalizer
}

// SetFinalizer attaches the batch acknowledgement finalizer.
func (m *Metadata) SetFinalizer(f *acks.Finalizer) {
	m.finalizer = f
}

// Finalize reports the delivery status for this event. Safe to call on events
// with no finalizer attached.
func (m *Metadata) Finalize(status acks.Status) {
	m.finalizer.Update(status)
}

// CloneMeta copies the metadata. The finalizer is shared: clones of an event
// count as one batch member for acknowledgement purposes.
func (m *Metadata) CloneMeta() Metadata {
	return Metadata{Source: m.Source, IngestedAt: m.IngestedAt, finalizer: m.finalizer}
}

// splitPath splits a dotted field path. Path segments cannot contain dots.
func splitPath(path string) []string {
	return strings.Split(path, ".")
}
