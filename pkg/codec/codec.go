// Package codec converts between encoded byte frames and events. Sources use
// decoders to turn raw input lines into events; sinks use encoders to
// serialize events for output.
package codec

import (
	"fmt"
	"sort"
	"sync"

	"github.com/eventflow/eventflow/pkg/event"
)

// Decoder turns one encoded frame into an event.
type Decoder interface {
	Name() string
	Decode(data []byte) (event.Event, error)
}

// Encoder serializes one event into a frame, without a trailing newline.
type Encoder interface {
	Name() string
	Encode(e event.Event) ([]byte, error)
}

var (
	registryMu sync.RWMutex
	decoders   = make(map[string]func() Decoder)
	encoders   = make(map[string]func() Encoder)
)

// RegisterDecoder registers a decoder factory under its codec name.
func RegisterDecoder(name string, factory func() Decoder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := decoders[name]; exists {
		panic(fmt.Sprintf("decoder %q registered twice", name))
	}
	decoders[name] = factory
}

// RegisterEncoder registers an encoder factory under its codec name.
func RegisterEncoder(name string, factory func() Encoder) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, exists := encoders[name]; exists {
		panic(fmt.Sprintf("encoder %q registered twice", name))
	}
	encoders[name] = factory
}

// NewDecoder returns a decoder for the named codec.
func NewDecoder(name string) (Decoder, error) {
	registryMu.RLock()
	factory, ok := decoders[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown decoder codec: %q (available: %v)", name, decoderNames())
	}
	return factory(), nil
}

// NewEncoder returns an encoder for the named codec.
func NewEncoder(name string) (Encoder, error) {
	registryMu.RLock()
	factory, ok := encoders[name]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unknown encoder codec: %q (available: %v)", name, encoderNames())
	}
	return factory(), nil
}

// Names lists registered decoder codecs, sorted.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return decoderNames()
}

func decoderNames() []string {
	names := make([]string, 0, len(decoders))
	for name := range decoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func encoderNames() []string {
	names := make([]string, 0, len(encoders))
	for name := range encoders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
