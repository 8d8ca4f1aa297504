package emit

// NullEmitter implements Emitter by discarding all events.
//
// Use it where event output is unwanted, e.g. in tests or quiet batch
// runs. Safe for concurrent use, zero overhead.
type NullEmitter struct{}

// NewNullEmitter creates a NullEmitter.
func NewNullEmitter() *NullEmitter {
	return &NullEmitter{}
}

// Emit discards the event.
func (n *NullEmitter) Emit(event Event) {}
