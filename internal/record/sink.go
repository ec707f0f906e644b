package record

// Sink receives intermediate values produced while a run is processed.
// Tags are dotted names such as "modem.Framer.samples".
type Sink interface {
	Record(tag string, value any)
}

// Nop discards everything.
type Nop struct{}

// Record implements Sink.
func (Nop) Record(string, any) {}

// OrNop returns s, or Nop when s is nil.
func OrNop(s Sink) Sink {
	if s == nil {
		return Nop{}
	}
	return s
}

// Multi fans every record out to all of its sinks in order.
type Multi []Sink

// Record implements Sink.
func (m Multi) Record(tag string, value any) {
	for _, s := range m {
		if s != nil {
			s.Record(tag, value)
		}
	}
}
