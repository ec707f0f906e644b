package modem

import (
	log "github.com/sirupsen/logrus"

	"github.com/jeongseonghan/waveform/internal/record"
)

// Option configures the logger and record sink of a processing unit.
type Option func(*unit)

// WithLogger replaces the unit's logger. The unit name is added as a field.
func WithLogger(l *log.Entry) Option {
	return func(u *unit) {
		if l != nil {
			u.log = l
		}
	}
}

// WithSink attaches a record sink. Units without one record nothing.
func WithSink(s record.Sink) Option {
	return func(u *unit) {
		u.sink = record.OrNop(s)
	}
}

// unit holds what every processing stage shares: a named logger and a sink.
type unit struct {
	name string
	log  *log.Entry
	sink record.Sink
}

func newUnit(name string, opts []Option) unit {
	u := unit{
		name: name,
		log:  log.NewEntry(log.StandardLogger()),
		sink: record.Nop{},
	}
	for _, opt := range opts {
		opt(&u)
	}
	u.log = u.log.WithField("unit", name)
	return u
}

func (u *unit) record(tag string, value any) {
	u.sink.Record(u.name+"."+tag, value)
}
