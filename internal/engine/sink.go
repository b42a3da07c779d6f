package engine

type Sink interface {
	Publish(Event)
}

type SinkFunc func(Event)

func (f SinkFunc) Publish(e Event) { f(e) }

// MultiSink publishes to every sink in order.
type MultiSink []Sink

func (m MultiSink) Publish(e Event) {
	for _, s := range m {
		s.Publish(e)
	}
}
