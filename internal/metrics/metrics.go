package metrics

import "time"

// GatewayMetrics observes calls made against the remote task collection.
type GatewayMetrics interface {
	CallDone(op, outcome string, d time.Duration)
}

// ServerMetrics observes requests served by the task store.
type ServerMetrics interface {
	RequestServed(route string, status int, d time.Duration)
}

type Nop struct{}

func (Nop) CallDone(string, string, time.Duration)   {}
func (Nop) RequestServed(string, int, time.Duration) {}
