package ports

import "github.com/bnema/pttsync/internal/domain"

// EventSubscriber receives decoded stream events and connectivity changes.
// Calls are never concurrent.
type EventSubscriber interface {
	OnEvent(topic string, event domain.Event)
	OnConnectionChange(topic string, connected bool)
}

type StreamMetrics interface {
	FrameReceived(topic string, kind string)
	EventDispatched(topic string, name domain.EventName)
	DecodeFailed(topic string)
	StateChanged(topic string, state domain.ConnectionState)
	ReconnectScheduled(topic string)
}

type NopStreamMetrics struct{}

func (NopStreamMetrics) FrameReceived(string, string)                {}
func (NopStreamMetrics) EventDispatched(string, domain.EventName)    {}
func (NopStreamMetrics) DecodeFailed(string)                         {}
func (NopStreamMetrics) StateChanged(string, domain.ConnectionState) {}
func (NopStreamMetrics) ReconnectScheduled(string)                   {}
