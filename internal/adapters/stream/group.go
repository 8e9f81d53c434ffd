package stream

import "github.com/bnema/pttsync/internal/domain"

// Group starts and stops independent topic connections together.
type Group struct {
	conns []*Connection
}

func NewGroup(conns ...*Connection) *Group {
	return &Group{conns: conns}
}

func (g *Group) Start() {
	for _, conn := range g.conns {
		conn.Start()
	}
}

func (g *Group) Stop() {
	for _, conn := range g.conns {
		conn.Stop()
	}
}

func (g *Group) States() map[string]domain.ConnectionState {
	states := make(map[string]domain.ConnectionState, len(g.conns))
	for _, conn := range g.conns {
		states[conn.Topic()] = conn.State()
	}
	return states
}
