// Package sse provides Server-Sent Events client management for editor
// status streaming.
package sse

import "sync"

// Client watches one topic, e.g. an editing context key.
type Client struct {
	Msg   chan string
	Topic string
}

type Clients struct {
	clients map[*Client]bool
	mu      sync.RWMutex
}

func NewClients() *Clients {
	return &Clients{
		clients: make(map[*Client]bool),
	}
}

func (s *Clients) Add(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client] = true
}

func (s *Clients) Delete(client *Client) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, client)
	close(client.Msg)
}

// Broadcast sends msg to every client watching topic. Slow clients are
// skipped rather than blocking the broadcaster.
func (s *Clients) Broadcast(topic, msg string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for client := range s.clients {
		if client.Topic == topic {
			select {
			case client.Msg <- msg:
			default:
			}
		}
	}
}
