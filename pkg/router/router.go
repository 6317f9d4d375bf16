// Package router fans a single stream of values out to named subscribers.
package router

import (
	"fmt"
	"log/slog"
	"sync"
)

// Fan copies every input value to each subscriber. Subscriber channels hold
// one value; a subscriber that falls behind only sees the newest value.
type Fan[T any] struct {
	debug   bool
	name    string
	mu      sync.Mutex
	input   <-chan T
	outputs map[string]chan T
}

func NewFan[T any](name string, input <-chan T) *Fan[T] {
	return &Fan[T]{
		name:    name,
		input:   input,
		outputs: make(map[string]chan T),
	}
}

func (f *Fan[T]) SetDebug(debug bool) {
	f.debug = debug
}

func (f *Fan[T]) Subscribe(client string) (<-chan T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.outputs[client]; ok {
		return nil, fmt.Errorf("fan %s: client %s already subscribed", f.name, client)
	}
	if f.debug {
		slog.Debug("subscribing to fan", "fan", f.name, "client", client, "module", "router")
	}
	c := make(chan T, 1)
	f.outputs[client] = c
	return c, nil
}

// Run distributes values until the input is closed, then closes every
// subscriber channel.
func (f *Fan[T]) Run() error {
	for v := range f.input {
		f.mu.Lock()
		for k, ch := range f.outputs {
			if f.debug {
				slog.Debug("fan sending value", "fan", f.name, "subscriber", k, "value", v, "module", "router")
			}
			send(ch, v)
		}
		f.mu.Unlock()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	for k, ch := range f.outputs {
		close(ch)
		delete(f.outputs, k)
	}
	return nil
}

func send[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}
