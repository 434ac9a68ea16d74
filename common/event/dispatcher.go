package event

import "sync"

type tlsEventDispatcher struct {
	mu        sync.RWMutex
	receivers []TLSEventReceiver
}

// NewTLSEventDispatcher returns a TLSEventDispatcher with no listeners.
func NewTLSEventDispatcher() TLSEventDispatcher {
	return &tlsEventDispatcher{}
}

func (d *tlsEventDispatcher) AddTLSEventListener(receiver TLSEventReceiver) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.receivers = append(d.receivers, receiver)
}

func (d *tlsEventDispatcher) RemoveTLSEventListener(receiver TLSEventReceiver) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, r := range d.receivers {
		if r == receiver {
			d.receivers = append(d.receivers[:i], d.receivers[i+1:]...)
			return
		}
	}
}

func (d *tlsEventDispatcher) OnNewTLSEvent(event TLSEvent) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, r := range d.receivers {
		r.OnNewTLSEvent(event)
	}
}
