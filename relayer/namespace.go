// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import "sync"

// Namespace is the shared global object space that loaded SDK modules
// install themselves into.
type Namespace struct {
	lock    sync.RWMutex
	globals map[string]any
}

func NewNamespace() *Namespace {
	return &Namespace{globals: make(map[string]any)}
}

func (n *Namespace) Get(name string) (any, bool) {
	n.lock.RLock()
	defer n.lock.RUnlock()

	v, ok := n.globals[name]
	return v, ok
}

func (n *Namespace) Set(name string, v any) {
	n.lock.Lock()
	defer n.lock.Unlock()

	n.globals[name] = v
}

func (n *Namespace) Delete(name string) {
	n.lock.Lock()
	defer n.lock.Unlock()

	delete(n.globals, name)
}

// SetField sets field on the object stored under name. It returns false if
// name does not hold an object.
func (n *Namespace) SetField(name, field string, v any) bool {
	n.lock.Lock()
	defer n.lock.Unlock()

	obj, ok := n.globals[name].(map[string]any)
	if !ok {
		return false
	}
	obj[field] = v
	return true
}

// Field returns field of the object stored under name.
func (n *Namespace) Field(name, field string) (any, bool) {
	n.lock.RLock()
	defer n.lock.RUnlock()

	obj, ok := n.globals[name].(map[string]any)
	if !ok {
		return nil, false
	}
	v, ok := obj[field]
	return v, ok
}

// Check applies pred to the value stored under name while holding the lock,
// so pred may inspect object fields safely.
func (n *Namespace) Check(name string, pred func(any) bool) bool {
	n.lock.RLock()
	defer n.lock.RUnlock()

	v, ok := n.globals[name]
	if !ok {
		return false
	}
	return pred(v)
}
