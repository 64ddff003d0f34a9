// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
)

// Module installs an SDK into a Namespace, the way an executed script would.
type Module func(ctx context.Context, ns *Namespace) error

// Injector adds an SDK source to the process.
type Injector interface {
	// Exists reports whether url has already been injected.
	Exists(url string) bool
	// Inject starts loading url. The returned channel yields the load
	// outcome once: nil for a load event, an error for an error event.
	Inject(ctx context.Context, url string) <-chan error
}

var (
	_ Injector = (*ModuleInjector)(nil)
	_ Injector = (*HTTPInjector)(nil)
)

// ModuleInjector runs modules registered in-process by URL.
type ModuleInjector struct {
	ns *Namespace

	lock     sync.Mutex
	modules  map[string]Module
	injected map[string]struct{}
}

func NewModuleInjector(ns *Namespace) *ModuleInjector {
	return &ModuleInjector{
		ns:       ns,
		modules:  make(map[string]Module),
		injected: make(map[string]struct{}),
	}
}

// Register makes m the module served for url.
func (m *ModuleInjector) Register(url string, module Module) {
	m.lock.Lock()
	defer m.lock.Unlock()

	m.modules[url] = module
}

func (m *ModuleInjector) Exists(url string) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	_, ok := m.injected[url]
	return ok
}

func (m *ModuleInjector) Inject(ctx context.Context, url string) <-chan error {
	m.lock.Lock()
	m.injected[url] = struct{}{}
	module, ok := m.modules[url]
	m.lock.Unlock()

	done := make(chan error, 1)
	go func() {
		defer close(done)
		if !ok {
			done <- fmt.Errorf("no module registered for %s", url)
			return
		}
		done <- module(ctx, m.ns)
	}()
	return done
}

// HTTPInjector fetches the SDK source over HTTP before running the module
// registered for it. A fetch failure is reported as an error event.
type HTTPInjector struct {
	*ModuleInjector
	client *http.Client
}

func NewHTTPInjector(ns *Namespace, client *http.Client) *HTTPInjector {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPInjector{
		ModuleInjector: NewModuleInjector(ns),
		client:         client,
	}
}

func (h *HTTPInjector) Inject(ctx context.Context, url string) <-chan error {
	h.lock.Lock()
	h.injected[url] = struct{}{}
	h.lock.Unlock()

	done := make(chan error, 1)
	go func() {
		defer close(done)
		if err := h.fetch(ctx, url); err != nil {
			done <- err
			return
		}
		done <- <-h.ModuleInjector.Inject(ctx, url)
	}()
	return done
}

func (h *HTTPInjector) fetch(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	_, err = io.Copy(io.Discard, resp.Body)
	return err
}
