// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package relayer

import (
	"context"
	"fmt"
	"time"

	"github.com/luxfi/fhesurvey"
	"github.com/luxfi/log"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultSDKURL       = "https://cdn.zama.ai/relayer-sdk-js/0.2.0/relayer-sdk-js.umd.cjs"
	DefaultPollInterval = 100 * time.Millisecond
	DefaultMaxAttempts  = 50
)

type LoaderConfig struct {
	URL          string
	PollInterval time.Duration
	MaxAttempts  int
}

func (c *LoaderConfig) applyDefaults() {
	if c.URL == "" {
		c.URL = DefaultSDKURL
	}
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
}

// Loader makes the SDK object available in the namespace. Overlapping Load
// calls share a single attempt.
type Loader struct {
	logger   log.Logger
	ns       *Namespace
	injector Injector
	cfg      LoaderConfig
	group    singleflight.Group
}

func NewLoader(logger log.Logger, ns *Namespace, injector Injector, cfg LoaderConfig) *Loader {
	cfg.applyDefaults()
	return &Loader{
		logger:   logger,
		ns:       ns,
		injector: injector,
		cfg:      cfg,
	}
}

func (l *Loader) URL() string {
	return l.cfg.URL
}

// IsLoaded reports whether the namespace holds a valid SDK object.
func (l *Loader) IsLoaded() bool {
	return l.ns.Check(GlobalName, IsRelayerSDK)
}

// Load is a no-op if the SDK is already loaded. A caller whose ctx ends
// early gets fhesurvey.ErrCancelled while the shared attempt carries on.
func (l *Loader) Load(ctx context.Context) error {
	if l.IsLoaded() {
		return nil
	}

	loadCtx := context.WithoutCancel(ctx)
	ch := l.group.DoChan(l.cfg.URL, func() (interface{}, error) {
		return nil, l.load(loadCtx)
	})
	select {
	case <-ctx.Done():
		return fhesurvey.CheckCancelled(ctx)
	case res := <-ch:
		return res.Err
	}
}

func (l *Loader) load(ctx context.Context) error {
	if _, present := l.ns.Get(GlobalName); present {
		if l.IsLoaded() {
			return nil
		}
		return fhesurvey.Errorf(fhesurvey.CodeSDKInvalid, "namespace does not contain a valid %s object", GlobalName)
	}

	url := l.cfg.URL
	if l.injector.Exists(url) {
		l.logger.Debug("SDK source already injected, waiting", "url", url)
		return l.poll(ctx)
	}

	l.logger.Info("Loading relayer SDK", "url", url)
	if err := <-l.injector.Inject(ctx, url); err != nil {
		return fhesurvey.NewError(
			fhesurvey.CodeSDKLoad,
			fmt.Sprintf("failed to load relayer SDK from %s", url),
			err,
		)
	}
	return l.poll(ctx)
}

// poll waits for the SDK object to appear, since a module may publish it
// after its load event.
func (l *Loader) poll(ctx context.Context) error {
	ticker := time.NewTicker(l.cfg.PollInterval)
	defer ticker.Stop()

	for attempt := 1; attempt <= l.cfg.MaxAttempts; attempt++ {
		if l.IsLoaded() {
			l.logger.Info("Relayer SDK loaded", "url", l.cfg.URL, "attempts", attempt)
			return nil
		}
		select {
		case <-ctx.Done():
			return fhesurvey.CheckCancelled(ctx)
		case <-ticker.C:
		}
	}
	if l.IsLoaded() {
		return nil
	}
	return fhesurvey.Errorf(
		fhesurvey.CodeSDKLoadTimeout,
		"relayer SDK has been loaded from %s, however, the %s object is invalid after %d attempts",
		l.cfg.URL,
		GlobalName,
		l.cfg.MaxAttempts,
	)
}
