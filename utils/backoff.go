// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package utils

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/luxfi/log"
)

// WithRetriesTimeout uses an exponential backoff to run the operation until it
// succeeds, the timeout limit has been reached or ctx is done.
// Errors wrapped with backoff.Permanent stop the retries immediately.
func WithRetriesTimeout(
	ctx context.Context,
	logger log.Logger,
	operation backoff.Operation,
	timeout time.Duration,
	name string,
) error {
	expBackOff := backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(250*time.Millisecond),
		backoff.WithMaxElapsedTime(timeout),
	)
	notify := func(err error, next time.Duration) {
		logger.Debug("operation failed, retrying...",
			"operation", name,
			"next", next,
			log.Err(err),
		)
	}
	return backoff.RetryNotify(operation, backoff.WithContext(expBackOff, ctx), notify)
}
