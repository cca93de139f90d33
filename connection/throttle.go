// Copyright © 2016 Abcum Ltd
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package connection

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/abcum/qld/protoerr"
	"github.com/abcum/qld/resultbuilder"
)

// maxWaiters bounds how many goroutines may be parked waiting for an
// admission permit at once; the maxWaiters-th caller (the 128th) fails
// fast instead of growing the queue further.
const maxWaiters = 128

// Factory builds one fresh Connection, e.g. by opening an engine.Handle
// against a tenant's database directory.
type Factory func() (Connection, error)

// Throttler is the admission gate every new Connection must pass
// through. It turns process-wide response-memory pressure into a
// semaphore unit cost, so that connections serving large results
// squeeze out room for themselves instead of being handed out for free
// alongside connections producing small ones.
type Throttler struct {
	sem      *semaphore.Weighted
	waiters  atomic.Int64
	maxUnits int64 // N
	timeout  time.Duration
	maxBytes int64 // M; 0 disables the pressure heuristic
	factory  Factory
}

// NewThrottler builds a Throttler admitting at most concurrency permits
// worth of connections at a time. A zero timeout means "wait forever".
func NewThrottler(concurrency int, timeout time.Duration, maxResponseBytes int64, factory Factory) *Throttler {
	return &Throttler{
		sem:      semaphore.NewWeighted(int64(concurrency)),
		maxUnits: int64(concurrency),
		timeout:  timeout,
		maxBytes: maxResponseBytes,
		factory:  factory,
	}
}

// unitsToTake maps the current global response-size gauge onto a permit
// cost: 16 units under high pressure, 4 under medium pressure, 1
// otherwise. A zero maxBytes disables the heuristic (always 1 unit).
func (t *Throttler) unitsToTake() int64 {
	if t.maxBytes <= 0 {
		return 1
	}
	r := resultbuilder.ResponseSize()
	switch {
	case r*2 > t.maxBytes:
		return 16
	case r*4 > t.maxBytes:
		return 4
	default:
		return 1
	}
}

// Create runs the full admission algorithm and, on success, returns a
// TrackedConnection wrapping a freshly built Connection plus the permit
// it was admitted under.
func (t *Throttler) Create(ctx context.Context) (*TrackedConnection, error) {
	units := t.unitsToTake()
	if units > t.maxUnits {
		units = t.maxUnits
	}

	if t.waiters.Add(1) >= maxWaiters {
		t.waiters.Add(-1)
		return nil, protoerr.ErrTooManyRequests
	}
	defer t.waiters.Add(-1)

	acquireCtx, cancel := t.boundedContext(ctx)
	defer cancel()

	if err := t.sem.Acquire(acquireCtx, units); err != nil {
		return nil, protoerr.ErrDbCreateTimeout
	}
	held := units

	// Re-sample pressure now that we hold a permit; a connection that
	// started under low pressure but whose admission coincided with a
	// burst of large responses elsewhere must top up before it's handed
	// out, keeping the high-pressure unit cost meaningful.
	if fresh := t.unitsToTake(); fresh > held {
		delta := fresh - held
		if delta > t.maxUnits-held {
			delta = t.maxUnits - held
		}
		topUpCtx, topUpCancel := t.boundedContext(ctx)
		err := t.sem.Acquire(topUpCtx, delta)
		topUpCancel()
		if err != nil {
			t.sem.Release(held)
			return nil, protoerr.ErrDbCreateTimeout
		}
		held += delta
	}

	conn, err := t.factory()
	if err != nil {
		t.sem.Release(held)
		return nil, err
	}

	return newTracked(conn, t.sem, held), nil
}

// boundedContext applies the throttler's configured acquisition timeout
// as a fresh deadline, independent of any earlier acquisition in the
// same Create call.
func (t *Throttler) boundedContext(parent context.Context) (context.Context, context.CancelFunc) {
	if t.timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, t.timeout)
}
