package batch

import (
	"context"
	"sort"
	"sync"
	"time"
)

// =============================================================================
// SLIDING WINDOW
// =============================================================================

// slidingWindow is a sliding window counter using sub-buckets for accuracy.
// Thread-safe.
type slidingWindow struct {
	windowSeconds int
	bucketCount   int
	buckets       map[int64]int
	mu            sync.Mutex
}

func newSlidingWindow(windowSeconds int) *slidingWindow {
	return &slidingWindow{
		windowSeconds: windowSeconds,
		bucketCount:   10,
		buckets:       make(map[int64]int),
	}
}

// record counts a request at the given timestamp (seconds) and prunes
// expired buckets.
func (w *slidingWindow) record(timestamp float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	bucketSize := float64(w.windowSeconds) / float64(w.bucketCount)
	currentBucket := int64(timestamp / bucketSize)

	minBucket := currentBucket - int64(w.bucketCount)
	for b := range w.buckets {
		if b < minBucket {
			delete(w.buckets, b)
		}
	}

	w.buckets[currentBucket]++
}

// count returns the number of requests inside the window.
func (w *slidingWindow) count(timestamp float64) int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.countLocked(timestamp)
}

func (w *slidingWindow) countLocked(timestamp float64) int {
	bucketSize := float64(w.windowSeconds) / float64(w.bucketCount)
	currentBucket := int64(timestamp / bucketSize)
	minBucket := currentBucket - int64(w.bucketCount)

	count := 0
	for bucket, c := range w.buckets {
		if bucket >= minBucket {
			count += c
		}
	}
	return count
}

// timeUntilSlot calculates seconds until a request would fit under the limit.
func (w *slidingWindow) timeUntilSlot(timestamp float64, limit int) float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.countLocked(timestamp) < limit {
		return 0
	}

	bucketSize := float64(w.windowSeconds) / float64(w.bucketCount)
	currentBucket := int64(timestamp / bucketSize)
	minBucket := currentBucket - int64(w.bucketCount)

	type entry struct {
		bucket int64
		count  int
	}
	var valid []entry
	for b, c := range w.buckets {
		if b >= minBucket {
			valid = append(valid, entry{b, c})
		}
	}
	sort.Slice(valid, func(i, j int) bool { return valid[i].bucket < valid[j].bucket })

	excess := w.countLocked(timestamp) - limit + 1
	expired := 0
	for _, e := range valid {
		expired += e.count
		if expired >= excess {
			bucketEnd := float64(e.bucket+1) * bucketSize
			wait := bucketEnd - timestamp + float64(w.windowSeconds)
			if wait < 0 {
				return 0
			}
			return wait
		}
	}
	return float64(w.windowSeconds)
}

// =============================================================================
// PACER
// =============================================================================

// Pacer throttles batch item starts. Two modes compose:
//   - a fixed delay applied before every start (Delay)
//   - a requests-per-minute ceiling enforced with a sliding window
//
// The zero limit disables the corresponding mode. Safe for concurrent use.
type Pacer struct {
	delay     time.Duration
	perMinute int
	window    *slidingWindow
	sleep     func(context.Context, time.Duration) error
}

// NewPacer creates a pacer. delay <= 0 and perMinute <= 0 each disable their
// mode; a pacer with both disabled is a no-op.
func NewPacer(delay time.Duration, perMinute int) *Pacer {
	p := &Pacer{
		delay:     delay,
		perMinute: perMinute,
		sleep:     sleepCtx,
	}
	if perMinute > 0 {
		p.window = newSlidingWindow(60)
	}
	return p
}

// Wait blocks until the next item may start, honoring context cancellation.
// On success the start is recorded against the rate window.
func (p *Pacer) Wait(ctx context.Context) error {
	if p.delay > 0 {
		if err := p.sleep(ctx, p.delay); err != nil {
			return err
		}
	}

	if p.window != nil {
		for {
			now := float64(time.Now().UnixNano()) / 1e9
			wait := p.window.timeUntilSlot(now, p.perMinute)
			if wait <= 0 {
				p.window.record(now)
				return nil
			}
			if err := p.sleep(ctx, time.Duration(wait*float64(time.Second))); err != nil {
				return err
			}
		}
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
