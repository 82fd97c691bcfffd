package resource

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxConcurrentBuilds caps index builds running at the same time across
	// all collections. If 0, builds are not capped.
	MaxConcurrentBuilds int64

	// BuildsPerSecond limits how fast new builds may start. If 0, unlimited.
	BuildsPerSecond float64

	// MemoryLimitBytes is the hard limit for cached index memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// IOLimitBytesPerSec is the maximum snapshot write throughput.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages resources shared by all collections.
type Controller struct {
	cfg Config

	// Builds
	buildSem     *semaphore.Weighted // nil if unlimited
	buildLimiter *rate.Limiter       // nil if unlimited
	inFlight     atomic.Int64

	// Memory
	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	// IO
	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MaxConcurrentBuilds > 0 {
		c.buildSem = semaphore.NewWeighted(cfg.MaxConcurrentBuilds)
	}

	if cfg.BuildsPerSecond > 0 {
		c.buildLimiter = rate.NewLimiter(rate.Limit(cfg.BuildsPerSecond), max(1, int(cfg.BuildsPerSecond)))
	}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// Config returns the limits the controller was created with.
func (c *Controller) Config() Config {
	if c == nil {
		return Config{}
	}
	return c.cfg
}

// AcquireBuild waits for the build rate limit and a build slot.
// Every successful call must be paired with ReleaseBuild.
func (c *Controller) AcquireBuild(ctx context.Context) error {
	if c == nil {
		return nil
	}

	if c.buildLimiter != nil {
		if err := c.buildLimiter.Wait(ctx); err != nil {
			return err
		}
	}

	if c.buildSem != nil {
		if err := c.buildSem.Acquire(ctx, 1); err != nil {
			return err
		}
	}

	c.inFlight.Add(1)

	return nil
}

// TryAcquireBuild reserves a build slot without blocking. The rate limit is
// consulted but never waited on.
func (c *Controller) TryAcquireBuild() bool {
	if c == nil {
		return true
	}

	if c.buildSem != nil && !c.buildSem.TryAcquire(1) {
		return false
	}

	if c.buildLimiter != nil && !c.buildLimiter.Allow() {
		if c.buildSem != nil {
			c.buildSem.Release(1)
		}
		return false
	}

	c.inFlight.Add(1)

	return true
}

// ReleaseBuild releases a build slot.
func (c *Controller) ReleaseBuild() {
	if c == nil {
		return
	}

	c.inFlight.Add(-1)

	if c.buildSem != nil {
		c.buildSem.Release(1)
	}
}

// BuildsInFlight returns the number of builds holding a slot.
func (c *Controller) BuildsInFlight() int64 {
	if c == nil {
		return 0
	}
	return c.inFlight.Load()
}

// TryAcquireMemory attempts to reserve memory without blocking.
// Returns true if acquired, false if limit would be exceeded.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}

	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return false
		}
	}

	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the current memory usage in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}

	// WaitN rejects requests above the burst size.
	burst := c.ioLimiter.Burst()
	for bytes > burst {
		if err := c.ioLimiter.WaitN(ctx, burst); err != nil {
			return err
		}
		bytes -= burst
	}

	return c.ioLimiter.WaitN(ctx, bytes)
}
