// Package resource implements the Controller for memory and IO limits.
//
// The Controller manages two resource types:
//
//   - Memory: track and limit the bytes held by row tables and string pools
//     (non-blocking, fail-fast)
//   - IO: rate-limit bytes read on load and written on save
//
// # Memory Management
//
// Memory tracking uses a weighted semaphore for hard limits and an atomic
// counter for usage. AcquireMemory is non-blocking and returns immediately
// with ErrMemoryLimitExceeded if the limit would be exceeded:
//
//	rc := resource.NewController(resource.Config{
//	    MemoryLimitBytes: 64 << 20,
//	})
//
//	if err := rc.AcquireMemory(4096); err != nil {
//	    // ErrMemoryLimitExceeded
//	}
//	defer rc.ReleaseMemory(4096)
//
// # IO Rate Limiting
//
// Token bucket limiter. Requests larger than the bucket are split into
// burst-sized waits, so a single large file never fails the limiter:
//
//	rc := resource.NewController(resource.Config{
//	    IOLimitBytesPerSec: 16 << 20,
//	})
//
//	w := resource.NewRateLimitedWriter(ctx, file, rc)
//	r := resource.NewRateLimitedReader(ctx, file, rc)
//
// # Nil Safety
//
// All methods handle a nil Controller gracefully; they become no-ops.
package resource
