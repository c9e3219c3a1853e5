// Package ratelimit caps how many device actions run inside a rolling
// window.
//
// Instagram throttles accounts that act too fast, so every follow, check
// and unfollow consumes a slot from a shared hourly budget before it
// touches the device.
//
// Usage:
//
//	// at most 20 actions per hour
//	limiter := ratelimit.NewSlidingWindow(20, time.Hour)
//
//	if err := limiter.Wait(ctx); err != nil {
//	    return err // cancelled while waiting
//	}
//	// proceed with the action
package ratelimit
