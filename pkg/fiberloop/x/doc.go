// Package x collects derived concurrency primitives that are not part of
// the core fiberloop scheduler itself: each one is a thin composition of
// fiberloop.Signal and fiberloop.ThreadBridge, built entirely against the
// public fiberloop API rather than against any scheduler internals. This
// mirrors tinyio's own split between the small coroutine-handling core and
// its higher-level helpers (Lock, Semaphore, Barrier, as_completed, sleep,
// timeout), which the core deliberately does not know about.
package x
