// Package cache keeps one built index per collection.
//
// A miss triggers a single build shared by every concurrent caller.
// Invalidate bumps the collection's generation: builds started under an
// older generation are handed to their waiters but never stored, and the
// next call starts a fresh build. Distinct collections build in parallel,
// bounded only by the optional resource.Controller.
package cache
