// Package results retains terminal task outcomes for a bounded time so callers
// can poll for them by task ID.
//
// Nothing is persisted; a Store is an in-process view that forgets outcomes
// once their retention TTL has passed.
package results
