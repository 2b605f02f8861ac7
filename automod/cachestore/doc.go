// Component for deduplicating expensive image classification via a
// content-addressed, write-once result cache.
//
// Includes an interface and implementations using an append-only JSONL log
// and redis. Only binary content (images) is ever cached: text classification
// is always recomputed fresh, because text is effectively unique per item and
// caching it would mask model drift.
package cachestore
