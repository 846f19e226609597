// Package redisqueue implements a mailqueue.RecoverableTransport on top of
// Redis, for deployments where workers do not share a filesystem.
//
// The key layout mirrors the file spool. For an item with stem <id>:
//
//	{prefix}:<id>.message          queued message
//	{prefix}:<id>.message.sending  claimed message
//	{prefix}:<id>.message.failure  failure record of the last attempt
//	{prefix}:touched               sorted set of stems scored by last claim time
//
// The hash tag keeps every key of one queue in the same cluster slot, which
// RENAMENX requires. A claim is a single RENAMENX from the queued key to the
// sending key; a retry of a failed item is claimed by whoever deletes its
// failure record.
package redisqueue
