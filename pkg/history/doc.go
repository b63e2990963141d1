/*
Package history owns the conversation state of the bot.

The Manager wraps a ports.HistoryStore with the bounded-window policy
(2 entries per turn, MaxTurns turns), resolves which conversation a request
belongs to, and serializes turns of the same conversation when configured to.
Locks are reference counted per key and can be backed by a
ports.DistributedLocker when several replicas share a Redis store.
*/
package history
