// Package chain decides whether a wallet may join a live session by reading
// Unlock Protocol lock contracts over JSON-RPC.
//
// Every check is a fresh, read-only call: a key check, then (only when manager
// bypass is enabled and the key check is negative) a lock-manager check. Any
// failure to read the chain is reported as CHAIN_READ_FAILED and never as a
// grant. An optional DecisionCache may short-circuit repeated reads, but only
// successful reads are ever stored.
package chain
