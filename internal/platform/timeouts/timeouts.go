// Package timeouts defines shared timeout constants used across livegate.
// Keeping them in one place makes the outbound call budgets discoverable.
package timeouts

import "time"

// ChainRead caps one on-chain access check, including both contract reads.
// Exceeding it is treated as a failed read, never as a grant.
const ChainRead = 10 * time.Second

// ProviderRequest caps one call to the live-room provider.
const ProviderRequest = 10 * time.Second

// ClientRequest caps each HTTP call the join sequencer makes to livegate.
const ClientRequest = 30 * time.Second

// Redis caps a single cache or rate-limit round trip.
const Redis = 2 * time.Second

// ReadHeader limits how long an HTTP server waits for request headers.
const ReadHeader = 5 * time.Second

// Shutdown limits how long an HTTP server waits for in-flight requests
// during graceful shutdown.
const Shutdown = 5 * time.Second
