// Package gate holds the optional shared state in front of the chain read:
// a short-lived decision cache and a per-owner rate limiter. Both come in an
// in-process flavor and a Redis flavor for multi-instance deployments.
package gate
