package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apperrors "github.com/siu-labs/livegate/internal/platform/errors"
	"github.com/siu-labs/livegate/internal/platform/timeouts"
)

var tracer = otel.Tracer("github.com/siu-labs/livegate/internal/services/live/chain")

// Config selects the chain and access policy for a Checker.
type Config struct {
	// Chain is the network name; empty selects DefaultNetwork.
	Chain string
	// RPCURL overrides the network's public endpoint.
	RPCURL string
	// AllowManagers enables the lock-manager bypass.
	AllowManagers bool
	// Timeout bounds one whole check. Zero uses timeouts.ChainRead.
	Timeout time.Duration
}

// Decision is the outcome of one successful check.
type Decision struct {
	Valid     bool
	IsManager bool
}

// Grants reports whether the decision admits the wallet.
func (d Decision) Grants(allowManagers bool) bool {
	return d.Valid || (allowManagers && d.IsManager)
}

// CacheKey identifies one cached decision.
type CacheKey struct {
	Chain string
	Lock  string
	Owner string
}

// String renders the key in a form usable by external stores.
func (k CacheKey) String() string {
	return k.Chain + ":" + strings.ToLower(k.Lock) + ":" + strings.ToLower(k.Owner)
}

// DecisionCache stores successful decisions for a short time. Get errors are
// treated as misses.
type DecisionCache interface {
	Get(ctx context.Context, key CacheKey) (Decision, bool, error)
	Set(ctx context.Context, key CacheKey, decision Decision) error
}

// Checker reads key ownership and lock-manager status.
type Checker struct {
	chainName     string
	rpcURL        string
	rpcConfigured bool
	network       Network
	networkErr    error
	allowManagers bool
	timeout       time.Duration
	dial          Dialer
	cache         DecisionCache
	logf          func(string, ...any)
}

// Option customizes a Checker.
type Option func(*Checker)

// WithDialer replaces the go-ethereum dialer.
func WithDialer(dial Dialer) Option {
	return func(c *Checker) {
		if dial != nil {
			c.dial = dial
		}
	}
}

// WithCache enables decision caching.
func WithCache(cache DecisionCache) Option {
	return func(c *Checker) {
		c.cache = cache
	}
}

// WithLogf sets the logger used for cache failures.
func WithLogf(logf func(string, ...any)) Option {
	return func(c *Checker) {
		if logf != nil {
			c.logf = logf
		}
	}
}

// NewChecker builds a Checker. An unknown chain name is not rejected here;
// every check against it fails closed with CHAIN_READ_FAILED.
func NewChecker(cfg Config, opts ...Option) *Checker {
	c := &Checker{
		chainName:     strings.ToLower(strings.TrimSpace(cfg.Chain)),
		rpcURL:        strings.TrimSpace(cfg.RPCURL),
		allowManagers: cfg.AllowManagers,
		timeout:       cfg.Timeout,
		dial:          DialEthereum,
		logf:          func(string, ...any) {},
	}
	if c.chainName == "" {
		c.chainName = DefaultNetwork
	}
	c.rpcConfigured = c.rpcURL != ""
	if c.timeout <= 0 {
		c.timeout = timeouts.ChainRead
	}
	network, ok := LookupNetwork(c.chainName)
	if !ok {
		c.networkErr = fmt.Errorf("unsupported chain %q (supported: %s)", c.chainName, strings.Join(NetworkNames(), ", "))
	} else {
		c.network = network
		if c.rpcURL == "" {
			c.rpcURL = network.DefaultRPCURL
		}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ChainName returns the resolved chain name.
func (c *Checker) ChainName() string {
	return c.chainName
}

// RPCConfigured reports whether an explicit RPC URL was supplied.
func (c *Checker) RPCConfigured() bool {
	return c.rpcConfigured
}

// AllowManagers reports whether the lock-manager bypass is enabled.
func (c *Checker) AllowManagers() bool {
	return c.allowManagers
}

// Check validates both addresses, confirms the endpoint serves the configured
// chain, then reads the lock. The manager read only happens when bypass is
// enabled and the key read was negative.
func (c *Checker) Check(ctx context.Context, lockAddress, ownerAddress string) (Decision, error) {
	lock, err := ParseAddress("lockAddress", lockAddress)
	if err != nil {
		return Decision{}, err
	}
	owner, err := ParseAddress("ownerAddress", ownerAddress)
	if err != nil {
		return Decision{}, err
	}

	ctx, span := tracer.Start(ctx, "chain.Check")
	defer span.End()
	span.SetAttributes(
		attribute.String("chain", c.chainName),
		attribute.String("lock", lock.Hex()),
	)

	key := CacheKey{Chain: c.chainName, Lock: lock.Hex(), Owner: owner.Hex()}
	if c.cache != nil {
		cached, ok, err := c.cache.Get(ctx, key)
		if err != nil {
			c.logf("decision cache get %s: %v", key, err)
		} else if ok {
			span.SetAttributes(attribute.Bool("cache_hit", true))
			return cached, nil
		}
	}

	decision, err := c.read(ctx, lock, owner)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "chain read failed")
		return Decision{}, err
	}
	span.SetAttributes(
		attribute.Bool("valid", decision.Valid),
		attribute.Bool("manager", decision.IsManager),
	)

	if c.cache != nil {
		if err := c.cache.Set(ctx, key, decision); err != nil {
			c.logf("decision cache set %s: %v", key, err)
		}
	}
	return decision, nil
}

func (c *Checker) read(ctx context.Context, lock, owner common.Address) (Decision, error) {
	if c.networkErr != nil {
		return Decision{}, chainReadError(c.networkErr)
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	reader, err := c.dial(ctx, c.rpcURL)
	if err != nil {
		return Decision{}, chainReadError(err)
	}
	defer reader.Close()

	if err := c.verifyChainID(ctx, reader); err != nil {
		return Decision{}, chainReadError(err)
	}
	valid, err := reader.HasValidKey(ctx, lock, owner)
	if err != nil {
		return Decision{}, chainReadError(err)
	}
	decision := Decision{Valid: valid}
	if !valid && c.allowManagers {
		manager, err := reader.IsLockManager(ctx, lock, owner)
		if err != nil {
			return Decision{}, chainReadError(err)
		}
		decision.IsManager = manager
	}
	return decision, nil
}

// verifyChainID rejects an endpoint serving a different chain than configured.
func (c *Checker) verifyChainID(ctx context.Context, reader LockReader) error {
	id, err := reader.ChainID(ctx)
	if err != nil {
		return fmt.Errorf("read chain id: %w", err)
	}
	want := big.NewInt(c.network.ChainID)
	if id == nil || id.Cmp(want) != 0 {
		return fmt.Errorf("rpc chain id %v does not match %s (%d)", id, c.network.Name, c.network.ChainID)
	}
	return nil
}

func chainReadError(cause error) error {
	return apperrors.Wrap(apperrors.CodeChainReadFailed, fmt.Sprintf("chain read failed: %v", cause), cause)
}
