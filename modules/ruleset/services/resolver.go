package services

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/asoforge/asoforge/modules/ruleset/domain/ports"
	"github.com/asoforge/asoforge/modules/ruleset/domain/types"
)

const (
	// BaseScopeKey is the scope key persisted base-layer records live
	// under.
	BaseScopeKey = "global"

	DefaultLoadTimeout = 2 * time.Second
)

var errResolverStoreMissing = errors.New("RULESET_STORE_MISSING")

// ResolveRequest identifies the context a merged ruleset is resolved for.
// DetectionConfidence travels with the request but does not gate anything
// yet (no blocking threshold is specified).
type ResolveRequest struct {
	Vertical            string
	Market              string
	OrganizationID      string
	AppID               string
	DetectionConfidence float64
}

func (r ResolveRequest) scope() types.Scope {
	return types.Scope{
		Vertical:       r.Vertical,
		Market:         r.Market,
		OrganizationID: r.OrganizationID,
		AppID:          r.AppID,
	}
}

type ResolverOptions struct {
	Store ports.OverrideStore
	Cache *Cache
	Log   *zap.Logger

	// OverridesEnabled gates whether persisted overrides are consulted
	// at all. Off means every request resolves to the code-defined base.
	OverridesEnabled bool

	// LoadTimeout bounds each store call; on expiry the request falls
	// back to the code base instead of failing.
	LoadTimeout time.Duration
}

// Resolver is the loading pipeline: cache check, per-layer load,
// normalize, merge, stamp, cache write. It is the sole entry point the
// scoring pipeline uses to obtain an active ruleset.
type Resolver struct {
	store       ports.OverrideStore
	cache       *Cache
	log         *zap.Logger
	enabled     bool
	loadTimeout time.Duration
	codeBase    types.RuleSet
}

func NewResolver(opts ResolverOptions) (*Resolver, error) {
	base, err := BaseRuleSet()
	if err != nil {
		return nil, err
	}
	if opts.OverridesEnabled && opts.Store == nil {
		return nil, errResolverStoreMissing
	}

	cache := opts.Cache
	if cache == nil {
		cache = NewCache(DefaultCacheTTL, DefaultCacheMaxEntries)
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	timeout := opts.LoadTimeout
	if timeout <= 0 {
		timeout = DefaultLoadTimeout
	}

	return &Resolver{
		store:       opts.Store,
		cache:       cache,
		log:         log,
		enabled:     opts.OverridesEnabled,
		loadTimeout: timeout,
		codeBase:    base,
	}, nil
}

// ActiveRuleSet returns the effective ruleset for the request scope.
// It never fails for business-data reasons: store errors and timeouts
// degrade to the code-defined base, which is logged and not cached so the
// next request retries the store.
func (r *Resolver) ActiveRuleSet(ctx context.Context, req ResolveRequest) types.MergedRuleSet {
	scope := req.scope()

	if cached, ok := r.cache.Get(scope); ok {
		r.log.Debug("ruleset cache hit", zap.String("scope", scope.CacheKey()))
		return cached
	}

	if !r.enabled || r.store == nil {
		merged := r.codeOnly(scope, req.DetectionConfidence)
		r.cache.Set(scope, merged)
		return merged
	}

	merged, err := r.loadAndMerge(ctx, req, scope)
	if err != nil {
		r.log.Warn("override load failed, serving code base",
			zap.String("scope", scope.CacheKey()),
			zap.Error(err))
		return r.codeOnly(scope, req.DetectionConfidence)
	}

	r.cache.Set(scope, merged)
	return merged
}

// Invalidate drops every cache entry the scope covers and returns how
// many were removed.
func (r *Resolver) Invalidate(scope types.Scope) int {
	return r.cache.InvalidateScope(scope)
}

func (r *Resolver) CacheStats() CacheStats {
	return r.cache.Stats()
}

func (r *Resolver) codeOnly(scope types.Scope, confidence float64) types.MergedRuleSet {
	return Merge(LayerInputs{
		CodeBase:            &r.codeBase,
		DetectionConfidence: confidence,
	}, scope, BuildVersionInfo(LayerVersions{}))
}

type loadedLayer struct {
	rules   *types.RuleSet
	version *int64
}

func (r *Resolver) loadAndMerge(ctx context.Context, req ResolveRequest, scope types.Scope) (types.MergedRuleSet, error) {
	base, err := r.loadLayer(ctx, types.LayerBase, BaseScopeKey)
	if err != nil {
		return types.MergedRuleSet{}, err
	}

	var vertical, market, client loadedLayer
	if req.Vertical != "" {
		if vertical, err = r.loadLayer(ctx, types.LayerVertical, req.Vertical); err != nil {
			return types.MergedRuleSet{}, err
		}
	}
	if req.Market != "" {
		if market, err = r.loadLayer(ctx, types.LayerMarket, req.Market); err != nil {
			return types.MergedRuleSet{}, err
		}
	}
	if req.OrganizationID != "" {
		if client, err = r.loadLayer(ctx, types.LayerClient, clientScopeKey(req.OrganizationID, req.AppID)); err != nil {
			return types.MergedRuleSet{}, err
		}
	}

	versions := BuildVersionInfo(LayerVersions{
		Base:     base.version,
		Vertical: vertical.version,
		Market:   market.version,
		Client:   client.version,
	})

	merged := Merge(LayerInputs{
		CodeBase:            &r.codeBase,
		Base:                base.rules,
		Vertical:            vertical.rules,
		Market:              market.rules,
		Client:              client.rules,
		DetectionConfidence: req.DetectionConfidence,
	}, scope, versions)

	if len(merged.LeakWarnings) > 0 {
		r.log.Warn("hook pattern leak detected",
			zap.String("scope", scope.CacheKey()),
			zap.Strings("warnings", merged.LeakWarnings))
	}
	return merged, nil
}

func (r *Resolver) loadLayer(ctx context.Context, layer types.Layer, scopeKey string) (loadedLayer, error) {
	ctx, cancel := context.WithTimeout(ctx, r.loadTimeout)
	defer cancel()

	records, err := r.store.LoadOverrideRecords(ctx, layer, scopeKey, types.Kinds...)
	if err != nil {
		return loadedLayer{}, err
	}
	if len(records) == 0 {
		return loadedLayer{}, nil
	}

	rules, diags := Normalize(records)
	for _, d := range diags {
		r.log.Warn("override record skipped or adjusted",
			zap.String("layer", string(layer)),
			zap.String("scope_key", scopeKey),
			zap.String("kind", string(d.Kind)),
			zap.String("key", d.Key),
			zap.String("reason", d.Reason))
	}

	version, err := r.store.LayerVersion(ctx, layer, scopeKey)
	if err != nil {
		return loadedLayer{}, err
	}
	return loadedLayer{rules: &rules, version: &version}, nil
}

func clientScopeKey(organizationID, appID string) string {
	if appID == "" {
		return organizationID
	}
	return organizationID + ":" + appID
}
