package service

import (
	"Zyncrate/config"
	"Zyncrate/internal/lifecycle"
	"Zyncrate/model"
	"Zyncrate/utils"
	"context"
	"errors"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"
)

var (
	ErrUnknownSetting = errors.New("unknown setting")
	ErrInvalidSetting = errors.New("invalid setting value")
)

// SettingStore is the settings table.
type SettingStore interface {
	All(ctx context.Context) (map[string]string, error)
	Upsert(ctx context.Context, key, value string) error
}

// PolicyResolver computes the effective plan limits for a request: the
// configured base with settings-table overrides applied.
type PolicyResolver struct {
	base     config.Limits
	settings SettingStore
	cache    utils.Cache
	cacheTTL time.Duration
}

// NewPolicyResolver creates a resolver. cache may be nil.
func NewPolicyResolver(base config.Limits, settings SettingStore, cache utils.Cache, cacheTTL time.Duration) *PolicyResolver {
	return &PolicyResolver{base: base, settings: settings, cache: cache, cacheTTL: cacheTTL}
}

// Limits returns the effective limits. Override failures fall back to the
// base values.
func (p *PolicyResolver) Limits(ctx context.Context) config.Limits {
	limits := p.base
	overrides, err := p.overrides(ctx)
	if err != nil {
		log.Printf("[policy] load overrides failed, using defaults: %v", err)
		return limits
	}
	for key, value := range overrides {
		if err := applyOverride(&limits, key, value); err != nil {
			log.Printf("[policy] ignore setting %s=%q: %v", key, value, err)
		}
	}
	return limits
}

// LimitsFor picks the plan matching the caller.
func (p *PolicyResolver) LimitsFor(ctx context.Context, claims *utils.Claims) lifecycle.Limits {
	limits := p.Limits(ctx)
	plan := limits.Guest
	if claims.IsUser() {
		plan = limits.UserFree
		if claims.Plan == model.PlanPro {
			plan = limits.UserPro
		}
	}
	return lifecycle.Limits{
		MaxUploadSizeBytes: plan.MaxUploadSizeMB * 1024 * 1024,
		MaxExpiryHours:     plan.MaxExpiryHours,
	}
}

// Set validates and stores one override, then drops the cached copy.
func (p *PolicyResolver) Set(ctx context.Context, key, value string) error {
	probe := p.base
	if err := applyOverride(&probe, key, value); err != nil {
		return err
	}
	if err := p.settings.Upsert(ctx, key, value); err != nil {
		return err
	}
	if p.cache != nil {
		if err := p.cache.Delete(ctx, utils.CacheKeySettings); err != nil {
			log.Printf("[policy] invalidate cache: %v", err)
		}
	}
	return nil
}

func (p *PolicyResolver) overrides(ctx context.Context) (map[string]string, error) {
	var cached map[string]string
	if p.cache != nil {
		if err := p.cache.Get(ctx, utils.CacheKeySettings, &cached); err == nil {
			return cached, nil
		} else if !errors.Is(err, utils.ErrCacheMiss) {
			log.Printf("[policy] cache read: %v", err)
		}
	}
	fresh, err := p.settings.All(ctx)
	if err != nil {
		return nil, err
	}
	if p.cache != nil {
		if err := p.cache.Set(ctx, utils.CacheKeySettings, fresh, p.cacheTTL); err != nil {
			log.Printf("[policy] cache write: %v", err)
		}
	}
	return fresh, nil
}

// normalizeSegment accepts both snake_case and camelCase path segments.
func normalizeSegment(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", ""))
}

// applyOverride sets limits.<plan>.<field> from a dotted key.
func applyOverride(limits *config.Limits, key, value string) error {
	parts := strings.Split(key, ".")
	if len(parts) != 3 || normalizeSegment(parts[0]) != "limits" {
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	var plan *config.PlanLimits
	switch normalizeSegment(parts[1]) {
	case "guest":
		plan = &limits.Guest
	case "userfree":
		plan = &limits.UserFree
	case "userpro":
		plan = &limits.UserPro
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil || n <= 0 {
		return fmt.Errorf("%w: %s wants a positive integer, got %q", ErrInvalidSetting, key, value)
	}
	switch normalizeSegment(parts[2]) {
	case "maxuploadsizemb":
		plan.MaxUploadSizeMB = n
	case "maxexpiryhours":
		plan.MaxExpiryHours = int(n)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownSetting, key)
	}
	return nil
}
