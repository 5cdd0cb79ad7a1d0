// Package profile implements the agent profile registry: named agent
// configurations resolved from a layered lookup (process cache, optional
// Redis, YAML documents on disk) with write-through on every hit. The
// registry is the single mutation point for profiles; resolved profiles are
// treated as immutable by everything downstream.
package profile

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hupe1980/agentcrew/core"
	"github.com/hupe1980/agentcrew/logging"
	"github.com/redis/go-redis/v9"
	"gopkg.in/yaml.v3"
)

// Options configures the registry.
type Options struct {
	// Client enables the shared Redis layer between the process cache and
	// the profile directory. Nil means file-only operation.
	Client *redis.Client
	// CacheTTL bounds Redis entries written by the registry. Zero keeps
	// them until deleted.
	CacheTTL time.Duration
	// Logger receives resolution diagnostics.
	Logger logging.Logger
}

// Registry resolves profile names through cache, Redis and the profile
// directory, in that order. File hits are written through to Redis so other
// processes sharing the instance skip the disk read.
type Registry struct {
	dir    string
	client *redis.Client
	ttl    time.Duration
	logger logging.Logger

	mu    sync.RWMutex
	cache map[string]core.Profile
}

// NewRegistry creates a registry over the given profile directory.
func NewRegistry(dir string, optFns ...func(o *Options)) *Registry {
	opts := Options{Logger: logging.NoOpLogger{}}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Registry{
		dir:    dir,
		client: opts.Client,
		ttl:    opts.CacheTTL,
		logger: opts.Logger,
		cache:  make(map[string]core.Profile),
	}
}

const redisKeyPrefix = "profile:"

// Resolve implements core.ProfileStore.
func (r *Registry) Resolve(ctx context.Context, name string) (core.Profile, error) {
	if err := validateName(name); err != nil {
		return core.Profile{}, err
	}

	r.mu.RLock()
	if p, ok := r.cache[name]; ok {
		r.mu.RUnlock()
		return p, nil
	}
	r.mu.RUnlock()

	if p, ok, err := r.fromRedis(ctx, name); err != nil {
		return core.Profile{}, err
	} else if ok {
		r.remember(p)
		return p, nil
	}

	p, ok, err := r.fromFile(name)
	if err != nil {
		return core.Profile{}, err
	}
	if !ok {
		return core.Profile{}, fmt.Errorf("%w: %s", core.ErrProfileNotFound, name)
	}

	r.writeThrough(ctx, p)
	r.remember(p)
	return p, nil
}

// Save validates and persists a profile to disk, Redis and the cache.
func (r *Registry) Save(ctx context.Context, p core.Profile) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := validateName(p.Name); err != nil {
		return err
	}

	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile %q: %w", p.Name, err)
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.dir, p.Name+".yaml"), data, 0o644); err != nil {
		return fmt.Errorf("write profile %q: %w", p.Name, err)
	}

	if r.client != nil {
		payload, err := json.Marshal(p)
		if err != nil {
			return fmt.Errorf("marshal profile %q: %w", p.Name, err)
		}
		if err := r.client.Set(ctx, redisKeyPrefix+p.Name, payload, r.ttl).Err(); err != nil {
			return fmt.Errorf("cache profile %q: %w", p.Name, err)
		}
	}

	r.remember(p)
	return nil
}

// Delete removes a profile from disk, Redis and the cache. It returns
// ErrProfileNotFound when the profile existed nowhere.
func (r *Registry) Delete(ctx context.Context, name string) error {
	if err := validateName(name); err != nil {
		return err
	}

	existed := false
	for _, ext := range []string{".yaml", ".yml"} {
		err := os.Remove(filepath.Join(r.dir, name+ext))
		if err == nil {
			existed = true
			continue
		}
		if !os.IsNotExist(err) {
			return fmt.Errorf("remove profile %q: %w", name, err)
		}
	}

	if r.client != nil {
		removed, err := r.client.Del(ctx, redisKeyPrefix+name).Result()
		if err != nil {
			return fmt.Errorf("evict profile %q: %w", name, err)
		}
		if removed > 0 {
			existed = true
		}
	}

	r.mu.Lock()
	if _, ok := r.cache[name]; ok {
		existed = true
		delete(r.cache, name)
	}
	r.mu.Unlock()

	if !existed {
		return fmt.Errorf("%w: %s", core.ErrProfileNotFound, name)
	}
	return nil
}

// List returns the sorted union of profile names known to the directory and
// the Redis layer.
func (r *Registry) List(ctx context.Context) ([]string, error) {
	names := make(map[string]struct{})

	entries, err := os.ReadDir(r.dir)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read profile dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".yaml" && ext != ".yml" {
			continue
		}
		names[strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))] = struct{}{}
	}

	if r.client != nil {
		iter := r.client.Scan(ctx, 0, redisKeyPrefix+"*", 100).Iterator()
		for iter.Next(ctx) {
			names[strings.TrimPrefix(iter.Val(), redisKeyPrefix)] = struct{}{}
		}
		if err := iter.Err(); err != nil {
			return nil, fmt.Errorf("scan profiles: %w", err)
		}
	}

	out := make([]string, 0, len(names))
	for name := range names {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func (r *Registry) fromRedis(ctx context.Context, name string) (core.Profile, bool, error) {
	if r.client == nil {
		return core.Profile{}, false, nil
	}
	data, err := r.client.Get(ctx, redisKeyPrefix+name).Result()
	if err == redis.Nil {
		return core.Profile{}, false, nil
	}
	if err != nil {
		return core.Profile{}, false, fmt.Errorf("read profile %q: %w", name, err)
	}
	var p core.Profile
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		// A corrupt cache entry falls through to the file layer.
		r.logger.Warn("discarding undecodable cached profile", "profile", name, "error", err)
		return core.Profile{}, false, nil
	}
	return p, true, nil
}

func (r *Registry) fromFile(name string) (core.Profile, bool, error) {
	for _, ext := range []string{".yaml", ".yml"} {
		data, err := os.ReadFile(filepath.Join(r.dir, name+ext))
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return core.Profile{}, false, fmt.Errorf("read profile %q: %w", name, err)
		}
		var p core.Profile
		if err := yaml.Unmarshal(data, &p); err != nil {
			return core.Profile{}, false, fmt.Errorf("decode profile %q: %w", name, err)
		}
		if p.Name == "" {
			p.Name = name
		}
		return p, true, nil
	}
	return core.Profile{}, false, nil
}

// writeThrough populates the Redis layer after a file hit, best-effort.
func (r *Registry) writeThrough(ctx context.Context, p core.Profile) {
	if r.client == nil {
		return
	}
	payload, err := json.Marshal(p)
	if err != nil {
		return
	}
	if err := r.client.Set(ctx, redisKeyPrefix+p.Name, payload, r.ttl).Err(); err != nil {
		r.logger.Warn("profile write-through failed", "profile", p.Name, "error", err)
	}
}

func (r *Registry) remember(p core.Profile) {
	r.mu.Lock()
	r.cache[p.Name] = p
	r.mu.Unlock()
}

// validateName rejects empty names and names that could escape the profile
// directory.
func validateName(name string) error {
	if name == "" {
		return &core.ConfigError{Reason: "profile name must not be empty"}
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return &core.ConfigError{Reason: fmt.Sprintf("invalid profile name %q", name)}
	}
	return nil
}
