package editor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"

	"github.com/pthm/strata"
	"github.com/pthm/strata/pkg/graph"
)

// RelSiteToEditor links a site to its HTML editor entity.
const RelSiteToEditor = "site_to_html_editor"

// Graph follows edges. *graph.Graph satisfies it.
type Graph interface {
	Targets(ctx context.Context, a strata.ID, kind graph.Kind) ([]strata.ID, error)
}

// Loader loads entities. *entity.Store satisfies it.
type Loader interface {
	GetByID(ctx context.Context, id strata.ID, opts ...strata.LookupOption) (strata.Entity, error)
}

// Resolver picks the integration configured for a site.
type Resolver struct {
	graph      Graph
	loader     Loader
	registry   *Registry
	memo       *strata.Memo
	logger     *slog.Logger
	defaultKey string
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithCache sets the cache site keys are memoized in.
func WithCache(c strata.Cache) Option {
	return func(r *Resolver) {
		r.memo = strata.NewMemo(c)
	}
}

// WithLogger sets the resolver's logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Resolver) {
		if l != nil {
			r.logger = l
		}
	}
}

// WithDefault sets the key used for sites with no editor linked.
func WithDefault(key string) Option {
	return func(r *Resolver) {
		if key != "" {
			r.defaultKey = key
		}
	}
}

// NewResolver creates a Resolver. A nil registry gets NewRegistry().
func NewResolver(g Graph, loader Loader, registry *Registry, opts ...Option) *Resolver {
	if registry == nil {
		registry = NewRegistry()
	}
	r := &Resolver{
		graph:      g,
		loader:     loader,
		registry:   registry,
		logger:     slog.Default(),
		defaultKey: Plain,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.memo == nil {
		r.memo = strata.NewMemo(nil)
	}
	return r
}

// Registry returns the resolver's registry.
func (r *Resolver) Registry() *Registry {
	return r.registry
}

// ForSite returns the integration for site. Keys with no registered
// integration fall back to plain.
func (r *Resolver) ForSite(ctx context.Context, site strata.ID, opts ...strata.LookupOption) (Integration, error) {
	key, err := r.KeyForSite(ctx, site, opts...)
	if err != nil {
		return nil, err
	}
	if !r.registry.Has(key) {
		r.logger.WarnContext(ctx, "html editor not registered", "site", site, "key", key)
	}
	return r.registry.New(key), nil
}

// KeyForSite returns the registry key configured for site, or the default
// key if none is linked. Results are cached per site.
func (r *Resolver) KeyForSite(ctx context.Context, site strata.ID, opts ...strata.LookupOption) (string, error) {
	l := strata.NewLookup(opts...)
	return strata.Remember(ctx, r.memo, strata.Key("editor", "site", site), l.Fresh,
		func(ctx context.Context) (string, error) {
			targets, err := r.graph.Targets(ctx, site, graph.KindName(RelSiteToEditor))
			if err != nil {
				return "", fmt.Errorf("html editor of site %d: %w", site, err)
			}
			if len(targets) == 0 {
				return r.defaultKey, nil
			}

			e, err := r.loader.GetByID(ctx, targets[0], opts...)
			var gap *strata.IntegrityGapError
			if errors.As(err, &gap) {
				e, err = gap.Partial, nil
			}
			if err != nil {
				return "", fmt.Errorf("html editor of site %d: %w", site, err)
			}
			key := keyFromFilename(e.String("html_editor_filename"))
			if key == "" {
				return r.defaultKey, nil
			}
			return key, nil
		})
}

func keyFromFilename(filename string) string {
	base := path.Base(strings.TrimSpace(filename))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, path.Ext(base))
}
