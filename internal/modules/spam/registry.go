package spam

import (
	"sort"

	"github.com/mx-space/moderation/internal/config"
	"go.uber.org/zap"
)

// Registry maps provider kinds to the instances built at startup.
type Registry struct {
	providers map[Kind]Provider
}

func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[Kind]Provider, len(providers))}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds p, replacing any provider of the same kind.
func (r *Registry) Register(p Provider) {
	r.providers[p.Kind()] = p
}

func (r *Registry) Lookup(k Kind) (Provider, bool) {
	p, ok := r.providers[k]
	return p, ok
}

// LookupName resolves a provider by identifier, e.g. "mollom".
func (r *Registry) LookupName(name string) (Provider, bool) {
	k, ok := ParseKind(name)
	if !ok {
		return nil, false
	}
	return r.Lookup(k)
}

// Ordered returns the providers in chain priority.
func (r *Registry) Ordered() []Provider {
	out := make([]Provider, 0, len(r.providers))
	for _, p := range r.providers {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Kind() < out[j].Kind() })
	return out
}

// Build wires every provider from the comment configuration. Reputation
// providers are always registered; without credentials their gate is closed.
func Build(cfg config.CommentConfig, store Store, log *zap.Logger) *Registry {
	if log == nil {
		log = zap.NewNop()
	}
	client := NewHTTPClient(cfg.ProviderTimeout, log)
	return NewRegistry(
		NewChallenge(),
		NewHeuristic(cfg.SpamKeywords, cfg.BlockIPs),
		NewAkismet(AkismetConfig{
			Key:     cfg.AkismetKey,
			BaseURL: cfg.AkismetURL,
			Blog:    cfg.AkismetBlog,
		}, client),
		NewMollom(MollomConfig{
			PublicKey:  cfg.MollomPublicKey,
			PrivateKey: cfg.MollomPrivateKey,
			Endpoint:   cfg.MollomEndpoint,
		}, client, store, log.Named("mollom")),
	)
}
