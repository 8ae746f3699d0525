package analyzer

import (
	"fmt"
	"net/http"
	"sort"

	"go.uber.org/zap"

	"github.com/seolens/siteaudit/internal/similarity"
)

// RegistryConfig carries the knobs every unit needs.
type RegistryConfig struct {
	Meta       MetaConfig
	Content    ContentConfig
	Similarity similarity.Config
	PageSpeed  PageSpeedConfig

	// HTTPClient is shared by units that call external APIs. Optional.
	HTTPClient *http.Client
}

// Registry holds the configured analyzer units by name.
type Registry struct {
	units map[string]Analyzer
	order []string
}

// NewRegistry builds the full unit set.
func NewRegistry(cfg RegistryConfig, logger *zap.Logger) *Registry {
	units := []Analyzer{
		NewMetaTags(cfg.Meta),
		NewHeadings(),
		NewImages(),
		NewContent(cfg.Content),
		NewLinks(),
		NewDuplicates(similarity.NewDetector(cfg.Similarity, logger)),
		NewPageSpeed(cfg.PageSpeed, cfg.HTTPClient),
	}
	r := &Registry{units: make(map[string]Analyzer, len(units))}
	for _, u := range units {
		r.units[u.Name()] = u
		r.order = append(r.order, u.Name())
	}
	return r
}

// All returns every unit in registration order.
func (r *Registry) All() []Analyzer {
	out := make([]Analyzer, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.units[name])
	}
	return out
}

// Select returns the named units, or All when names is empty. Unknown
// names are an error so a typo in a request does not silently skip a
// check.
func (r *Registry) Select(names []string) ([]Analyzer, error) {
	if len(names) == 0 {
		return r.All(), nil
	}
	var out []Analyzer
	for _, name := range names {
		u, ok := r.units[name]
		if !ok {
			return nil, fmt.Errorf("unknown analyzer %q", name)
		}
		out = append(out, u)
	}
	return out, nil
}

// Names returns the sorted unit names.
func (r *Registry) Names() []string {
	names := append([]string(nil), r.order...)
	sort.Strings(names)
	return names
}
