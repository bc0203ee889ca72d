package strategy

import (
	"sort"
	"sync"

	"github.com/agnivade/levenshtein"

	"github.com/casthq/warden/internal/intent"
	"github.com/casthq/warden/pkg/errors"
)

// Definition is the registry entry for one strategy kind.
type Definition struct {
	Name             string
	Label            string
	Description      string
	Category         string
	Icon             string
	SupportedIntents []intent.ExternalType
	Schema           []Field
	DefaultParams    map[string]any
	Factory          Factory
}

// DTO is the JSON-serialisable view of a definition, without the
// factory. Field descriptors stand in for the schema itself.
type DTO struct {
	Name             string                `json:"name"`
	Label            string                `json:"label"`
	Description      string                `json:"description"`
	Category         string                `json:"category"`
	Icon             string                `json:"icon"`
	SupportedIntents []intent.ExternalType `json:"supportedIntents"`
	Fields           []Field               `json:"fields"`
	DefaultParams    map[string]any        `json:"defaultParams"`
}

// Registry is the process-global strategy catalog. Read-mostly after
// startup registration.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

// NewRegistry creates a registry preloaded with the built-in strategies.
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[string]Definition)}
	r.Register(accumulatorDefinition())
	r.Register(distributorDefinition())
	r.Register(balanceGuardDefinition())
	r.Register(scheduledPayerDefinition())
	return r
}

// Register adds or replaces a strategy definition.
func (r *Registry) Register(def Definition) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defs[def.Name] = def
}

// Has reports whether a strategy kind is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.defs[name]
	return ok
}

// Get returns a strategy definition. Unknown names get a suggestion for
// the closest registered name when one is plausibly a typo.
func (r *Registry) Get(name string) (Definition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	def, ok := r.defs[name]
	if !ok {
		var err error = errors.Validation("unknown strategy %q", name)
		if closest := r.closestLocked(name); closest != "" {
			err = errors.WithSuggestion(err, "did you mean \""+closest+"\"?")
		}
		return Definition{}, err
	}
	return def, nil
}

// List returns all definitions sorted by name.
func (r *Registry) List() []Definition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Definition, 0, len(r.defs))
	for _, def := range r.defs {
		out = append(out, def)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ValidateParams normalizes params against the named strategy's schema.
func (r *Registry) ValidateParams(name string, params map[string]any) (map[string]any, error) {
	def, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	return validateParams(def.Schema, params)
}

// New validates params and builds a strategy instance.
func (r *Registry) New(name string, params map[string]any) (Strategy, error) {
	def, err := r.Get(name)
	if err != nil {
		return nil, err
	}
	normalized, err := validateParams(def.Schema, params)
	if err != nil {
		return nil, err
	}
	return def.Factory(normalized)
}

// ToDTO returns the serialisable view of one definition.
func (r *Registry) ToDTO(name string) (DTO, error) {
	def, err := r.Get(name)
	if err != nil {
		return DTO{}, err
	}
	return def.toDTO(), nil
}

// ListDTOs returns serialisable views of every definition, sorted by name.
func (r *Registry) ListDTOs() []DTO {
	defs := r.List()
	out := make([]DTO, 0, len(defs))
	for _, def := range defs {
		out = append(out, def.toDTO())
	}
	return out
}

func (d Definition) toDTO() DTO {
	return DTO{
		Name:             d.Name,
		Label:            d.Label,
		Description:      d.Description,
		Category:         d.Category,
		Icon:             d.Icon,
		SupportedIntents: d.SupportedIntents,
		Fields:           d.Schema,
		DefaultParams:    d.DefaultParams,
	}
}

// closestLocked returns the registered name nearest to input, or "" when
// nothing is within edit distance 3. Callers must hold r.mu.
func (r *Registry) closestLocked(input string) string {
	best := ""
	bestDist := 4
	for name := range r.defs {
		if dist := levenshtein.ComputeDistance(input, name); dist < bestDist {
			best = name
			bestDist = dist
		}
	}
	return best
}
