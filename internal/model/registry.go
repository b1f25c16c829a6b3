// Package model holds the assistant model registry: which models exist,
// which vendor protocol serves them, and which role a user needs to
// select them. Read-only reference data, safe to share across turns.
package model

import "slices"

// Vendor protocol identifiers. Each value selects a processor family.
const (
	VendorOpenAIChat      = "openai_chat"
	VendorOpenAIResponses = "openai_responses"
	VendorClaude          = "claude"
	VendorGemini          = "gemini"
)

// AIModel describes one selectable model.
type AIModel struct {
	// ID is the vendor model identifier, e.g. "gpt-5" or "claude-sonnet-4-5".
	ID string `mapstructure:"id"`

	// Vendor selects the processor family, one of the Vendor constants.
	Vendor string `mapstructure:"vendor"`

	// DisplayName is shown to users; falls back to ID when empty.
	DisplayName string `mapstructure:"display_name"`

	// RequiresRole gates the model to users holding the role.
	// Empty means unrestricted.
	RequiresRole string `mapstructure:"requires_role"`

	// Default marks the fallback model for users whose requested model
	// is role-gated. At most one unrestricted model should be marked.
	Default bool `mapstructure:"default"`
}

// Restricted reports whether the model carries a role gate.
func (m AIModel) Restricted() bool {
	return m.RequiresRole != ""
}

// AllowedFor reports whether a user holding the given roles may use the
// model.
func (m AIModel) AllowedFor(roles []string) bool {
	return m.RequiresRole == "" || slices.Contains(roles, m.RequiresRole)
}

// Registry is an immutable model catalog.
type Registry struct {
	models []AIModel
}

// NewRegistry copies models into a new registry.
func NewRegistry(models []AIModel) *Registry {
	r := &Registry{models: make([]AIModel, len(models))}
	copy(r.models, models)
	return r
}

// Get looks up a model by ID.
func (r *Registry) Get(id string) (AIModel, bool) {
	for _, m := range r.models {
		if m.ID == id {
			return m, true
		}
	}
	return AIModel{}, false
}

// All returns a copy of the catalog.
func (r *Registry) All() []AIModel {
	out := make([]AIModel, len(r.models))
	copy(out, r.models)
	return out
}

// Default returns the fallback model: the first unrestricted model marked
// Default, else the first unrestricted model, else the first model.
func (r *Registry) Default() (AIModel, bool) {
	if len(r.models) == 0 {
		return AIModel{}, false
	}
	for _, m := range r.models {
		if m.Default && !m.Restricted() {
			return m, true
		}
	}
	for _, m := range r.models {
		if !m.Restricted() {
			return m, true
		}
	}
	return r.models[0], true
}

// Resolve maps a requested model ID to the model a user may actually use.
// Unknown IDs and role-gated models the user does not qualify for resolve
// to the default model instead of failing the request.
func (r *Registry) Resolve(requested string, roles []string) (AIModel, bool) {
	if m, ok := r.Get(requested); ok && m.AllowedFor(roles) {
		return m, true
	}
	return r.Default()
}
