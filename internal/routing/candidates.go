package routing

import "github.com/davidbz/starray/internal/domain"

// ProviderOrder builds the provider candidate order for cfg.
// The result is never empty and always ends with the local provider.
func ProviderOrder(cfg *domain.RoutingConfig) []string {
	candidates := make([]string, 0, len(cfg.Fallbacks)+2)
	candidates = append(candidates, cfg.Provider)
	candidates = append(candidates, cfg.Fallbacks...)
	candidates = append(candidates, domain.LocalProvider)

	return dedupe(candidates)
}

// ModelOrder builds the model candidate order for role.
// A role without an explicit model starts from the default model.
func ModelOrder(cfg *domain.RoutingConfig, role string) []string {
	primary, ok := cfg.RoleModels[role]
	if !ok || primary == "" {
		primary = cfg.DefaultModel
	}

	fallbacks := cfg.RoleFallbackModels[role]
	candidates := make([]string, 0, len(fallbacks)+2)
	candidates = append(candidates, primary)
	candidates = append(candidates, fallbacks...)
	candidates = append(candidates, cfg.DefaultModel)

	return dedupe(candidates)
}

// dedupe drops empty and repeated names, keeping first-seen order.
func dedupe(candidates []string) []string {
	seen := make(map[string]struct{}, len(candidates))
	ordered := make([]string, 0, len(candidates))

	for _, candidate := range candidates {
		if candidate == "" {
			continue
		}
		if _, dup := seen[candidate]; dup {
			continue
		}
		seen[candidate] = struct{}{}
		ordered = append(ordered, candidate)
	}

	return ordered
}
