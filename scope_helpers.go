package hierconf

const (
	// Recommended priorities for common layering patterns. Higher numbers win.
	ScopePrioritySystem = 100
	ScopePriorityTenant = 200
	ScopePriorityOrg    = 300
	ScopePriorityTeam   = 400
	ScopePriorityUser   = 500
)

// SystemTenantOrgTeamUser assembles the canonical five-layer stack (system →
// tenant → org → team → user) and returns the merged Manager. Nil trees are
// skipped.
func SystemTenantOrgTeamUser(system, tenant, org, team, user *Node, opts ...Option) (*Manager, error) {
	candidates := []Layer{
		NewLayer(NewScope("user", ScopePriorityUser, WithScopeLabel("User")), user),
		NewLayer(NewScope("team", ScopePriorityTeam, WithScopeLabel("Team")), team),
		NewLayer(NewScope("org", ScopePriorityOrg, WithScopeLabel("Organization")), org),
		NewLayer(NewScope("tenant", ScopePriorityTenant, WithScopeLabel("Tenant")), tenant),
		NewLayer(NewScope("system", ScopePrioritySystem, WithScopeLabel("System Defaults")), system),
	}
	layers := make([]Layer, 0, len(candidates))
	for _, layer := range candidates {
		if layer.Tree != nil {
			layers = append(layers, layer)
		}
	}
	stack, err := NewStack(layers...)
	if err != nil {
		return nil, err
	}
	return stack.Merge(opts...)
}
