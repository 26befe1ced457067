package rbac

// Requirement names the single permission an operation needs.
type Requirement struct {
	Permission Permission
}

// Policy is a named set of requirements, all of which must hold.
type Policy struct {
	Name         string
	Requirements []Requirement
}

// Evaluate runs the evaluator against the policy requirements.
func (p Policy) Evaluate(granted []string) Decision {
	return Evaluate(granted, p.permissions()...)
}

func (p Policy) permissions() []Permission {
	perms := make([]Permission, len(p.Requirements))
	for i, r := range p.Requirements {
		perms[i] = r.Permission
	}
	return perms
}

var policies = buildPolicies()

func buildPolicies() map[string]Policy {
	out := make(map[string]Policy, len(availablePermissions))
	for _, perm := range availablePermissions {
		out[string(perm)] = Policy{
			Name:         string(perm),
			Requirements: []Requirement{{Permission: perm}},
		}
	}
	return out
}

// Policies returns one policy per permission, keyed by the permission value.
func Policies() map[string]Policy {
	out := make(map[string]Policy, len(policies))
	for k, v := range policies {
		out[k] = v
	}
	return out
}

// LookupPolicy finds the policy with the given name.
func LookupPolicy(name string) (Policy, bool) {
	p, ok := policies[name]
	return p, ok
}
