package rbac

import "strings"

// DenyReason explains a denial. Reasons are for logs, not for callers.
type DenyReason string

// Deny reasons.
const (
	ReasonNoPermissions DenyReason = "no permissions present"
	ReasonUnparseable   DenyReason = "permissions claim unparseable"
	ReasonNotGranted    DenyReason = "permission not granted"
)

// Decision is the outcome of one evaluation.
type Decision struct {
	Allowed bool
	Reason  DenyReason
	Missing []Permission
}

// Evaluate decides whether the granted claim values satisfy every required
// permission. The wildcard short-circuits to Allow. It never fails; malformed
// input yields a Deny.
func Evaluate(granted []string, required ...Permission) Decision {
	present := 0
	set := make(map[Permission]struct{}, len(granted))
	for _, raw := range granted {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		present++
		if p, ok := ParsePermission(raw); ok {
			set[p] = struct{}{}
		}
	}
	if present == 0 {
		return Decision{Reason: ReasonNoPermissions}
	}
	if len(set) == 0 {
		return Decision{Reason: ReasonUnparseable}
	}
	if _, ok := set[PermAll]; ok {
		return Decision{Allowed: true}
	}

	var missing []Permission
	seen := make(map[Permission]struct{}, len(required))
	for _, r := range required {
		if _, dup := seen[r]; dup {
			continue
		}
		seen[r] = struct{}{}
		if _, ok := set[r]; !ok {
			missing = append(missing, r)
		}
	}
	if len(missing) > 0 {
		return Decision{Reason: ReasonNotGranted, Missing: missing}
	}
	return Decision{Allowed: true}
}

// Covers reports whether granted includes every requested permission, treating
// the wildcard as covering everything.
func Covers(granted []string, requested []Permission) bool {
	if len(requested) == 0 {
		return true
	}
	return Evaluate(granted, requested...).Allowed
}
