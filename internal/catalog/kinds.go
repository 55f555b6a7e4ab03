package catalog

import (
	"sort"

	"royaltyhub.org/internal/scope"
)

// Policy is the route-level access rule of a kind.
type Policy int

const (
	// PolicyTenant kinds are listed by clients and payees only; everyone else
	// gets ErrForbidden before the store is consulted.
	PolicyTenant Policy = iota
	// PolicyStaff kinds are additionally readable in full by internal users.
	PolicyStaff
	// PolicyDirectory is the clients kind: internal users manage it, parents
	// see their children, clients see themselves.
	PolicyDirectory
)

// Kind is a resource collection exposed under /{Name}.
type Kind struct {
	Name   string
	Policy Policy
}

func (k Kind) visibility() scope.Visibility {
	if k.Policy == PolicyStaff {
		return scope.Staff
	}
	return scope.Tenant
}

// DefaultKinds lists the collections served by the API.
func DefaultKinds() []Kind {
	return []Kind{
		{Name: "salesAccounts", Policy: PolicyTenant},
		{Name: "contracts", Policy: PolicyTenant},
		{Name: "payees", Policy: PolicyTenant},
		{Name: "campaigns", Policy: PolicyTenant},
		{Name: "tracks", Policy: PolicyStaff},
		{Name: "releases", Policy: PolicyStaff},
		{Name: "works", Policy: PolicyStaff},
		{Name: "clients", Policy: PolicyDirectory},
	}
}

func kindNames(kinds map[string]Kind) []string {
	out := make([]string, 0, len(kinds))
	for name := range kinds {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
