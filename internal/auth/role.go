package auth

import "fmt"

// Role is the caller classification derived from a user record. It is never
// stored; Classify recomputes it at sign-in and the token carries it.
type Role int

const (
	RoleUnresolved Role = iota
	RolePayee
	RoleInternal
	RoleParent
	RoleClient
)

var roleNames = map[Role]string{
	RoleUnresolved: "unresolved",
	RolePayee:      "payee",
	RoleInternal:   "internal",
	RoleParent:     "parent",
	RoleClient:     "client",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// ParseRole is the inverse of String.
func ParseRole(s string) (Role, error) {
	for role, name := range roleNames {
		if name == s {
			return role, nil
		}
	}
	return RoleUnresolved, fmt.Errorf("unknown role %q", s)
}

func (r Role) MarshalText() ([]byte, error) {
	if _, ok := roleNames[r]; !ok {
		return nil, fmt.Errorf("unknown role %d", int(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	parsed, err := ParseRole(string(b))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// Classify resolves the single role of u. The first match wins: a payee that
// also carries a clientId or the internal flag is still a payee.
func Classify(u User) Role {
	switch {
	case u.PayeeID != "":
		return RolePayee
	case u.Internal:
		return RoleInternal
	case u.ParentID != "":
		return RoleParent
	case u.ClientID != "":
		return RoleClient
	default:
		return RoleUnresolved
	}
}
