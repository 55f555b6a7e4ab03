// Package scope turns a caller identity into storage filters and per-record
// checks. Every rule switches on auth.Role; raw user fields are never
// re-inspected here.
package scope

import (
	"royaltyhub.org/internal/auth"
	"royaltyhub.org/internal/docstore"
)

// Rights collections a payee's contracts are matched against.
const (
	SalesReturnsRights = "salesReturnsRights"
	CostsRights        = "costsRights"
	FieldContractID    = "contractId"
)

// Visibility is the per-kind route policy deciding what staff may see.
type Visibility int

const (
	// Tenant kinds are visible to the owning client and its payees only.
	Tenant Visibility = iota
	// Staff kinds are additionally fully visible to internal users.
	Staff
)

func (v Visibility) String() string {
	if v == Staff {
		return "staff"
	}
	return "tenant"
}

// ListFilter restricts a listing to the records id may see.
func ListFilter(v Visibility, id auth.Identity) docstore.Filter {
	switch id.Role {
	case auth.RolePayee:
		if len(id.ContractIDs) == 0 || id.ClientID == "" {
			return docstore.None{}
		}
		return docstore.And{
			docstore.Eq{Field: docstore.FieldClientID, Value: id.ClientID},
			docstore.Or{
				docstore.ElemIn{Array: SalesReturnsRights, Field: FieldContractID, Values: id.ContractIDs},
				docstore.ElemIn{Array: CostsRights, Field: FieldContractID, Values: id.ContractIDs},
			},
		}
	case auth.RoleClient:
		if id.ClientID == "" {
			return docstore.None{}
		}
		return docstore.Eq{Field: docstore.FieldClientID, Value: id.ClientID}
	case auth.RoleInternal:
		if v == Staff {
			return docstore.All{}
		}
		return docstore.None{}
	case auth.RoleParent, auth.RoleUnresolved:
		return docstore.None{}
	default:
		return docstore.None{}
	}
}

// Forbidden reports whether id may not access record directly by id. Only a
// client of the owning tenant passes; payees are always refused here and
// reach records through ListFilter instead.
func Forbidden(record docstore.Document, id auth.Identity) bool {
	switch id.Role {
	case auth.RoleClient:
		return id.ClientID == "" || record.ClientID() != id.ClientID
	case auth.RolePayee, auth.RoleInternal, auth.RoleParent, auth.RoleUnresolved:
		return true
	default:
		return true
	}
}

// Readable widens Forbidden for staff kinds, where internal users read any
// record.
func Readable(v Visibility, record docstore.Document, id auth.Identity) bool {
	if v == Staff && id.Role == auth.RoleInternal {
		return true
	}
	return !Forbidden(record, id)
}

// CanMutate reports whether id may create, update or delete scoped records.
func CanMutate(id auth.Identity) bool {
	return id.Role == auth.RoleClient && id.ClientID != ""
}

// SanitizeUpdate copies patch without the fields an update may never change.
func SanitizeUpdate(patch docstore.Document) docstore.Document {
	out := patch.Clone()
	if out == nil {
		out = docstore.Document{}
	}
	for _, f := range []string{docstore.FieldID, docstore.FieldClientID, docstore.FieldCreatedAt, docstore.FieldUpdatedAt} {
		delete(out, f)
	}
	return out
}

// AssignTenant prepares doc for creation under the caller's tenant.
func AssignTenant(doc docstore.Document, id auth.Identity) docstore.Document {
	out := SanitizeUpdate(doc)
	out[docstore.FieldClientID] = id.ClientID
	return out
}
