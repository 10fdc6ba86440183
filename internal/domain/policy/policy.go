// Package policy decides which role may perform which expense operation. It
// performs no I/O and is safe to call from anywhere.
package policy

import (
	"fmt"

	"reimburse/internal/common"
	"reimburse/internal/domain/model"
)

type Operation string

const (
	OpCreateOwn    Operation = "create own request"
	OpListOwn      Operation = "list own requests"
	OpListAll      Operation = "list all requests"
	OpChangeStatus Operation = "change request status"
)

var table = map[Operation]map[model.Role]bool{
	OpCreateOwn:    {model.RoleEmployee: true, model.RoleBudget: true, model.RoleAdmin: true},
	OpListOwn:      {model.RoleEmployee: true, model.RoleBudget: true, model.RoleAdmin: true},
	OpListAll:      {model.RoleBudget: true, model.RoleAdmin: true},
	OpChangeStatus: {model.RoleBudget: true, model.RoleAdmin: true},
}

func Allowed(role model.Role, op Operation) bool {
	return table[op][role]
}

// Authorize returns an error wrapping common.ErrForbidden when role may not
// perform op.
func Authorize(role model.Role, op Operation) error {
	if !Allowed(role, op) {
		return fmt.Errorf("role %q may not %s: %w", role, op, common.ErrForbidden)
	}
	return nil
}

// CanRead reports whether p may see a single request owned by ownerID.
// Owners always may; reviewers may read any request.
func CanRead(p model.Principal, ownerID string) bool {
	return p.ID == ownerID || Allowed(p.Role, OpListAll)
}
