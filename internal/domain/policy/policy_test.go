package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"reimburse/internal/common"
	"reimburse/internal/domain/model"
)

func TestDecisionTable(t *testing.T) {
	tests := []struct {
		op       Operation
		employee bool
		budget   bool
		admin    bool
	}{
		{OpCreateOwn, true, true, true},
		{OpListOwn, true, true, true},
		{OpListAll, false, true, true},
		{OpChangeStatus, false, true, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.op), func(t *testing.T) {
			assert.Equal(t, tt.employee, Allowed(model.RoleEmployee, tt.op))
			assert.Equal(t, tt.budget, Allowed(model.RoleBudget, tt.op))
			assert.Equal(t, tt.admin, Allowed(model.RoleAdmin, tt.op))
		})
	}
}

func TestUnknownRoleIsDenied(t *testing.T) {
	assert.False(t, Allowed(model.Role("intern"), OpCreateOwn))
	assert.False(t, Allowed(model.Role(""), OpListOwn))
}

func TestAuthorizeReturnsForbidden(t *testing.T) {
	err := Authorize(model.RoleEmployee, OpChangeStatus)
	assert.ErrorIs(t, err, common.ErrForbidden)
	assert.NoError(t, Authorize(model.RoleBudget, OpChangeStatus))
}

func TestCanRead(t *testing.T) {
	owner := model.Principal{ID: "e1", Role: model.RoleEmployee}
	other := model.Principal{ID: "e2", Role: model.RoleEmployee}
	reviewer := model.Principal{ID: "b1", Role: model.RoleBudget}

	assert.True(t, CanRead(owner, "e1"))
	assert.False(t, CanRead(other, "e1"))
	assert.True(t, CanRead(reviewer, "e1"))
}
