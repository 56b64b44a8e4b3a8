package collection_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/oceanbase/powermem-mcp/pkg/collection"
)

func TestDetectRoles(t *testing.T) {
	tests := []struct {
		text     string
		expected collection.Role
	}{
		{"Building REST API endpoints", collection.RoleBackend},
		{"React component state management", collection.RoleFrontend},
		{"Docker deployment with Kubernetes", collection.RoleDevOps},
		{"Training neural network model", collection.RoleML},
		{"JWT authentication vulnerability", collection.RoleSecurity},
		{"Flutter mobile app navigation", collection.RoleMobile},
		{"Portfolio backtesting system", collection.RoleQuant},
		{"General debugging technique", collection.RoleUniversal},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Contains(t, collection.DetectRoles(tt.text), tt.expected)
		})
	}
}

func TestDetectRolesWholeWords(t *testing.T) {
	// "ci" must not match inside "decision"
	roles := collection.DetectRoles("a decision about naming")
	assert.Equal(t, []collection.Role{collection.RoleUniversal}, roles)
}

func TestDetectRolesOrder(t *testing.T) {
	roles := collection.DetectRoles("debugging the api server docker image")
	assert.Equal(t, []collection.Role{
		collection.RoleUniversal,
		collection.RoleBackend,
		collection.RoleDevOps,
	}, roles)
}

func TestDetectRolesFollowDeclarationOrder(t *testing.T) {
	roles := collection.DetectRoles("mobile app for portfolio risk, deployed with docker")

	var declared []collection.Role
	for _, r := range collection.Roles() {
		for _, got := range roles {
			if got == r {
				declared = append(declared, r)
			}
		}
	}
	assert.Equal(t, []collection.Role{
		collection.RoleQuant,
		collection.RoleDevOps,
		collection.RoleMobile,
	}, roles)
	assert.Equal(t, declared, roles)
}
