package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func ptr(s string) *string { return &s }

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name string
		user User
		want string
	}{
		{
			name: "enterprise uses company name",
			user: User{Username: "acme", Role: RoleEnterprise, CompanyName: ptr("Acme Corp")},
			want: "Acme Corp",
		},
		{
			name: "individual uses first and last name",
			user: User{Username: "jane", Role: RoleIndividual, FirstName: ptr("Jane"), LastName: ptr("Doe")},
			want: "Jane Doe",
		},
		{
			name: "employee uses first and last name",
			user: User{Username: "fatou", Role: RoleEmployee, FirstName: ptr("Fatou"), LastName: ptr("Ndiaye")},
			want: "Fatou Ndiaye",
		},
		{
			name: "missing payload falls back to username",
			user: User{Username: "ghost", Role: RoleEnterprise},
			want: "ghost",
		},
		{
			name: "partial name still renders",
			user: User{Username: "jane", Role: RoleIndividual, FirstName: ptr("Jane")},
			want: "Jane",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.user.DisplayName())
		})
	}
}

func TestInitials(t *testing.T) {
	assert.Equal(t, "JD", Initials("Jane Doe"))
	assert.Equal(t, "AC", Initials("Acme Corp"))
	assert.Equal(t, "JA", Initials("Jane"))
	assert.Equal(t, "J", Initials("j"))
	assert.Equal(t, "??", Initials("  "))
	assert.Equal(t, "ÉM", Initials("émile moreau"))
}
