package strings

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContainsAny(t *testing.T) {
	assert.True(t, ContainsAny("admin_delete_user", "login", "delete"))
	assert.False(t, ContainsAny("view_report", "login", "delete"))
	assert.False(t, ContainsAny("anything", ""))
	assert.False(t, ContainsAny("anything"))
}
