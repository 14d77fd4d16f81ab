package node

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeValid(t *testing.T) {
	for _, typ := range []Type{TypeContext, TypeInput, TypeResponse, TypeImageContext, TypeDocument} {
		assert.True(t, typ.Valid(), string(typ))
	}
	assert.False(t, Type("bogus").Valid())
	assert.False(t, Type("").Valid())
}

func TestChatRole(t *testing.T) {
	assert.Equal(t, RoleAssistant, TypeResponse.ChatRole())
	for _, typ := range []Type{TypeContext, TypeInput, TypeImageContext, TypeDocument} {
		assert.Equal(t, RoleUser, typ.ChatRole(), string(typ))
	}
}

func TestCloneIsDeep(t *testing.T) {
	n := New(TypeInput, 1, 2, "q")
	n.ParentIDs = append(n.ParentIDs, "p")

	c := n.Clone()
	c.ParentIDs[0] = "changed"
	c.ChildrenIDs = append(c.ChildrenIDs, "extra")

	assert.Equal(t, "p", n.ParentIDs[0])
	assert.Empty(t, n.ChildrenIDs)
}

func TestPatchApplyTo(t *testing.T) {
	n := New(TypeResponse, 0, 0, "old")
	n.Err = "stale"

	Patch{
		Value: StringPtr("new"),
		X:     Float64Ptr(5),
		Err:   StringPtr(""),
	}.ApplyTo(n)

	assert.Equal(t, "new", n.Value)
	assert.Equal(t, 5.0, n.X)
	assert.Equal(t, 0.0, n.Y)
	assert.Empty(t, n.Err)

	// Nil fields leave the node untouched.
	Patch{}.ApplyTo(n)
	assert.Equal(t, "new", n.Value)

	// Non-nil slices replace, including with empty.
	Patch{ParentIDs: []string{}}.ApplyTo(n)
	assert.Empty(t, n.ParentIDs)
	assert.NotNil(t, n.ParentIDs)
}

func TestNewGeneratesUniqueIDs(t *testing.T) {
	a := New(TypeContext, 0, 0, "")
	b := New(TypeContext, 0, 0, "")
	assert.NotEqual(t, a.ID, b.ID)
}
