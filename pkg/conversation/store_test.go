package conversation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStore_AppendCreatesAndDerivesTitlePreview(t *testing.T) {
	s := NewStore()
	long := strings.Repeat("a", 100)

	c, err := s.Append("conv-1", RoleUser, long)
	require.NoError(t, err)
	require.Len(t, c.Messages, 1)
	assert.Len(t, c.Title, titleMaxChars)
	assert.Len(t, c.Preview, previewMaxChars)
	assert.Equal(t, strings.Repeat("a", titleMaxChars), c.Title)
}

func TestStore_AppendTitleSetOnlyOnFirstUserMessage(t *testing.T) {
	s := NewStore()
	_, err := s.Append("conv-2", RoleUser, "first message")
	require.NoError(t, err)
	c, err := s.Append("conv-2", RoleUser, "second message")
	require.NoError(t, err)
	assert.Equal(t, "first message", c.Title)
}

func TestStore_AppendSystemMessageDoesNotSetTitle(t *testing.T) {
	s := NewStore()
	c, err := s.Append("conv-3", RoleSystem, "system prompt")
	require.NoError(t, err)
	assert.Empty(t, c.Title)
}

func TestStore_GetDelete(t *testing.T) {
	s := NewStore()
	_, err := s.Append("conv-4", RoleUser, "hi")
	require.NoError(t, err)

	_, ok := s.Get("conv-4")
	assert.True(t, ok)

	s.Delete("conv-4")
	_, ok = s.Get("conv-4")
	assert.False(t, ok)

	// Deleting a conversation that never existed is not an error.
	s.Delete("never-existed")
}

func TestStore_ListSortedByUpdatedAtDesc(t *testing.T) {
	s := NewStore()
	_, err := s.Append("older", RoleUser, "hi")
	require.NoError(t, err)
	_, err = s.Append("newer", RoleUser, "hi")
	require.NoError(t, err)

	list := s.List()
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].ID)
}

func TestStore_CreateReturnsEmptyConversation(t *testing.T) {
	s := NewStore()
	c := s.Create()
	assert.Empty(t, c.Messages)
	_, ok := s.Get(c.ID)
	assert.True(t, ok)
}

func TestTruncateRunes_RuneSafe(t *testing.T) {
	s := "héllo wörld"
	got := truncateRunes(s, 5)
	assert.Equal(t, "héllo", got)
	assert.Equal(t, s, truncateRunes(s, 100))
}
