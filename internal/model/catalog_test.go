package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsKnownCategory(t *testing.T) {
	assert.True(t, IsKnownCategory("general"))
	assert.True(t, IsKnownCategory("data-science"))
	assert.False(t, IsKnownCategory("General"))
	assert.False(t, IsKnownCategory(""))
}

func TestIsKnownLanguage(t *testing.T) {
	assert.True(t, IsKnownLanguage(DefaultLanguage))
	assert.True(t, IsKnownLanguage("dax"))
	assert.False(t, IsKnownLanguage("cobol"))
}

func TestFileExtension(t *testing.T) {
	assert.Equal(t, "py", FileExtension("python"))
	assert.Equal(t, "sh", FileExtension("bash"))
	assert.Equal(t, "txt", FileExtension("powerfx"))
}

func TestTemplatesUseKnownLanguages(t *testing.T) {
	seen := map[string]bool{}
	for _, tpl := range Templates {
		assert.Truef(t, IsKnownLanguage(tpl.Language), "template %s has unknown language %q", tpl.ID, tpl.Language)
		assert.Falsef(t, seen[tpl.ID], "duplicate template id %s", tpl.ID)
		assert.NotEmpty(t, tpl.Code)
		seen[tpl.ID] = true
	}
}

func TestSnippet_IsOwnedBy(t *testing.T) {
	s := &Snippet{UserID: "user-a"}
	assert.True(t, s.IsOwnedBy("user-a"))
	assert.False(t, s.IsOwnedBy("user-b"))
	assert.False(t, s.IsOwnedBy(""))
}
