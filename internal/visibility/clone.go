package visibility

import (
	"strings"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
)

// ForkSuffix is appended to the title of a cloned snippet.
const ForkSuffix = " (Fork)"

// CloneForNewOwner copies the content fields of src into a new private record
// owned by newOwnerID. Identity and timestamps are left for the repository to
// assign. Usage and favorite state are not carried over.
func CloneForNewOwner(src *model.Snippet, newOwnerID string) (*model.Snippet, error) {
	if strings.TrimSpace(newOwnerID) == "" {
		return nil, apperror.ValidationFailed("userId", "clone owner is required")
	}
	if strings.TrimSpace(src.Title) == "" {
		return nil, apperror.ValidationFailed("title", "source snippet has no title")
	}
	if strings.TrimSpace(src.Code) == "" {
		return nil, apperror.ValidationFailed("code", "source snippet has no code")
	}

	var tags []string
	if len(src.Tags) > 0 {
		tags = make([]string, len(src.Tags))
		copy(tags, src.Tags)
	}

	return &model.Snippet{
		UserID:      newOwnerID,
		Title:       src.Title + ForkSuffix,
		Description: src.Description,
		Code:        src.Code,
		Language:    src.Language,
		Category:    src.Category,
		Tags:        tags,
		OriginalID:  src.ID,
		// private default
		IsPublic:        false,
		InCommunity:     false,
		PublicExpiresAt: nil,
	}, nil
}
