package visibility

import (
	"time"

	"github.com/sakif/snippet-vault/internal/model"
)

// Patch is a partial update of the visibility triple. Nil fields are left
// untouched. PublicExpiresAt is only written when ExpiresSet is true; a nil
// PublicExpiresAt with ExpiresSet clears the link.
type Patch struct {
	IsPublic        *bool
	InCommunity     *bool
	ExpiresSet      bool
	PublicExpiresAt *time.Time
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.IsPublic == nil && p.InCommunity == nil && !p.ExpiresSet
}

// Apply writes the patched fields into s.
func (p Patch) Apply(s *model.Snippet) {
	if p.IsPublic != nil {
		s.IsPublic = *p.IsPublic
	}
	if p.InCommunity != nil {
		s.InCommunity = *p.InCommunity
	}
	if p.ExpiresSet {
		if p.PublicExpiresAt == nil {
			s.PublicExpiresAt = nil
		} else {
			t := *p.PublicExpiresAt
			s.PublicExpiresAt = &t
		}
	}
}

// ApplyState is Apply for a bare State.
func (p Patch) ApplyState(s State) State {
	snippet := model.Snippet{
		IsPublic:        s.IsPublic,
		InCommunity:     s.InCommunity,
		PublicExpiresAt: s.PublicExpiresAt,
	}
	p.Apply(&snippet)
	return StateOf(&snippet)
}

// Fields names the columns the patch touches, in a stable order.
func (p Patch) Fields() []string {
	fields := make([]string, 0, 3)
	if p.IsPublic != nil {
		fields = append(fields, "is_public")
	}
	if p.InCommunity != nil {
		fields = append(fields, "in_community")
	}
	if p.ExpiresSet {
		fields = append(fields, "public_expires_at")
	}
	return fields
}
