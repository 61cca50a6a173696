package visibility

import (
	"time"

	"github.com/sakif/snippet-vault/internal/model"
)

// View is the presentation state of a snippet's sharing, computed at a point
// in time. An expired link keeps its expiry so it can be shown until the owner
// removes it.
type View struct {
	LinkState       LinkState  `json:"linkState"`
	IsPublic        bool       `json:"isPublic"`
	InCommunity     bool       `json:"inCommunity"`
	PublicExpiresAt *time.Time `json:"publicExpiresAt"`
	// ExpiresInSeconds is the remaining lifetime of an active link, else 0.
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
	SharePath        string `json:"sharePath,omitempty"`
}

// SharePath is the origin-relative path a share link points to.
func SharePath(id string) string {
	return "/share/" + id
}

// ViewOf computes the view of s at now. SharePath is only set while the link
// is active.
func ViewOf(s *model.Snippet, now time.Time) View {
	state := ComputeLinkState(now, s.PublicExpiresAt)
	v := View{
		LinkState:       state,
		IsPublic:        DerivePublic(state, s.InCommunity),
		InCommunity:     s.InCommunity,
		PublicExpiresAt: s.PublicExpiresAt,
	}
	if state == LinkActive {
		v.ExpiresInSeconds = int64(s.PublicExpiresAt.Sub(now) / time.Second)
		v.SharePath = SharePath(s.ID)
	}
	return v
}
