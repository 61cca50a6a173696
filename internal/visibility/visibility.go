// Package visibility is the sharing state machine for snippets.
//
// A snippet can be shared through two independent channels:
//
//   - a share link, alive until PublicExpiresAt
//   - the community catalog, while InCommunity is true
//
// IsPublic is never an independent input. It is always DerivePublic of the two
// channels, and every operation in this package recomputes it. Each operation
// takes the current State and returns a Patch holding only the fields it
// changes, so the untouched channel is never written back.
//
// Nothing here does I/O. The service layer reads the record, calls one of these
// functions, and hands the Patch to the repository.
package visibility

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/sakif/snippet-vault/internal/apperror"
	"github.com/sakif/snippet-vault/internal/model"
)

const (
	// MinLinkDays and MaxLinkDays bound the lifetime of a share link.
	MinLinkDays = 1
	MaxLinkDays = 15

	day = 24 * time.Hour
)

// LinkState classifies a snippet's share link at a point in time.
type LinkState string

const (
	LinkNone    LinkState = "none"
	LinkActive  LinkState = "active"
	LinkExpired LinkState = "expired"
)

// State is the persisted visibility triple of a snippet.
type State struct {
	IsPublic        bool
	InCommunity     bool
	PublicExpiresAt *time.Time
}

// StateOf extracts the visibility triple from a snippet.
func StateOf(s *model.Snippet) State {
	return State{
		IsPublic:        s.IsPublic,
		InCommunity:     s.InCommunity,
		PublicExpiresAt: s.PublicExpiresAt,
	}
}

// ComputeLinkState returns LinkNone for a nil expiry, LinkActive when the
// expiry is strictly after now, and LinkExpired otherwise.
func ComputeLinkState(now time.Time, expiresAt *time.Time) LinkState {
	switch {
	case expiresAt == nil:
		return LinkNone
	case expiresAt.After(now):
		return LinkActive
	default:
		return LinkExpired
	}
}

// DerivePublic is the one place the disjunction rule lives: a snippet is public
// when its link is active or it is in the community catalog.
func DerivePublic(link LinkState, inCommunity bool) bool {
	return link == LinkActive || inCommunity
}

// IsVisible reports whether anonymous callers may read the snippet at now.
func IsVisible(s State, now time.Time) bool {
	return DerivePublic(ComputeLinkState(now, s.PublicExpiresAt), s.InCommunity)
}

// ParseLinkDays parses a user-supplied link duration. Anything that is not a
// whole number is InvalidInput; the range check happens in IssueLink. Whole
// numbers too large for an int still clamp to MaxLinkDays.
func ParseLinkDays(raw string) (int, error) {
	raw = strings.Trim(strings.TrimSpace(raw), `"`)
	if raw == "" {
		return 0, apperror.InvalidInput("days", "link duration is required")
	}
	days, err := strconv.Atoi(raw)
	if errors.Is(err, strconv.ErrRange) {
		if strings.HasPrefix(raw, "-") {
			return 0, apperror.InvalidInput("days",
				fmt.Sprintf("link duration must be at least %d day", MinLinkDays))
		}
		return MaxLinkDays, nil
	}
	if err != nil {
		return 0, apperror.InvalidInput("days", fmt.Sprintf("link duration %q is not a whole number of days", raw))
	}
	return days, nil
}

// ClampLinkDays bounds a positive duration to MaxLinkDays. Non-positive values
// are rejected.
func ClampLinkDays(days int) (int, error) {
	if days < MinLinkDays {
		return 0, apperror.InvalidInput("days",
			fmt.Sprintf("link duration must be at least %d day", MinLinkDays))
	}
	if days > MaxLinkDays {
		return MaxLinkDays, nil
	}
	return days, nil
}

// IssueLink creates or replaces the share link. The expiry becomes
// now + clamp(days) and the snippet becomes public whatever it was before.
// Re-issuing replaces the previous expiry.
func IssueLink(_ State, days int, now time.Time) (Patch, error) {
	days, err := ClampLinkDays(days)
	if err != nil {
		return Patch{}, err
	}
	expires := now.Add(time.Duration(days) * day)
	return Patch{
		IsPublic:        boolPtr(DerivePublic(LinkActive, false)),
		ExpiresSet:      true,
		PublicExpiresAt: &expires,
	}, nil
}

// RevokeLink clears the share link. The snippet stays public only if it is in
// the community catalog.
func RevokeLink(s State) Patch {
	return Patch{
		IsPublic:   boolPtr(DerivePublic(LinkNone, s.InCommunity)),
		ExpiresSet: true,
	}
}

// Publish lists the snippet in the community catalog.
func Publish(_ State) Patch {
	return Patch{
		InCommunity: boolPtr(true),
		IsPublic:    boolPtr(DerivePublic(LinkNone, true)),
	}
}

// Retract removes the snippet from the community catalog. It stays public only
// while its link is active at now.
func Retract(s State, now time.Time) Patch {
	return Patch{
		InCommunity: boolPtr(false),
		IsPublic:    boolPtr(DerivePublic(ComputeLinkState(now, s.PublicExpiresAt), false)),
	}
}

// Consistent reports whether the persisted IsPublic matches the derived value
// at now.
func Consistent(s State, now time.Time) bool {
	return s.IsPublic == IsVisible(s, now)
}

func boolPtr(b bool) *bool { return &b }
