// Package visibility decides whether a timeline item belongs in the local
// user's view. The rules run without a server round-trip, so during the
// window where the viewer's party id is not yet resolved they deliberately
// over-accept: a later authoritative reload corrects an over-accepted item,
// while a silently dropped message would stay lost.
package visibility

import "github.com/dany2315/BailNotarie-sub000/internal/models"

// Visible dispatches on the item kind.
func Visible(viewer models.Viewer, item models.TimelineItem) bool {
	if item.Kind == models.KindMessage {
		return MessageVisible(viewer, item.Message)
	}
	return RequestVisible(viewer, item.Request)
}

// MessageVisible applies the ordered rules: own messages always show;
// an explicit recipient requires membership once the party id is known;
// an unresolved party id falls back to the counterpart-role check;
// otherwise the message is a role broadcast and shows.
func MessageVisible(viewer models.Viewer, m *models.Message) bool {
	if m.SenderID == viewer.UserID {
		return true
	}
	if !m.Broadcast() && viewer.PartyID != "" {
		return m.RecipientPartyID == viewer.PartyID
	}
	if viewer.PartyID == "" {
		return counterpartRole(viewer, m.SenderRole)
	}
	return true
}

// RequestVisible mirrors the message rules; a non-empty explicit target
// list overrides the role-broadcast flags.
func RequestVisible(viewer models.Viewer, r *models.DocumentRequest) bool {
	if r.CreatedByID == viewer.UserID {
		return true
	}
	if r.Targeted() && viewer.PartyID != "" {
		for _, id := range r.TargetPartyIDs {
			if id == viewer.PartyID {
				return true
			}
		}
		return false
	}
	if viewer.PartyID == "" {
		return counterpartRole(viewer, r.CreatedByRole)
	}
	switch viewer.Role {
	case models.RoleProprietaire:
		return r.TargetProprietaire
	case models.RoleLocataire:
		return r.TargetLocataire
	default:
		// the notary sees every role-broadcast request
		return true
	}
}

// counterpartRole accepts items authored by the opposite side of the
// conversation while the party id race is unresolved.
func counterpartRole(viewer models.Viewer, author models.Role) bool {
	if viewer.Role.Professional() {
		return !author.Professional()
	}
	return author.Professional()
}
