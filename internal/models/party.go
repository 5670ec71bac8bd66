package models

// Role of a message or request author within a conversation.
type Role string

const (
	RoleNotaire      Role = "NOTAIRE"
	RoleProprietaire Role = "PROPRIETAIRE"
	RoleLocataire    Role = "LOCATAIRE"
)

// Professional reports whether the role is the notary side of the
// conversation rather than a lease party.
func (r Role) Professional() bool { return r == RoleNotaire }

// Viewer identifies the local user evaluating visibility. PartyID stays
// empty until the data service resolves it, which can race the first
// channel events after connect.
type Viewer struct {
	UserID  string
	PartyID string
	Role    Role
}

// Counterpart is the other participant of the conversation.
type Counterpart struct {
	ID    string
	Name  string
	Email string
	Role  Role
}
