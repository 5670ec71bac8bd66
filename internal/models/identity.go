package models

import "encoding/json"

// Identity is the id carried by every timeline item. It is either a
// provisional id minted locally at submit time, or the real id assigned by
// the data service. Provisional ids never cross the wire: anything decoded
// from a channel event or an RPC response is confirmed.
type Identity struct {
	value       string
	provisional bool
}

func Provisional(tempID string) Identity {
	return Identity{value: tempID, provisional: true}
}

func Confirmed(realID string) Identity {
	return Identity{value: realID}
}

func (id Identity) String() string { return id.value }

func (id Identity) IsProvisional() bool { return id.provisional }

func (id Identity) IsZero() bool { return id.value == "" }

func (id Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal(id.value)
}

func (id *Identity) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*id = Confirmed(s)
	return nil
}
