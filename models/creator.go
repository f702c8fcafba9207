package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/bsontype"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CreatorKind tags which form a Creator holds.
type CreatorKind string

const (
	CreatorRefKind      CreatorKind = "ref"
	CreatorResolvedKind CreatorKind = "resolved"
)

// Profile is the public, denormalized view of a user.
type Profile struct {
	ID    primitive.ObjectID `json:"id"`
	Name  string             `json:"name"`
	Email string             `json:"email,omitempty"`
}

// Creator is the owner of an issue: either a bare reference or a resolved
// profile. Storage always holds the reference; the HTTP layer resolves it.
type Creator struct {
	kind    CreatorKind
	id      primitive.ObjectID
	profile Profile
}

func CreatorRef(id primitive.ObjectID) Creator {
	return Creator{kind: CreatorRefKind, id: id}
}

func ResolvedCreator(p Profile) Creator {
	return Creator{kind: CreatorResolvedKind, id: p.ID, profile: p}
}

func (c Creator) Kind() CreatorKind {
	if c.kind == "" {
		return CreatorRefKind
	}
	return c.kind
}

func (c Creator) ID() primitive.ObjectID { return c.id }

// Profile returns the resolved profile, if any.
func (c Creator) Profile() (Profile, bool) {
	if c.kind != CreatorResolvedKind {
		return Profile{}, false
	}
	return c.profile, true
}

// DisplayName falls back to a placeholder for unresolved creators.
func (c Creator) DisplayName() string {
	if p, ok := c.Profile(); ok && p.Name != "" {
		return p.Name
	}
	return "Unknown User"
}

// MarshalJSON writes a ref as its hex id and a resolved creator as an object.
func (c Creator) MarshalJSON() ([]byte, error) {
	if p, ok := c.Profile(); ok {
		return json.Marshal(p)
	}
	if c.id.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(c.id.Hex())
}

func (c *Creator) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*c = Creator{}
		return nil
	case data[0] == '"':
		var hex string
		if err := json.Unmarshal(data, &hex); err != nil {
			return err
		}
		id, err := primitive.ObjectIDFromHex(hex)
		if err != nil {
			return fmt.Errorf("createdBy: %w", err)
		}
		*c = CreatorRef(id)
		return nil
	case data[0] == '{':
		var p Profile
		if err := json.Unmarshal(data, &p); err != nil {
			return err
		}
		*c = ResolvedCreator(p)
		return nil
	default:
		return fmt.Errorf("createdBy: unexpected JSON %q", data)
	}
}

// MarshalBSONValue persists only the reference.
func (c Creator) MarshalBSONValue() (bsontype.Type, []byte, error) {
	return bson.MarshalValue(c.id)
}

func (c *Creator) UnmarshalBSONValue(t bsontype.Type, data []byte) error {
	id, ok := bson.RawValue{Type: t, Value: data}.ObjectIDOK()
	if !ok {
		return fmt.Errorf("createdBy: expected ObjectID, got %s", t)
	}
	*c = CreatorRef(id)
	return nil
}
