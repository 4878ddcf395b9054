package models

import "encoding/json"

// File is an uploaded attachment reference
type File struct {
	ID          string `json:"_id" bson:"_id"`
	Tag         string `json:"tag" bson:"tag"`
	Filename    string `json:"filename" bson:"filename"`
	ContentType string `json:"content_type" bson:"content_type"`
	Size        int64  `json:"size" bson:"size"`
}

// OverrideField is the stored form of a permission override
type OverrideField struct {
	Allow int64 `json:"a" bson:"a"`
	Deny  int64 `json:"d" bson:"d"`
}

// Opaque holds a document the socket forwards without interpreting,
// such as messages, reports, webhooks and settings.
type Opaque json.RawMessage

// MarshalJSON returns the raw document, or null when empty
func (o Opaque) MarshalJSON() ([]byte, error) {
	if len(o) == 0 {
		return []byte("null"), nil
	}
	return o, nil
}

// UnmarshalJSON stores a copy of the raw document
func (o *Opaque) UnmarshalJSON(data []byte) error {
	*o = append((*o)[:0], data...)
	return nil
}
