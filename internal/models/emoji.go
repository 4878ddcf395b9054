package models

// EmojiParentType is the kind of owner an emoji has
type EmojiParentType string

const (
	EmojiParentServer   EmojiParentType = "Server"
	EmojiParentDetached EmojiParentType = "Detached"
)

// EmojiParent is the owner of an emoji
type EmojiParent struct {
	Type EmojiParentType `json:"type" bson:"type"`
	ID   string          `json:"id,omitempty" bson:"id,omitempty"`
}

// Emoji is a custom emoji
type Emoji struct {
	ID        string      `json:"_id" bson:"_id"`
	Parent    EmojiParent `json:"parent" bson:"parent"`
	CreatorID string      `json:"creator_id" bson:"creator_id"`
	Name      string      `json:"name" bson:"name"`
	Animated  bool        `json:"animated,omitempty" bson:"animated,omitempty"`
	NSFW      bool        `json:"nsfw,omitempty" bson:"nsfw,omitempty"`
}
