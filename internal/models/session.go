package models

// Session is an issued login session, looked up by token hash
type Session struct {
	ID        string `json:"_id" bson:"_id"`
	UserID    string `json:"user_id" bson:"user_id"`
	TokenHash string `json:"token_hash" bson:"token_hash"`
	Name      string `json:"name,omitempty" bson:"name,omitempty"`
}
