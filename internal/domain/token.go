package domain

import "time"

// TokenScope says what a token grants access to.
type TokenScope string

const (
	TokenScopeServer TokenScope = "server"
	TokenScopeRoom   TokenScope = "room"
	TokenScopeUser   TokenScope = "user"
)

// TokenStore is one issued access token; expired rows are swept periodically.
type TokenStore struct {
	Type                 TokenScope `bson:"type" json:"type"`
	Token                string     `bson:"token" json:"token"`
	RoomCollectionPrefix *string    `bson:"roomCollectionPrefix" json:"roomCollectionPrefix"`
	RoomNo               *int       `bson:"roomNo" json:"roomNo"`
	StorageID            *string    `bson:"storageId" json:"storageId"`
	UserKey              *string    `bson:"userKey" json:"userKey"`
	Expires              time.Time  `bson:"expires" json:"expires"`
}
