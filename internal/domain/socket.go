package domain

import "time"

// SocketStore is the one ephemeral record kept per live connection. It is
// created on connect, patched as the connection touches/creates/joins a room
// and logs a user in, and deleted on disconnect.
type SocketStore struct {
	SocketID             string    `bson:"socketId" json:"socketId"`
	ConnectTime          time.Time `bson:"connectTime" json:"connectTime"`
	RoomKey              *string   `bson:"roomKey" json:"roomKey"`
	RoomNo               *int      `bson:"roomNo" json:"roomNo"`
	RoomCollectionPrefix *string   `bson:"roomCollectionPrefix" json:"roomCollectionPrefix"`
	StorageID            *string   `bson:"storageId" json:"storageId"`
	UserKey              *string   `bson:"userKey" json:"userKey"`
}
