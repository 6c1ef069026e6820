package domain

import "time"

// RoomStore is the payload of a room document in the system room collection.
// The envelope's order is the room's public numeric slot.
type RoomStore struct {
	Name          string         `mapstructure:"name" json:"name"`
	BcdiceServer  string         `mapstructure:"bcdiceServer" json:"bcdiceServer"`
	BcdiceVersion string         `mapstructure:"bcdiceVersion" json:"bcdiceVersion"`
	System        string         `mapstructure:"system" json:"system"`
	Extend        map[string]any `mapstructure:"extend" json:"extend,omitempty"`

	// MemberNum counts distinct users that ever logged into the room;
	// LoggedIn counts users with at least one live session right now.
	MemberNum int `mapstructure:"memberNum" json:"memberNum"`
	LoggedIn  int `mapstructure:"loggedIn" json:"loggedIn"`

	// RoomCollectionPrefix namespaces every other collection of the room;
	// StorageID namespaces the room's uploaded binary objects.
	RoomCollectionPrefix string `mapstructure:"roomCollectionPrefix" json:"roomCollectionPrefix"`
	StorageID            string `mapstructure:"storageId" json:"storageId"`

	RoomPassword string `mapstructure:"roomPassword" json:"roomPassword,omitempty"`
}

type CreateRoomRequest struct {
	RoomKey            string         `json:"roomKey"`
	RoomPassword       string         `json:"roomPassword"`
	Name               string         `json:"name"`
	BcdiceServer       string         `json:"bcdiceServer"`
	BcdiceVersion      string         `json:"bcdiceVersion"`
	System             string         `json:"system"`
	Extend             map[string]any `json:"extend,omitempty"`
	RoomCreatePassword *string        `json:"roomCreatePassword,omitempty"`
}

type RoomLoginRequest struct {
	RoomNo       int    `json:"roomNo"`
	RoomPassword string `json:"roomPassword"`
}

type DeleteRoomRequest struct {
	RoomNo       int    `json:"roomNo"`
	RoomPassword string `json:"roomPassword"`
}

// RoomJoinResponse answers both room creation and room login: the session
// token plus the room's current users.
type RoomJoinResponse struct {
	Token    string           `json:"token"`
	UserList []ClientUserData `json:"userList"`
}

// ClientRoomDetail is the payload-derived part of a room notification; nil
// for rooms that are only touched.
type ClientRoomDetail struct {
	RoomName  string         `json:"roomName"`
	MemberNum int            `json:"memberNum"`
	LoggedIn  int            `json:"loggedIn"`
	Extend    map[string]any `json:"extend,omitempty"`
}

// ClientRoomData is the client-facing view of one room slot.
type ClientRoomData struct {
	RoomNo     int               `json:"roomNo"`
	Status     Status            `json:"status"`
	Operator   string            `json:"operator"` // connection id of the acting client
	CreateTime time.Time         `json:"createTime"`
	UpdateTime *time.Time        `json:"updateTime,omitempty"`
	Detail     *ClientRoomDetail `json:"detail"`
}

type AppServerInfo struct {
	Title        string   `json:"title" yaml:"title"`
	Descriptions []string `json:"descriptions" yaml:"descriptions"`
	TermsOfUse   string   `json:"termsOfUse" yaml:"termsOfUse"`
}

type GetRoomListResponse struct {
	RoomList                 []ClientRoomData `json:"roomList"`
	MaxRoomNo                int              `json:"maxRoomNo"`
	AppServerInfo            AppServerInfo    `json:"appServerInfo"`
	IsNeedRoomCreatePassword bool             `json:"isNeedRoomCreatePassword"`
}
