// Package domain contains the data shapes shared by the engine, the store
// backends and the transport. No logic beyond construction and codec helpers.
package domain

import (
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// Status is the lifecycle state of a stored document.
type Status string

const (
	StatusInitialTouched Status = "initial-touched"
	StatusAdded          Status = "added"
	StatusModified       Status = "modified"
)

// DataReference identifies a document by collection suffix and key. It is
// both the unit stored in a refList and the unit passed to the reference
// graph operations.
type DataReference struct {
	Type string `bson:"type" json:"type" mapstructure:"type"`
	Key  string `bson:"key" json:"key" mapstructure:"key"`
}

type PermissionNodeType string

const (
	PermissionNodeGroup PermissionNodeType = "group"
	PermissionNodeActor PermissionNodeType = "actor"
	PermissionNodeOwner PermissionNodeType = "owner"
)

type PermissionRuleType string

const (
	PermissionRuleNone  PermissionRuleType = "none"
	PermissionRuleAllow PermissionRuleType = "allow"
	PermissionRuleDeny  PermissionRuleType = "deny"
)

type PermissionNode struct {
	Type PermissionNodeType `bson:"type" json:"type"`
	Key  string             `bson:"key,omitempty" json:"key,omitempty"`
}

type PermissionRule struct {
	Type PermissionRuleType `bson:"type" json:"type"`
	List []PermissionNode   `bson:"list" json:"list"`
}

// Permission is the view/edit/chmod rule triple attached to every document.
type Permission struct {
	View  PermissionRule `bson:"view" json:"view"`
	Edit  PermissionRule `bson:"edit" json:"edit"`
	Chmod PermissionRule `bson:"chmod" json:"chmod"`
}

// DefaultPermission is unrestricted-by-default: no allow list, no deny list.
func DefaultPermission() *Permission {
	return &Permission{
		View:  PermissionRule{Type: PermissionRuleNone, List: []PermissionNode{}},
		Edit:  PermissionRule{Type: PermissionRuleNone, List: []PermissionNode{}},
		Chmod: PermissionRule{Type: PermissionRuleNone, List: []PermissionNode{}},
	}
}

// StoreData is the envelope wrapped around every stored payload. The envelope
// fields are exclusively engine-managed; payload fields belong to whichever
// feature defines the payload shape.
//
// Invariant: Status == StatusInitialTouched implies Data == nil (a reserved
// but empty slot); any other status implies Data != nil.
type StoreData struct {
	Collection string          `bson:"collection" json:"collection"`
	Key        string          `bson:"key" json:"key"`
	Order      int             `bson:"order" json:"order"`
	OwnerType  *string         `bson:"ownerType" json:"ownerType"`
	Owner      *string         `bson:"owner" json:"owner"`
	Permission *Permission     `bson:"permission" json:"permission"`
	Status     Status          `bson:"status" json:"status"`
	CreateTime time.Time       `bson:"createTime" json:"createTime"`
	UpdateTime *time.Time      `bson:"updateTime" json:"updateTime"`
	RefList    []DataReference `bson:"refList" json:"refList"`
	Data       map[string]any  `bson:"data" json:"data"`
}

// AddParam is the caller-controllable subset of an envelope for an add.
// Nil pointers mean "use the engine default"; a pointer to the empty string
// on OwnerType/Owner means "explicitly no owner".
type AddParam struct {
	Key          string          `json:"key,omitempty"`
	Order        *int            `json:"order,omitempty"`
	OwnerType    *string         `json:"ownerType,omitempty"`
	Owner        *string         `json:"owner,omitempty"`
	Permission   *Permission     `json:"permission,omitempty"`
	Data         map[string]any  `json:"data"`
	ScanSuffixes []string        `json:"-"`
}

// UpdateParam is the caller-controllable subset of an envelope for an update.
// Data, when non-nil, is shallow-merged field-wise into the existing payload.
type UpdateParam struct {
	Key        string         `json:"key"`
	Order      *int           `json:"order,omitempty"`
	OwnerType  *string        `json:"ownerType,omitempty"`
	Owner      *string        `json:"owner,omitempty"`
	Permission *Permission    `json:"permission,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
}

// DecodePayload maps a stored payload onto a typed payload struct. Weak
// typing absorbs the numeric widenings the bson round trip introduces.
func DecodePayload(in map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	return dec.Decode(in)
}

// EncodePayload turns a typed payload struct into the generic map shape the
// envelope carries.
func EncodePayload(in any) (map[string]any, error) {
	out := map[string]any{}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{Result: &out})
	if err != nil {
		return nil, err
	}
	if err := dec.Decode(in); err != nil {
		return nil, err
	}
	return out, nil
}
