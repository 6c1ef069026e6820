package domain

import (
	"encoding/json"
	"fmt"
)

// SendTarget is the symbolic audience of a broadcast: one of the named
// symbols, or an explicit list of connection ids. On the wire it is either a
// JSON string or a JSON array of strings.
type SendTarget struct {
	Symbol string
	IDs    []string
}

const (
	TargetSelf     = "self"
	TargetRoom     = "room"
	TargetRoomMate = "room-mate"
	TargetAll      = "all"
	TargetOther    = "other"
	TargetNone     = "none"
)

func Target(symbol string) SendTarget     { return SendTarget{Symbol: symbol} }
func TargetList(ids ...string) SendTarget { return SendTarget{IDs: ids} }

func (t SendTarget) IsList() bool { return t.Symbol == "" }

func (t *SendTarget) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		switch s {
		case TargetSelf, TargetRoom, TargetRoomMate, TargetAll, TargetOther, TargetNone:
			*t = SendTarget{Symbol: s}
			return nil
		}
		return fmt.Errorf("unknown send target %q", s)
	}
	var ids []string
	if err := json.Unmarshal(b, &ids); err != nil {
		return fmt.Errorf("send target must be a string or a string list")
	}
	*t = SendTarget{IDs: ids}
	return nil
}

func (t SendTarget) MarshalJSON() ([]byte, error) {
	if t.IsList() {
		return json.Marshal(t.IDs)
	}
	return json.Marshal(t.Symbol)
}

// AddDirectRequest inserts N documents into one collection in request order.
type AddDirectRequest struct {
	CollectionSuffix string     `json:"collectionSuffix"`
	Share            SendTarget `json:"share"`
	Force            bool       `json:"force"`
	List             []AddParam `json:"list"`
}

type UpdateDataRequest struct {
	CollectionSuffix string        `json:"collectionSuffix"`
	Share            SendTarget    `json:"share"`
	List             []UpdateParam `json:"list"`
}

type DeleteDataRequest struct {
	CollectionSuffix string     `json:"collectionSuffix"`
	Share            SendTarget `json:"share"`
	List             []string   `json:"list"`
}

// SendDataRequest relays an arbitrary named event to a target audience.
type SendDataRequest struct {
	Target SendTarget      `json:"target"`
	Event  string          `json:"event"`
	Error  any             `json:"error"`
	Data   json.RawMessage `json:"data"`
}
