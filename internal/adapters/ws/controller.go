// Package ws is the websocket transport: it upgrades connections, assigns
// connection ids, dispatches request events into the engine and answers each
// one with a result-<event> message. It also implements the engine's
// Transport so server-initiated notifications ride the same connections.
package ws

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/oklog/ulid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/HillTopTRPG/quoridorn-server-lib/internal/core"
	"github.com/HillTopTRPG/quoridorn-server-lib/internal/domain"
)

// inbound is the wire shape of a client request.
type inbound struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// outbound is the wire shape of everything the server sends.
type outbound struct {
	Event string `json:"event"`
	Error any    `json:"error"`
	Data  any    `json:"data"`
}

type Controller struct {
	Core *core.Core

	mu     sync.RWMutex
	conns  map[string]*connection
	logger zerolog.Logger
}

func NewController() *Controller {
	return &Controller{
		conns:  make(map[string]*connection),
		logger: log.With().Str("module", "ws").Logger(),
	}
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// HandleWS upgrades the request and runs the connection until it drops.
func (ctl *Controller) HandleWS(c *gin.Context) {
	raw, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		ctl.logger.Warn().Err(err).Msg("upgrade failed")
		return
	}
	connID := ulid.MustNew(ulid.Now(), rand.Reader).String()
	conn := newConnection(connID, raw)

	ctx, cancel := context.WithCancel(c.Request.Context())

	ctl.mu.Lock()
	ctl.conns[connID] = conn
	ctl.mu.Unlock()

	if err := ctl.Core.SocketIn(ctx, connID); err != nil {
		ctl.logger.Error().Err(err).Str("socketId", connID).Msg("socket register failed")
		ctl.drop(connID, conn, cancel)
		return
	}

	conn.startWriteLoop(ctx)
	ctl.sendTo(conn, "server-ready", nil, map[string]any{"ok": true})
	go ctl.readLoop(ctx, connID, conn, cancel)
}

func (ctl *Controller) readLoop(ctx context.Context, connID string, conn *connection, cancel context.CancelFunc) {
	defer func() {
		if err := ctl.Core.SocketOut(context.Background(), connID); err != nil {
			ctl.logger.Error().Err(err).Str("socketId", connID).Msg("socket teardown failed")
		}
		ctl.drop(connID, conn, cancel)
	}()
	for {
		select {
		case <-ctx.Done():
			return
		default:
			_, data, err := conn.conn.ReadMessage()
			if err != nil {
				return
			}
			ctl.handleMessage(ctx, connID, data)
		}
	}
}

func (ctl *Controller) drop(connID string, conn *connection, cancel context.CancelFunc) {
	ctl.mu.Lock()
	delete(ctl.conns, connID)
	ctl.mu.Unlock()
	cancel()
	conn.Close()
}

func (ctl *Controller) handleMessage(ctx context.Context, connID string, data []byte) {
	var msg inbound
	if err := json.Unmarshal(data, &msg); err != nil {
		ctl.logger.Warn().Err(err).Str("socketId", connID).Msg("bad json")
		return
	}
	payload, err := ctl.dispatch(ctx, connID, msg)
	ctl.reply(connID, msg.Event, err, payload)
}

func (ctl *Controller) dispatch(ctx context.Context, connID string, msg inbound) (any, error) {
	switch msg.Event {
	case "get-version":
		return map[string]any{"version": ctl.Core.ServerVersion()}, nil

	case "get-room-list":
		var req struct {
			Version string `json:"version"`
		}
		if err := decode(msg.Data, &req); err != nil {
			return nil, err
		}
		return ctl.Core.GetRoomList(ctx, connID, req.Version)

	case "room-api-touch-room":
		var req struct {
			RoomNo int `json:"roomNo"`
		}
		if err := decode(msg.Data, &req); err != nil {
			return nil, err
		}
		return ctl.Core.TouchRoom(ctx, connID, req.RoomNo)

	case "room-api-create-room":
		var req domain.CreateRoomRequest
		if err := decode(msg.Data, &req); err != nil {
			return nil, err
		}
		return ctl.Core.CreateRoom(ctx, connID, req)

	case "room-api-login-room":
		var req domain.RoomLoginRequest
		if err := decode(msg.Data, &req); err != nil {
			return nil, err
		}
		return ctl.Core.LoginRoom(ctx, connID, req)

	case "room-api-delete-room":
		var req domain.DeleteRoomRequest
		if err := decode(msg.Data, &req); err != nil {
			return nil, err
		}
		return nil, ctl.Core.DeleteRoom(ctx, connID, req)

	case "user-api-login-user":
		var req domain.UserLoginRequest
		if err := decode(msg.Data, &req); err != nil {
			return nil, err
		}
		return ctl.Core.LoginUser(ctx, connID, req)

	case "db-api-get":
		var req struct {
			CollectionSuffix string `json:"collectionSuffix"`
		}
		if err := decode(msg.Data, &req); err != nil {
			return nil, err
		}
		return ctl.Core.DataGet(ctx, connID, req.CollectionSuffix)

	case "db-api-insert":
		var req domain.AddDirectRequest
		if err := decode(msg.Data, &req); err != nil {
			return nil, err
		}
		return ctl.Core.DataInsert(ctx, connID, req, true, 0, 0)

	case "db-api-update":
		var req domain.UpdateDataRequest
		if err := decode(msg.Data, &req); err != nil {
			return nil, err
		}
		return nil, ctl.Core.DataUpdate(ctx, connID, req, true, 0, 0)

	case "db-api-delete":
		var req domain.DeleteDataRequest
		if err := decode(msg.Data, &req); err != nil {
			return nil, err
		}
		return nil, ctl.Core.DataDelete(ctx, connID, req, true, 0, 0)

	case "media-api-upload":
		var req domain.UploadMediaRequest
		if err := decode(msg.Data, &req); err != nil {
			return nil, err
		}
		return ctl.Core.UploadMedia(ctx, connID, req)

	case "socket-api-emit-event":
		var req domain.SendDataRequest
		if err := decode(msg.Data, &req); err != nil {
			return nil, err
		}
		return nil, ctl.Core.SendData(ctx, connID, req)

	default:
		return nil, core.NewAppError("unknown event", msg.Event)
	}
}

func decode(data json.RawMessage, out any) error {
	if len(data) == 0 {
		return core.NewAppError("missing request data")
	}
	if err := json.Unmarshal(data, out); err != nil {
		return core.NewAppError("bad request data", err.Error())
	}
	return nil
}

// reply answers a request on the caller's own connection, success or not.
func (ctl *Controller) reply(connID, event string, err error, payload any) {
	ctl.mu.RLock()
	conn := ctl.conns[connID]
	ctl.mu.RUnlock()
	if conn == nil {
		return
	}
	var errObj any
	if err != nil {
		errObj = errorObject(err)
		if _, ok := core.AsAppError(err); ok {
			ctl.logger.Info().Err(err).Str("socketId", connID).Str("event", event).Msg("request refused")
		} else {
			ctl.logger.Error().Err(err).Str("socketId", connID).Str("event", event).Msg("request failed")
		}
		payload = nil
	}
	ctl.sendTo(conn, "result-"+event, errObj, payload)
}

func errorObject(err error) any {
	if appErr, ok := core.AsAppError(err); ok {
		return map[string]any{"type": "application", "message": appErr.Message, "detail": appErr.Detail}
	}
	var sysErr *core.SysError
	if errors.As(err, &sysErr) {
		return map[string]any{"type": "system", "message": sysErr.Message, "detail": sysErr.Detail}
	}
	return map[string]any{"type": "system", "message": err.Error()}
}

func (ctl *Controller) sendTo(conn *connection, event string, errObj, payload any) error {
	raw, err := json.Marshal(outbound{Event: event, Error: errObj, Data: payload})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}
	return conn.TrySend(raw)
}

// ToConnection implements core.Transport.
func (ctl *Controller) ToConnection(connID, event string, errObj, payload any) error {
	ctl.mu.RLock()
	conn := ctl.conns[connID]
	ctl.mu.RUnlock()
	if conn == nil {
		return fmt.Errorf("no connection %s", connID)
	}
	return ctl.sendTo(conn, event, errObj, payload)
}

func (ctl *Controller) ToAll(event string, errObj, payload any) error {
	return ctl.broadcast("", event, errObj, payload)
}

func (ctl *Controller) ToAllExcept(connID, event string, errObj, payload any) error {
	return ctl.broadcast(connID, event, errObj, payload)
}

func (ctl *Controller) broadcast(exceptID, event string, errObj, payload any) error {
	raw, err := json.Marshal(outbound{Event: event, Error: errObj, Data: payload})
	if err != nil {
		return fmt.Errorf("marshal %s: %w", event, err)
	}
	ctl.mu.RLock()
	defer ctl.mu.RUnlock()
	for id, conn := range ctl.conns {
		if id == exceptID {
			continue
		}
		if err := conn.TrySend(raw); err != nil {
			ctl.logger.Warn().Err(err).Str("socketId", id).Str("event", event).Msg("send skipped")
		}
	}
	return nil
}
