package core

import (
	"context"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/HillTopTRPG/quoridorn-server-lib/internal/domain"
	"github.com/HillTopTRPG/quoridorn-server-lib/internal/password"
)

const userCollectionSuffix = "user-list"

// anonymousUserName is given to logins with a blank name, matching what the
// client shows for them.
const anonymousUserName = "名無し"

// LoginUser authenticates a user inside the room the connection has joined,
// creating the user on first login. Counters move with the login: memberNum
// counts distinct users ever, loggedIn counts users with a live session.
func (c *Core) LoginUser(ctx context.Context, connID string, req domain.UserLoginRequest) (*domain.UserLoginResponse, error) {
	prefix, info, err := c.loggedInPrefix(ctx, connID)
	if err != nil {
		return nil, err
	}
	if info.RoomKey == nil {
		return nil, NewAppError("not yet logged in", connID)
	}
	name := req.Name
	if name == "" {
		name = anonymousUserName
	}
	col := PhysicalName(prefix, userCollectionSuffix)
	doc, err := c.findOneData(ctx, col, bson.M{"data.name": name})
	if err != nil {
		return nil, err
	}

	var us domain.UserStore
	var userKey, token string
	memberDelta, loggedInDelta := 0, 0

	if doc != nil {
		if err := domain.DecodePayload(doc.Data, &us); err != nil {
			return nil, WrapSysError(err, "failure decode user")
		}
		ok, err := password.Verify(us.Password, req.Password)
		if err != nil {
			return nil, WrapSysError(err, "failure verify password")
		}
		if !ok {
			return nil, NewAppError("invalid password")
		}
		userKey = doc.Key
		token, err = c.issueToken(ctx, domain.TokenScopeUser, info, &userKey)
		if err != nil {
			return nil, err
		}
		us.Login++
		us.Token = token
		if us.Login == 1 {
			loggedInDelta = 1
		}
		payload, err := domain.EncodePayload(&us)
		if err != nil {
			return nil, WrapSysError(err, "failure encode user")
		}
		doc, err = c.UpdateData(ctx, connID, ByName(col), domain.Target(domain.TargetNone),
			domain.UpdateParam{Key: userKey, Data: payload})
		if err != nil {
			return nil, err
		}
	} else {
		hashed, err := password.Hash(req.Password)
		if err != nil {
			return nil, WrapSysError(err, "failure hash password")
		}
		userKey = uuid.NewString()
		token, err = c.issueToken(ctx, domain.TokenScopeUser, info, &userKey)
		if err != nil {
			return nil, err
		}
		us = domain.UserStore{
			Name:     name,
			Type:     domain.NormalizeUserType(req.Type),
			Login:    1,
			Password: hashed,
			Token:    token,
		}
		payload, err := domain.EncodePayload(&us)
		if err != nil {
			return nil, WrapSysError(err, "failure encode user")
		}
		noOwner := ""
		doc, err = c.AddData(ctx, connID, ByName(col), domain.Target(domain.TargetNone), false,
			domain.AddParam{Key: userKey, OwnerType: &noOwner, Data: payload})
		if err != nil {
			return nil, err
		}
		memberDelta, loggedInDelta = 1, 1
	}

	if err := c.bindSocketUser(ctx, info, userKey); err != nil {
		return nil, err
	}
	if memberDelta != 0 || loggedInDelta != 0 {
		if err := c.adjustRoomCounters(ctx, connID, *info.RoomKey, memberDelta, loggedInDelta); err != nil {
			return nil, err
		}
	}
	c.notifyUserUpdate(ctx, connID, doc, &us)
	c.logger.Info().Str("socketId", connID).Str("userName", name).Str("userType", string(us.Type)).Msg("user login")
	return &domain.UserLoginResponse{UserKey: userKey, Token: token}, nil
}

// logoutUser is the disconnect half of LoginUser. It never deletes the user;
// only the live-session count moves.
func (c *Core) logoutUser(ctx context.Context, info *domain.SocketStore) error {
	if info.RoomCollectionPrefix == nil || info.UserKey == nil || info.RoomKey == nil {
		return NewSysError("socket not in a room", info.SocketID)
	}
	col := PhysicalName(*info.RoomCollectionPrefix, userCollectionSuffix)
	doc, err := c.findOneData(ctx, col, bson.M{"key": *info.UserKey})
	if err != nil {
		return err
	}
	if doc == nil {
		return NewSysError("no such user", *info.UserKey)
	}
	var us domain.UserStore
	if err := domain.DecodePayload(doc.Data, &us); err != nil {
		return WrapSysError(err, "failure decode user")
	}
	if us.Login > 0 {
		us.Login--
	}
	payload, err := domain.EncodePayload(&us)
	if err != nil {
		return WrapSysError(err, "failure encode user")
	}
	doc, err = c.UpdateData(ctx, info.SocketID, ByName(col), domain.Target(domain.TargetNone),
		domain.UpdateParam{Key: *info.UserKey, Data: payload})
	if err != nil {
		return err
	}
	if us.Login == 0 {
		if err := c.adjustRoomCounters(ctx, info.SocketID, *info.RoomKey, 0, -1); err != nil {
			return err
		}
	}
	c.notifyUserUpdate(ctx, info.SocketID, doc, &us)
	return nil
}

// roomUserList is the client view of a tenant's current users, handed back to
// a connection entering the room. Passwords and tokens stay out of it.
func (c *Core) roomUserList(ctx context.Context, prefix string) ([]domain.ClientUserData, error) {
	col := PhysicalName(prefix, userCollectionSuffix)
	var docs []domain.StoreData
	if err := c.store.Find(ctx, col, bson.M{}, true, &docs); err != nil {
		return nil, WrapSysError(err, "failure read users")
	}
	list := make([]domain.ClientUserData, 0, len(docs))
	for i := range docs {
		var us domain.UserStore
		if err := domain.DecodePayload(docs[i].Data, &us); err != nil {
			return nil, WrapSysError(err, "failure decode user")
		}
		list = append(list, domain.ClientUserData{
			Key:     docs[i].Key,
			RefList: docs[i].RefList,
			Name:    us.Name,
			Type:    us.Type,
			Login:   us.Login,
		})
	}
	return list, nil
}

// notifyUserUpdate tells the caller (key included) and the room mates (key
// withheld) about a user state change.
func (c *Core) notifyUserUpdate(ctx context.Context, connID string, doc *domain.StoreData, us *domain.UserStore) {
	view := domain.ClientUserData{
		RefList: doc.RefList,
		Name:    us.Name,
		Type:    us.Type,
		Login:   us.Login,
	}
	if err := c.EmitEvent(ctx, connID, domain.Target(domain.TargetRoomMate), "notify-user-update", nil, view); err != nil {
		c.logger.Warn().Err(err).Str("socketId", connID).Msg("user update notify failed")
	}
	view.Key = doc.Key
	if err := c.EmitEvent(ctx, connID, domain.Target(domain.TargetSelf), "notify-user-update", nil, view); err != nil {
		c.logger.Warn().Err(err).Str("socketId", connID).Msg("user update notify failed")
	}
}
