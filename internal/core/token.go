package core

import (
	"context"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/HillTopTRPG/quoridorn-server-lib/internal/domain"
)

// issueToken signs a scoped access token and records it so it can be revoked
// by the expiry sweeper. Room and user scopes carry the caller's current
// room binding.
func (c *Core) issueToken(ctx context.Context, scope domain.TokenScope, info *domain.SocketStore, userKey *string) (string, error) {
	expires := time.Now().Add(c.cfg.TokenExpires)
	claims := jwt.MapClaims{
		"scope": string(scope),
		"exp":   jwt.NewNumericDate(expires),
		"iat":   jwt.NewNumericDate(time.Now()),
	}
	if info != nil && info.RoomNo != nil {
		claims["roomNo"] = *info.RoomNo
	}
	if userKey != nil {
		claims["userKey"] = *userKey
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(c.cfg.TokenSecret))
	if err != nil {
		return "", WrapSysError(err, "failure sign token")
	}
	row := domain.TokenStore{
		Type:    scope,
		Token:   signed,
		Expires: expires,
	}
	if info != nil {
		row.RoomCollectionPrefix = info.RoomCollectionPrefix
		row.RoomNo = info.RoomNo
		row.StorageID = info.StorageID
	}
	row.UserKey = userKey
	if err := c.store.InsertOne(ctx, c.colToken, row); err != nil {
		return "", WrapSysError(err, "failure add token")
	}
	return signed, nil
}
