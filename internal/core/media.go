package core

import (
	"context"
	"crypto/sha512"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"path"
	"strings"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/HillTopTRPG/quoridorn-server-lib/internal/domain"
)

// UploadMedia stores a batch of media items serially with progress. Items
// whose bytes are already in the room's storage (same content hash) are
// deduplicated: the existing document is reused and nothing is re-uploaded.
func (c *Core) UploadMedia(ctx context.Context, connID string, req domain.UploadMediaRequest) ([]domain.UploadMediaResponseItem, error) {
	_, info, err := c.loggedInPrefix(ctx, connID)
	if err != nil {
		return nil, err
	}
	if info.StorageID == nil {
		return nil, NewAppError("not yet logged in", connID)
	}
	storageID := *info.StorageID

	ops := make([]func(context.Context) (domain.UploadMediaResponseItem, error), 0, len(req.UploadMediaInfoList))
	for _, item := range req.UploadMediaInfoList {
		item := item
		ops = append(ops, func(ctx context.Context) (domain.UploadMediaResponseItem, error) {
			return c.uploadOneMedia(ctx, connID, storageID, item, req.Option)
		})
	}
	return RunSerial(ctx, c, connID, 0, 0, ops)
}

func (c *Core) uploadOneMedia(ctx context.Context, connID, storageID string, item domain.UploadMediaInfo, option domain.AddParam) (domain.UploadMediaResponseItem, error) {
	var none domain.UploadMediaResponseItem
	col, err := c.resolveCollection(ctx, ByConnection(connID, mediaCollectionSuffix), true)
	if err != nil {
		return none, err
	}

	var raw []byte
	var hash string
	if item.DataLocation == "server" {
		raw, err = decodeDataURL(item.ArrayBuffer)
		if err != nil {
			return none, NewAppError("invalid media data", item.Name)
		}
		sum := sha512.Sum512(raw)
		hash = hex.EncodeToString(sum[:])
	} else {
		sum := sha512.Sum512([]byte(item.URL))
		hash = hex.EncodeToString(sum[:])
	}

	// Same bytes already in the room: hand back the existing document.
	existing, err := c.findOneData(ctx, col, bson.M{"data.hash": hash})
	if err != nil {
		return none, err
	}
	if existing != nil {
		var ms domain.MediaStore
		if err := domain.DecodePayload(existing.Data, &ms); err != nil {
			return none, WrapSysError(err, "failure decode media")
		}
		return domain.UploadMediaResponseItem{
			Key:     existing.Key,
			RawPath: ms.RawPath,
			URL:     ms.URL,
			Name:    ms.Name,
			Tag:     ms.Tag,
			URLType: ms.URLType,
		}, nil
	}

	url := item.URL
	mediaFileID := ""
	if item.DataLocation == "server" {
		mediaFileID = uuid.NewString() + path.Ext(item.RawPath)
		objKey := storageID + "/" + mediaFileID
		if err := c.objects.Put(ctx, objKey, raw, contentTypeFor(item.RawPath)); err != nil {
			return none, WrapSysError(err, "failure upload media")
		}
		url = c.cfg.Minio.AccessURL + objKey
	}

	ms := domain.MediaStore{
		Name:         item.Name,
		RawPath:      item.RawPath,
		Hash:         hash,
		MediaFileID:  mediaFileID,
		Tag:          item.Tag,
		URL:          url,
		URLType:      item.URLType,
		IconClass:    item.IconClass,
		DataLocation: item.DataLocation,
	}
	payload, err := domain.EncodePayload(&ms)
	if err != nil {
		return none, WrapSysError(err, "failure encode media")
	}
	param := option
	param.Key = item.Key
	param.Data = payload
	doc, err := c.AddData(ctx, connID, ByName(col), domain.Target(domain.TargetRoom), true, param)
	if err != nil {
		return none, err
	}
	return domain.UploadMediaResponseItem{
		Key:     doc.Key,
		RawPath: ms.RawPath,
		URL:     ms.URL,
		Name:    ms.Name,
		Tag:     ms.Tag,
		URLType: ms.URLType,
	}, nil
}

// decodeDataURL accepts a base64 data url or bare base64.
func decodeDataURL(s string) ([]byte, error) {
	if idx := strings.Index(s, "base64,"); idx >= 0 {
		s = s[idx+len("base64,"):]
	}
	raw, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("media payload is not base64: %w", err)
	}
	return raw, nil
}

func contentTypeFor(rawPath string) string {
	switch strings.ToLower(path.Ext(rawPath)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".mp3":
		return "audio/mpeg"
	case ".wav":
		return "audio/wav"
	case ".json":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}
