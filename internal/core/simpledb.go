package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/HillTopTRPG/quoridorn-server-lib/internal/domain"
)

func (c *Core) findOneData(ctx context.Context, col string, filter bson.M) (*domain.StoreData, error) {
	var doc domain.StoreData
	found, err := c.store.FindOne(ctx, col, filter, &doc)
	if err != nil {
		return nil, WrapSysError(err, "failure read doc")
	}
	if !found {
		return nil, nil
	}
	return &doc, nil
}

// maxOrder is -1 for an empty collection so the first insert lands at 0.
func (c *Core) maxOrder(ctx context.Context, col string) (int, error) {
	var docs []domain.StoreData
	if err := c.store.Find(ctx, col, bson.M{}, true, &docs); err != nil {
		return 0, WrapSysError(err, "failure read collection")
	}
	if len(docs) == 0 {
		return -1, nil
	}
	return docs[len(docs)-1].Order, nil
}

// loggedInPrefix is the tenant prefix of a connection that has joined a
// created room; anything else is not allowed to touch tenant data.
func (c *Core) loggedInPrefix(ctx context.Context, connID string) (string, *domain.SocketStore, error) {
	info, err := c.GetSocketInfo(ctx, connID)
	if err != nil {
		return "", nil, err
	}
	if info.RoomCollectionPrefix == nil {
		return "", nil, NewAppError("not yet logged in", connID)
	}
	return *info.RoomCollectionPrefix, info, nil
}

// AddData inserts one document. A caller-supplied key that already exists is
// a conflict unless force is set, in which case the old document is deleted
// first (with full reference bookkeeping) and the key is reused. The stored
// envelope is broadcast to share and returned.
func (c *Core) AddData(ctx context.Context, connID string, ref CollectionRef, share domain.SendTarget, force bool, param domain.AddParam) (*domain.StoreData, error) {
	prefix, info, err := c.loggedInPrefix(ctx, connID)
	if err != nil {
		return nil, err
	}
	col, err := c.resolveCollection(ctx, ref, true)
	if err != nil {
		return nil, err
	}
	_, cnSuffix := SplitCollectionName(col)

	if param.Key != "" {
		original, err := c.findOneData(ctx, col, bson.M{"key": param.Key})
		if err != nil {
			return nil, err
		}
		if original != nil {
			if !force {
				return nil, NewAppError("already exists", param.Key)
			}
			if err := c.DeleteData(ctx, connID, ByName(col), domain.Target(domain.TargetNone), param.Key); err != nil {
				return nil, err
			}
		}
	}

	key := param.Key
	if key == "" {
		key = uuid.NewString()
	}

	order := 0
	if param.Order != nil {
		order = *param.Order
	} else {
		max, err := c.maxOrder(ctx, col)
		if err != nil {
			return nil, err
		}
		order = max + 1
	}

	ownerType := "user-list"
	if param.OwnerType != nil {
		ownerType = *param.OwnerType
	}
	var owner *string
	if param.Owner != nil {
		if *param.Owner != "" {
			v := *param.Owner
			owner = &v
		}
	} else {
		owner = info.UserKey
	}
	if ownerType == "" {
		owner = nil
	}

	permission := param.Permission
	if permission == nil {
		permission = domain.DefaultPermission()
	}

	if ownerType != "" && owner != nil {
		ownerCol := PhysicalName(prefix, ownerType)
		ownerDoc, err := c.findOneData(ctx, ownerCol, bson.M{"key": *owner})
		if err != nil {
			return nil, err
		}
		if err := c.AddRef(ctx, ownerCol, ownerDoc, domain.DataReference{Type: cnSuffix, Key: key}); err != nil {
			return nil, err
		}
	}
	if err := c.reconcileEmbeddedRefs(ctx, prefix, nil, param.Data, cnSuffix, key); err != nil {
		return nil, err
	}
	refList, err := c.scanAllReferencing(ctx, prefix, cnSuffix, key, param.ScanSuffixes)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	var ownerTypePtr *string
	if ownerType != "" {
		ownerTypePtr = &ownerType
	}
	doc := &domain.StoreData{
		Collection: cnSuffix,
		Key:        key,
		Order:      order,
		OwnerType:  ownerTypePtr,
		Owner:      owner,
		Permission: permission,
		Status:     domain.StatusAdded,
		CreateTime: now,
		UpdateTime: &now,
		RefList:    refList,
		Data:       param.Data,
	}
	if err := c.store.InsertOne(ctx, col, doc); err != nil {
		return nil, WrapSysError(err, "failure add doc")
	}
	if err := c.EmitEvent(ctx, connID, share, "notify-insert-data", nil, doc); err != nil {
		c.logger.Warn().Err(err).Str("collection", col).Msg("insert notify failed")
	}
	return doc, nil
}

// UpdateData patches one document: envelope fields replace, the payload is
// shallow-merged field-wise. Owner moves and embedded media key changes are
// reflected in the reference graph before the write lands.
func (c *Core) UpdateData(ctx context.Context, connID string, ref CollectionRef, share domain.SendTarget, param domain.UpdateParam) (*domain.StoreData, error) {
	prefix, _, err := c.loggedInPrefix(ctx, connID)
	if err != nil {
		return nil, err
	}
	col, err := c.resolveCollection(ctx, ref, false)
	if err != nil {
		return nil, err
	}
	_, cnSuffix := SplitCollectionName(col)

	original, err := c.findOneData(ctx, col, bson.M{"key": param.Key})
	if err != nil {
		return nil, err
	}
	if original == nil {
		return nil, NewAppError("no such data", param.Key)
	}

	if err := c.moveOwnerRef(ctx, prefix, cnSuffix, original, param); err != nil {
		return nil, err
	}

	updated := *original
	if param.Order != nil {
		updated.Order = *param.Order
	}
	if param.OwnerType != nil {
		updated.OwnerType = emptyAsNil(*param.OwnerType)
	}
	if param.Owner != nil {
		updated.Owner = emptyAsNil(*param.Owner)
	}
	if param.Permission != nil {
		updated.Permission = param.Permission
	}
	if param.Data != nil {
		merged := make(map[string]any, len(original.Data)+len(param.Data))
		for k, v := range original.Data {
			merged[k] = v
		}
		for k, v := range param.Data {
			merged[k] = v
		}
		if err := c.reconcileEmbeddedRefs(ctx, prefix, original.Data, merged, cnSuffix, param.Key); err != nil {
			return nil, err
		}
		updated.Data = merged
	}
	now := time.Now()
	updated.Status = domain.StatusModified
	updated.UpdateTime = &now

	if err := c.store.ReplaceOne(ctx, col, bson.M{"key": param.Key}, updated); err != nil {
		return nil, WrapSysError(err, "failure update doc")
	}
	if err := c.EmitEvent(ctx, connID, share, "notify-update-data", nil, &updated); err != nil {
		c.logger.Warn().Err(err).Str("collection", col).Msg("update notify failed")
	}
	return &updated, nil
}

// moveOwnerRef re-homes the owner back-reference when an update changes the
// owner. Clearing the owner only removes; setting one from nothing only adds.
func (c *Core) moveOwnerRef(ctx context.Context, prefix, cnSuffix string, original *domain.StoreData, param domain.UpdateParam) error {
	if param.OwnerType == nil && param.Owner == nil {
		return nil
	}
	oldType, oldKey := derefOwner(original.OwnerType, original.Owner)
	newType, newKey := oldType, oldKey
	if param.OwnerType != nil {
		newType = *param.OwnerType
	}
	if param.Owner != nil {
		newKey = *param.Owner
	}
	if oldType == newType && oldKey == newKey {
		return nil
	}
	ref := domain.DataReference{Type: cnSuffix, Key: original.Key}
	if oldType != "" && oldKey != "" {
		ownerCol := PhysicalName(prefix, oldType)
		ownerDoc, err := c.findOneData(ctx, ownerCol, bson.M{"key": oldKey})
		if err != nil {
			return err
		}
		if err := c.RemoveRef(ctx, ownerCol, ownerDoc, ref); err != nil {
			return err
		}
	}
	if newType != "" && newKey != "" {
		ownerCol := PhysicalName(prefix, newType)
		ownerDoc, err := c.findOneData(ctx, ownerCol, bson.M{"key": newKey})
		if err != nil {
			return err
		}
		if err := c.AddRef(ctx, ownerCol, ownerDoc, ref); err != nil {
			return err
		}
	}
	return nil
}

// DeleteData removes one document after detaching it from the reference
// graph. The notification carries only the key and the collection suffix.
func (c *Core) DeleteData(ctx context.Context, connID string, ref CollectionRef, share domain.SendTarget, key string) error {
	prefix, _, err := c.loggedInPrefix(ctx, connID)
	if err != nil {
		return err
	}
	col, err := c.resolveCollection(ctx, ref, false)
	if err != nil {
		return err
	}
	_, cnSuffix := SplitCollectionName(col)

	doc, err := c.findOneData(ctx, col, bson.M{"key": key})
	if err != nil {
		return err
	}
	if doc == nil {
		return NewAppError("no such data", key)
	}
	if doc.Data == nil {
		return NewAppError("untouched data", key)
	}

	if doc.OwnerType != nil && doc.Owner != nil && *doc.OwnerType != "" && *doc.Owner != "" {
		ownerCol := PhysicalName(prefix, *doc.OwnerType)
		ownerDoc, err := c.findOneData(ctx, ownerCol, bson.M{"key": *doc.Owner})
		if err != nil {
			return err
		}
		if err := c.RemoveRef(ctx, ownerCol, ownerDoc, domain.DataReference{Type: cnSuffix, Key: key}); err != nil {
			return err
		}
	}
	if err := c.reconcileEmbeddedRefs(ctx, prefix, doc.Data, nil, cnSuffix, key); err != nil {
		return err
	}

	if err := c.store.DeleteOne(ctx, col, bson.M{"key": key}); err != nil {
		return WrapSysError(err, "failure delete doc")
	}
	payload := map[string]string{"key": key, "type": cnSuffix}
	if err := c.EmitEvent(ctx, connID, share, "notify-delete-data", nil, payload); err != nil {
		c.logger.Warn().Err(err).Str("collection", col).Msg("delete notify failed")
	}
	return nil
}

// GetData lists every document of one tenant collection, ordered.
func (c *Core) GetData(ctx context.Context, connID, suffix string) ([]domain.StoreData, error) {
	col, err := c.resolveCollection(ctx, ByConnection(connID, suffix), false)
	if err != nil {
		return nil, err
	}
	docs := []domain.StoreData{}
	if err := c.store.Find(ctx, col, bson.M{}, true, &docs); err != nil {
		return nil, WrapSysError(err, "failure read collection")
	}
	return docs, nil
}

func emptyAsNil(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func derefOwner(ownerType, owner *string) (string, string) {
	var t, k string
	if ownerType != nil {
		t = *ownerType
	}
	if owner != nil {
		k = *owner
	}
	return t, k
}
