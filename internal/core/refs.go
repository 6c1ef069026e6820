package core

import (
	"context"
	"sort"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"

	"github.com/HillTopTRPG/quoridorn-server-lib/internal/domain"
)

// embeddedRefField is the payload field name whose string values are treated
// as references to media-list documents, at any nesting depth.
const embeddedRefField = "mediaKey"

// mediaCollectionSuffix is the only collection embedded references point at.
const mediaCollectionSuffix = "media-list"

// embeddedScanSuffixes are the collections whose payloads are scanned when a
// media document (re)appears and needs its back-references rebuilt.
var embeddedScanSuffixes = []string{
	"scene-object-list",
	"scene-list",
	"public-memo-list",
	"resource-master-list",
}

// AddRef records that (refType, refKey) points at target. A nil target and a
// duplicate reference are both silent no-ops. Only refList and updateTime of
// the target are persisted.
func (c *Core) AddRef(ctx context.Context, col string, target *domain.StoreData, ref domain.DataReference) error {
	if target == nil {
		return nil
	}
	for _, r := range target.RefList {
		if r == ref {
			return nil
		}
	}
	target.RefList = append(target.RefList, ref)
	return c.persistRefList(ctx, col, target.Key, target.RefList)
}

// RemoveRef removes one recorded reference. Nil target and absent reference
// are silent no-ops.
func (c *Core) RemoveRef(ctx context.Context, col string, target *domain.StoreData, ref domain.DataReference) error {
	if target == nil {
		return nil
	}
	idx := -1
	for i, r := range target.RefList {
		if r == ref {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil
	}
	target.RefList = append(target.RefList[:idx], target.RefList[idx+1:]...)
	return c.persistRefList(ctx, col, target.Key, target.RefList)
}

func (c *Core) persistRefList(ctx context.Context, col, key string, refList []domain.DataReference) error {
	var doc domain.StoreData
	found, err := c.store.FindOne(ctx, col, bson.M{"key": key}, &doc)
	if err != nil {
		return WrapSysError(err, "failure read doc")
	}
	if !found {
		return nil
	}
	now := time.Now()
	doc.RefList = refList
	doc.UpdateTime = &now
	if err := c.store.ReplaceOne(ctx, col, bson.M{"key": key}, doc); err != nil {
		return WrapSysError(err, "failure update doc")
	}
	return nil
}

// FindEmbeddedKeys collects the distinct string values of the named field
// anywhere inside data, depth first, in first-occurrence order. Sibling map
// keys are visited in sorted order so the result is deterministic.
func FindEmbeddedKeys(data any, field string) []string {
	seen := make(map[string]bool)
	var keys []string
	var walk func(v any)
	walk = func(v any) {
		switch node := v.(type) {
		case map[string]any:
			names := make([]string, 0, len(node))
			for name := range node {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if name == field {
					if s, ok := node[name].(string); ok && s != "" && !seen[s] {
						seen[s] = true
						keys = append(keys, s)
					}
					continue
				}
				walk(node[name])
			}
		case []any:
			for _, item := range node {
				walk(item)
			}
		}
	}
	walk(data)
	return keys
}

// reconcileEmbeddedRefs diffs the embedded media keys of a payload before and
// after a change and patches the back-references of the affected media
// documents. A referenced media document that no longer exists is skipped.
func (c *Core) reconcileEmbeddedRefs(ctx context.Context, prefix string, oldData, newData map[string]any, refType, refKey string) error {
	oldKeys := FindEmbeddedKeys(oldData, embeddedRefField)
	newKeys := FindEmbeddedKeys(newData, embeddedRefField)
	col := PhysicalName(prefix, mediaCollectionSuffix)
	ref := domain.DataReference{Type: refType, Key: refKey}
	for _, key := range diffKeys(oldKeys, newKeys) {
		media, err := c.findOneData(ctx, col, bson.M{"key": key})
		if err != nil {
			return err
		}
		if err := c.RemoveRef(ctx, col, media, ref); err != nil {
			return err
		}
	}
	for _, key := range diffKeys(newKeys, oldKeys) {
		media, err := c.findOneData(ctx, col, bson.M{"key": key})
		if err != nil {
			return err
		}
		if err := c.AddRef(ctx, col, media, ref); err != nil {
			return err
		}
	}
	return nil
}

// scanAllReferencing walks the scan collections of a tenant and returns a
// reference for every document whose payload embeds targetKey. Used to seed
// the refList of a document inserted (or re-inserted) under a known key.
func (c *Core) scanAllReferencing(ctx context.Context, prefix, targetSuffix, targetKey string, extra []string) ([]domain.DataReference, error) {
	if targetSuffix != mediaCollectionSuffix {
		return []domain.DataReference{}, nil
	}
	suffixes := append(append([]string{}, embeddedScanSuffixes...), extra...)
	refList := []domain.DataReference{}
	for _, suffix := range suffixes {
		col := PhysicalName(prefix, suffix)
		var docs []domain.StoreData
		if err := c.store.Find(ctx, col, bson.M{}, false, &docs); err != nil {
			return nil, WrapSysError(err, "failure read collection")
		}
		for _, doc := range docs {
			for _, key := range FindEmbeddedKeys(doc.Data, embeddedRefField) {
				if key == targetKey {
					refList = append(refList, domain.DataReference{Type: suffix, Key: doc.Key})
					break
				}
			}
		}
	}
	return refList, nil
}

// diffKeys returns the members of a that are not in b, keeping a's order.
func diffKeys(a, b []string) []string {
	inB := make(map[string]bool, len(b))
	for _, k := range b {
		inB[k] = true
	}
	var out []string
	for _, k := range a {
		if !inB[k] {
			out = append(out, k)
		}
	}
	return out
}
