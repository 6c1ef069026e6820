package core

import (
	"context"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Tenant collections are named "<prefix>-DATA-<suffix>". The prefix scopes a
// room, the suffix names the logical collection inside it.
const collectionSep = "-DATA-"

// catalogSuffix names the per-tenant catalog of suffixes in use. It never
// lists itself.
const catalogSuffix = "collection-list"

type refKind int

const (
	refByName refKind = iota
	refBySuffix
	refByConnection
)

// CollectionRef names a collection one of three ways: a full physical name,
// a suffix under an explicit tenant prefix, or a suffix under the tenant the
// connection is logged in to.
type CollectionRef struct {
	kind   refKind
	name   string
	suffix string
	prefix string
	connID string
}

func ByName(name string) CollectionRef {
	return CollectionRef{kind: refByName, name: name}
}

func BySuffix(prefix, suffix string) CollectionRef {
	return CollectionRef{kind: refBySuffix, prefix: prefix, suffix: suffix}
}

func ByConnection(connID, suffix string) CollectionRef {
	return CollectionRef{kind: refByConnection, connID: connID, suffix: suffix}
}

// PhysicalName joins a tenant prefix and a collection suffix.
func PhysicalName(prefix, suffix string) string {
	return prefix + collectionSep + suffix
}

// SplitCollectionName splits a physical name at the first separator. A name
// with no separator is all prefix.
func SplitCollectionName(name string) (prefix, suffix string) {
	idx := strings.Index(name, collectionSep)
	if idx < 0 {
		return name, ""
	}
	return name[:idx], name[idx+len(collectionSep):]
}

// resolveCollection turns a ref into a physical name. forInsert additionally
// records the suffix in the tenant catalog so room teardown can find every
// collection it ever created.
func (c *Core) resolveCollection(ctx context.Context, ref CollectionRef, forInsert bool) (string, error) {
	var name string
	switch ref.kind {
	case refByName:
		name = ref.name
	case refBySuffix:
		name = PhysicalName(ref.prefix, ref.suffix)
	case refByConnection:
		info, err := c.GetSocketInfo(ctx, ref.connID)
		if err != nil {
			return "", err
		}
		if info.RoomCollectionPrefix == nil {
			return "", NewAppError("not yet logged in", ref.connID)
		}
		name = PhysicalName(*info.RoomCollectionPrefix, ref.suffix)
	}
	if forInsert {
		if err := c.registerCollection(ctx, name); err != nil {
			return "", err
		}
	}
	return name, nil
}

func (c *Core) registerCollection(ctx context.Context, name string) error {
	prefix, suffix := SplitCollectionName(name)
	if suffix == "" || suffix == catalogSuffix {
		return nil
	}
	catalog := PhysicalName(prefix, catalogSuffix)
	var row struct {
		Suffix string `bson:"suffix"`
	}
	found, err := c.store.FindOne(ctx, catalog, bson.M{"suffix": suffix}, &row)
	if err != nil {
		return WrapSysError(err, "failure read catalog")
	}
	if found {
		return nil
	}
	if err := c.store.InsertOne(ctx, catalog, bson.M{"suffix": suffix}); err != nil {
		return WrapSysError(err, "failure write catalog")
	}
	return nil
}

// tenantCollections lists every physical collection of a tenant, catalog
// included, from the catalog's contents.
func (c *Core) tenantCollections(ctx context.Context, prefix string) ([]string, error) {
	catalog := PhysicalName(prefix, catalogSuffix)
	var rows []struct {
		Suffix string `bson:"suffix"`
	}
	if err := c.store.Find(ctx, catalog, bson.M{}, false, &rows); err != nil {
		return nil, WrapSysError(err, "failure read catalog")
	}
	names := make([]string, 0, len(rows)+1)
	for _, row := range rows {
		names = append(names, PhysicalName(prefix, row.Suffix))
	}
	names = append(names, catalog)
	return names, nil
}
