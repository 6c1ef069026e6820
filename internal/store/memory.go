package store

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
)

// Memory implements Store on process memory. It backs the "memory" store
// type and the test suites. Documents are normalized through the bson codec
// so both backends agree on field names and value shapes.
type Memory struct {
	mu   sync.RWMutex
	cols map[string][]bson.M
}

func NewMemory() *Memory {
	return &Memory{cols: make(map[string][]bson.M)}
}

func toDoc(v any) (bson.M, error) {
	raw, err := bson.Marshal(v)
	if err != nil {
		return nil, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func decodeDoc(doc bson.M, out any) error {
	raw, err := bson.Marshal(doc)
	if err != nil {
		return err
	}
	return bson.Unmarshal(raw, out)
}

func (m *Memory) FindOne(ctx context.Context, col string, filter bson.M, out any) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, doc := range m.cols[col] {
		ok, err := matchFilter(doc, filter)
		if err != nil {
			return false, err
		}
		if ok {
			return true, decodeDoc(doc, out)
		}
	}
	return false, nil
}

func (m *Memory) Find(ctx context.Context, col string, filter bson.M, sortByOrder bool, out any) error {
	m.mu.RLock()
	matched := make([]bson.M, 0)
	for _, doc := range m.cols[col] {
		ok, err := matchFilter(doc, filter)
		if err != nil {
			m.mu.RUnlock()
			return err
		}
		if ok {
			matched = append(matched, doc)
		}
	}
	m.mu.RUnlock()

	if sortByOrder {
		sort.SliceStable(matched, func(i, j int) bool {
			a, _ := asFloat(matched[i]["order"])
			b, _ := asFloat(matched[j]["order"])
			return a < b
		})
	}

	outv := reflect.ValueOf(out)
	if outv.Kind() != reflect.Ptr || outv.Elem().Kind() != reflect.Slice {
		return fmt.Errorf("find: out must be a pointer to a slice")
	}
	slice := outv.Elem()
	slice.Set(reflect.MakeSlice(slice.Type(), 0, len(matched)))
	elemType := slice.Type().Elem()
	for _, doc := range matched {
		elem := reflect.New(elemType)
		if err := decodeDoc(doc, elem.Interface()); err != nil {
			return err
		}
		slice.Set(reflect.Append(slice, elem.Elem()))
	}
	return nil
}

func (m *Memory) InsertOne(ctx context.Context, col string, doc any) error {
	d, err := toDoc(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cols[col] = append(m.cols[col], d)
	return nil
}

func (m *Memory) InsertMany(ctx context.Context, col string, docs []any) error {
	for _, doc := range docs {
		if err := m.InsertOne(ctx, col, doc); err != nil {
			return err
		}
	}
	return nil
}

func (m *Memory) ReplaceOne(ctx context.Context, col string, filter bson.M, doc any) error {
	d, err := toDoc(doc)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, existing := range m.cols[col] {
		ok, err := matchFilter(existing, filter)
		if err != nil {
			return err
		}
		if ok {
			m.cols[col][i] = d
			return nil
		}
	}
	return nil
}

func (m *Memory) DeleteOne(ctx context.Context, col string, filter bson.M) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := m.cols[col]
	for i, doc := range docs {
		ok, err := matchFilter(doc, filter)
		if err != nil {
			return err
		}
		if ok {
			m.cols[col] = append(docs[:i:i], docs[i+1:]...)
			return nil
		}
	}
	return nil
}

func (m *Memory) DeleteMany(ctx context.Context, col string, filter bson.M) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	docs := m.cols[col]
	kept := docs[:0:0]
	var removed int64
	for _, doc := range docs {
		ok, err := matchFilter(doc, filter)
		if err != nil {
			return removed, err
		}
		if ok {
			removed++
			continue
		}
		kept = append(kept, doc)
	}
	m.cols[col] = kept
	return removed, nil
}

func (m *Memory) Drop(ctx context.Context, col string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.cols, col)
	return nil
}

// Collections lists the live collection names; insertion order is not
// meaningful, callers sort if they care.
func (m *Memory) Collections() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, 0, len(m.cols))
	for name := range m.cols {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// matchFilter evaluates the filter subset the engine uses: top-level $and,
// dotted-path equality, and the $ne/$lt operators.
func matchFilter(doc bson.M, filter bson.M) (bool, error) {
	for field, cond := range filter {
		if field == "$and" {
			subs, ok := cond.([]bson.M)
			if !ok {
				return false, fmt.Errorf("memory store: $and wants []bson.M, got %T", cond)
			}
			for _, sub := range subs {
				ok, err := matchFilter(doc, sub)
				if err != nil || !ok {
					return false, err
				}
			}
			continue
		}
		val, present := lookupPath(doc, field)
		if opDoc, ok := cond.(bson.M); ok {
			ok, err := matchOps(val, present, opDoc)
			if err != nil || !ok {
				return false, err
			}
			continue
		}
		// Plain equality; a nil condition matches null and missing alike.
		if !valuesEqual(val, cond) {
			return false, nil
		}
	}
	return true, nil
}

func matchOps(val any, present bool, ops bson.M) (bool, error) {
	for op, operand := range ops {
		switch op {
		case "$ne":
			if valuesEqual(val, operand) {
				return false, nil
			}
		case "$lt":
			if !present {
				return false, nil
			}
			cmp, err := compareValues(val, operand)
			if err != nil || cmp >= 0 {
				return false, err
			}
		default:
			return false, fmt.Errorf("memory store: unsupported operator %s", op)
		}
	}
	return true, nil
}

func lookupPath(doc bson.M, path string) (any, bool) {
	parts := strings.Split(path, ".")
	var cur any = doc
	for _, part := range parts {
		m, ok := cur.(bson.M)
		if !ok {
			return nil, false
		}
		cur, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func valuesEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, ok := asFloat(a); ok {
		bf, ok := asFloat(b)
		return ok && af == bf
	}
	return reflect.DeepEqual(normalize(a), normalize(b))
}

func compareValues(a, b any) (int, error) {
	af, aok := asFloat(a)
	bf, bok := asFloat(b)
	if aok && bok {
		switch {
		case af < bf:
			return -1, nil
		case af > bf:
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("memory store: cannot compare %T with %T", a, b)
}

// asFloat widens every numeric shape the bson round trip can produce,
// including datetimes, onto one comparable axis.
func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	case bson.DateTime:
		return float64(n), true
	case time.Time:
		return float64(n.UnixMilli()), true
	}
	return 0, false
}

func normalize(v any) any {
	if f, ok := asFloat(v); ok {
		return f
	}
	if s, ok := v.(fmt.Stringer); ok {
		return s.String()
	}
	return v
}
