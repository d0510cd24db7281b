package querycache

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Key identifies a cached read: a collection plus the parameters the read
// was made with.
type Key struct {
	Collection string
	Params     map[string]any
}

// NewKey builds a Key from alternating name/value pairs.
func NewKey(collection string, kv ...any) Key {
	k := Key{Collection: collection}
	if len(kv) > 0 {
		k.Params = make(map[string]any, len(kv)/2)
		for i := 0; i+1 < len(kv); i += 2 {
			k.Params[fmt.Sprint(kv[i])] = kv[i+1]
		}
	}
	return k
}

// String serializes the key deterministically: parameters are sorted by
// name and values are JSON encoded, so map insertion order never matters.
func (k Key) String() string {
	if len(k.Params) == 0 {
		return k.Collection
	}
	names := make([]string, 0, len(k.Params))
	for n := range k.Params {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(k.Collection)
	for i, n := range names {
		if i == 0 {
			b.WriteByte('?')
		} else {
			b.WriteByte('&')
		}
		b.WriteString(n)
		b.WriteByte('=')
		b.WriteString(encodeValue(k.Params[n]))
	}
	return b.String()
}

func encodeValue(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(b)
}

// Matcher selects keys for Invalidate and Evict.
type Matcher func(Key) bool

// Exact matches one key.
func Exact(k Key) Matcher {
	s := k.String()
	return func(o Key) bool { return o.String() == s }
}

// Prefix matches keys whose serialized form starts with p. Prefix(collection)
// therefore matches every parameter combination of that collection.
func Prefix(p string) Matcher {
	return func(o Key) bool { return strings.HasPrefix(o.String(), p) }
}

// Collection matches keys of the named collection whose params include all
// of the given ones. Nil params match the whole collection.
func Collection(name string, params map[string]any) Matcher {
	want := make(map[string]string, len(params))
	for k, v := range params {
		want[k] = encodeValue(v)
	}
	return func(o Key) bool {
		if o.Collection != name {
			return false
		}
		for k, v := range want {
			got, ok := o.Params[k]
			if !ok || encodeValue(got) != v {
				return false
			}
		}
		return true
	}
}

// Where matches keys satisfying f.
func Where(f func(Key) bool) Matcher {
	return Matcher(f)
}

// Any matches keys selected by at least one of ms.
func Any(ms ...Matcher) Matcher {
	return func(o Key) bool {
		for _, m := range ms {
			if m(o) {
				return true
			}
		}
		return false
	}
}
