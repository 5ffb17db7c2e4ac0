package shape

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/tidwall/gjson"
)

// Variant identifies which envelope a list response arrived in
type Variant int

const (
	// Unrecognized means none of the accepted envelopes matched
	Unrecognized Variant = iota
	// BareArray is a top-level JSON array
	BareArray
	// DataKey is {"data": [...]}
	DataKey
	// ResourceKey is {"<resource>": [...]}, e.g. {"movies": [...]}
	ResourceKey
	// ItemsKey is {"items": [...]}
	ItemsKey
)

// String returns the string representation of a Variant
func (v Variant) String() string {
	switch v {
	case BareArray:
		return "bare_array"
	case DataKey:
		return "data"
	case ResourceKey:
		return "resource"
	case ItemsKey:
		return "items"
	default:
		return "unrecognized"
	}
}

// List is the normalized form of a list response
type List struct {
	Variant Variant
	Items   []json.RawMessage
	// Diagnostic explains why the shape was not recognized
	Diagnostic string
}

// Recognized reports whether one of the accepted envelopes matched
func (l List) Recognized() bool {
	return l.Variant != Unrecognized
}

// DecodeList normalizes a list response. Accepted shapes are checked in
// order: bare array, "data", the resource key, "items". Anything else
// yields an empty Unrecognized list.
func DecodeList(raw []byte, resourceKey string) List {
	if !gjson.ValidBytes(raw) {
		return List{Items: []json.RawMessage{}, Diagnostic: "response is not valid JSON"}
	}

	root := gjson.ParseBytes(raw)
	if root.IsArray() {
		return List{Variant: BareArray, Items: rawItems(root)}
	}
	if !root.IsObject() {
		return List{Items: []json.RawMessage{}, Diagnostic: fmt.Sprintf("unexpected top-level %s", root.Type)}
	}

	candidates := []struct {
		key     string
		variant Variant
	}{
		{"data", DataKey},
		{resourceKey, ResourceKey},
		{"items", ItemsKey},
	}
	for _, c := range candidates {
		if c.key == "" {
			continue
		}
		if v := root.Get(gjson.Escape(c.key)); v.IsArray() {
			return List{Variant: c.variant, Items: rawItems(v)}
		}
	}

	keys := make([]string, 0)
	root.ForEach(func(key, _ gjson.Result) bool {
		keys = append(keys, key.String())
		return true
	})
	return List{
		Items:      []json.RawMessage{},
		Diagnostic: fmt.Sprintf("no list under data/%s/items (keys: %v)", resourceKey, keys),
	}
}

func rawItems(arr gjson.Result) []json.RawMessage {
	elems := arr.Array()
	items := make([]json.RawMessage, 0, len(elems))
	for _, e := range elems {
		items = append(items, json.RawMessage(e.Raw))
	}
	return items
}

// DecodeObject unwraps a single object that may be bare, under "data", or
// under the resource key. ok is false when no object was found.
func DecodeObject(raw []byte, resourceKey string) (json.RawMessage, bool) {
	if !gjson.ValidBytes(raw) {
		return nil, false
	}

	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return nil, false
	}
	for _, key := range []string{"data", resourceKey} {
		if key == "" {
			continue
		}
		if v := root.Get(gjson.Escape(key)); v.IsObject() {
			return json.RawMessage(v.Raw), true
		}
	}
	return json.RawMessage(root.Raw), true
}

// PageMeta is the pagination metadata of a list response
type PageMeta struct {
	CurrentPage int
	TotalPages  int
}

// DecodePageMeta derives the total page count from meta.last_page, then
// meta.total / meta.per_page, then the same keys at the top level. It
// defaults to 1 and never returns less than 1.
func DecodePageMeta(raw []byte) PageMeta {
	meta := PageMeta{CurrentPage: 1, TotalPages: 1}
	if !gjson.ValidBytes(raw) {
		return meta
	}

	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return meta
	}

	for _, prefix := range []string{"meta.", ""} {
		if v := root.Get(prefix + "current_page"); v.Exists() && v.Int() > 0 {
			meta.CurrentPage = int(v.Int())
		}
		if v := root.Get(prefix + "last_page"); v.Exists() && v.Int() > 0 {
			meta.TotalPages = int(v.Int())
			return meta
		}
		total := root.Get(prefix + "total")
		perPage := root.Get(prefix + "per_page")
		if total.Exists() && perPage.Exists() && perPage.Int() > 0 {
			pages := int(math.Ceil(total.Float() / perPage.Float()))
			meta.TotalPages = max(pages, 1)
			return meta
		}
	}
	return meta
}

// Decode converts normalized items into typed values. Items that fail to
// decode are skipped and reported in the returned error count.
func Decode[T any](items []json.RawMessage) ([]T, int) {
	out := make([]T, 0, len(items))
	failed := 0
	for _, item := range items {
		var v T
		if err := json.Unmarshal(item, &v); err != nil {
			failed++
			continue
		}
		out = append(out, v)
	}
	return out, failed
}
