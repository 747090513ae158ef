package backend

import (
	"math"

	"github.com/tidwall/gjson"
)

// Envelope is a decoded `{success, data|items|<resource>, pagination}` response.
type Envelope struct {
	raw  []byte
	root gjson.Result
}

// ParseEnvelope validates raw as JSON and wraps it.
func ParseEnvelope(raw []byte) (Envelope, error) {
	if !gjson.ValidBytes(raw) {
		return Envelope{}, &Error{Kind: KindMalformed, Detail: "invalid json"}
	}
	root := gjson.ParseBytes(raw)
	if !root.IsObject() {
		return Envelope{}, &Error{Kind: KindMalformed, Detail: "response is not an object"}
	}
	return Envelope{raw: raw, root: root}, nil
}

// Raw returns the undecoded payload.
func (e Envelope) Raw() []byte { return e.raw }

// Get resolves a gjson path against the payload.
func (e Envelope) Get(path string) gjson.Result { return e.root.Get(path) }

// Success reports the `success` flag. Payloads without the flag count as
// successful because some metric endpoints omit it.
func (e Envelope) Success() bool {
	flag := e.root.Get("success")
	if !flag.Exists() {
		return true
	}
	return flag.Bool()
}

// ErrorText returns the backend supplied error description.
func (e Envelope) ErrorText() string {
	for _, key := range []string{"error", "message", "detail"} {
		if v := e.root.Get(key); v.Exists() && v.String() != "" {
			return v.String()
		}
	}
	return ""
}

// Items locates the rows array under the first present key. With no keys the
// conventional `data` and `items` names are tried.
func (e Envelope) Items(keys ...string) ([]gjson.Result, error) {
	if len(keys) == 0 {
		keys = []string{"data", "items"}
	}
	for _, key := range keys {
		v := e.root.Get(key)
		if !v.Exists() || v.Type == gjson.Null {
			continue
		}
		if !v.IsArray() {
			return nil, &Error{Kind: KindMalformed, Detail: key + " is not a list"}
		}
		return v.Array(), nil
	}
	return nil, &Error{Kind: KindMalformed, Detail: "rows missing"}
}

// PageInfo is the pagination block as the backend reported it, with missing
// fields derived from the others.
type PageInfo struct {
	Present bool
	Page    int
	PerPage int
	Pages   int
	Total   int
	HasNext bool
	HasPrev bool
}

// Pagination reads the pagination block. fallbackPerPage fills per_page when the
// backend omits it.
func (e Envelope) Pagination(fallbackPerPage int) PageInfo {
	p := e.root.Get("pagination")
	if !p.Exists() || !p.IsObject() {
		total := e.root.Get("total")
		if !total.Exists() {
			return PageInfo{}
		}
		p = e.root
	}
	info := PageInfo{Present: true}
	info.Page = int(first(p, "page", "current_page").Int())
	if info.Page <= 0 {
		info.Page = 1
	}
	info.PerPage = int(first(p, "per_page", "page_size", "pageSize").Int())
	if info.PerPage <= 0 {
		info.PerPage = fallbackPerPage
	}
	info.Total = int(first(p, "total", "total_items", "totalItems").Int())
	pages := first(p, "pages", "total_pages", "totalPages")
	if pages.Exists() {
		info.Pages = int(pages.Int())
	} else if info.PerPage > 0 {
		info.Pages = int(math.Ceil(float64(info.Total) / float64(info.PerPage)))
	}
	if v := first(p, "has_next", "hasNext"); v.Exists() {
		info.HasNext = v.Bool()
	} else {
		info.HasNext = info.Page < info.Pages
	}
	if v := first(p, "has_prev", "hasPrev"); v.Exists() {
		info.HasPrev = v.Bool()
	} else {
		info.HasPrev = info.Page > 1
	}
	return info
}

func first(obj gjson.Result, keys ...string) gjson.Result {
	for _, key := range keys {
		if v := obj.Get(key); v.Exists() {
			return v
		}
	}
	return gjson.Result{}
}
