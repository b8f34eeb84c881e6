package domain

import (
	"bytes"
	"encoding/json"
	"reflect"
	"sort"
	"strings"
)

// Extra holds document fields the model does not know about. They are
// written back unchanged, after the modeled fields, so hand-edited
// registries survive a load/save cycle.
type Extra map[string]json.RawMessage

func (e Extra) clone() Extra {
	if e == nil {
		return nil
	}
	c := make(Extra, len(e))
	for k, v := range e {
		c[k] = v
	}
	return c
}

func (s *Source) UnmarshalJSON(data []byte) error {
	type plain Source
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := unknownFields(data, reflect.TypeOf(p))
	if err != nil {
		return err
	}
	*s = Source(p)
	s.Extra = extra
	return nil
}

func (s Source) MarshalJSON() ([]byte, error) {
	type plain Source
	data, err := json.Marshal(plain(s))
	if err != nil {
		return nil, err
	}
	return appendExtra(data, s.Extra)
}

func (st *WQPState) UnmarshalJSON(data []byte) error {
	type plain WQPState
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := unknownFields(data, reflect.TypeOf(p))
	if err != nil {
		return err
	}
	*st = WQPState(p)
	st.Extra = extra
	return nil
}

func (st WQPState) MarshalJSON() ([]byte, error) {
	type plain WQPState
	data, err := json.Marshal(plain(st))
	if err != nil {
		return nil, err
	}
	return appendExtra(data, st.Extra)
}

func (r *Registry) UnmarshalJSON(data []byte) error {
	type plain Registry
	p := plain(*r)
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	extra, err := unknownFields(data, reflect.TypeOf(p))
	if err != nil {
		return err
	}
	*r = Registry(p)
	r.Extra = extra
	return nil
}

func (r Registry) MarshalJSON() ([]byte, error) {
	type plain Registry
	data, err := json.Marshal(plain(r))
	if err != nil {
		return nil, err
	}
	return appendExtra(data, r.Extra)
}

// unknownFields returns the members of the JSON object data that do not map
// to a field of t, or nil when there are none.
func unknownFields(data []byte, t reflect.Type) (Extra, error) {
	var all map[string]json.RawMessage
	if err := json.Unmarshal(data, &all); err != nil {
		return nil, err
	}
	known := jsonFields(t)
	var extra Extra
	for k, v := range all {
		if known[k] {
			continue
		}
		if extra == nil {
			extra = make(Extra)
		}
		extra[k] = v
	}
	return extra, nil
}

// jsonFields lists the JSON member names of struct type t, following
// embedded structs the way encoding/json does.
func jsonFields(t reflect.Type) map[string]bool {
	names := make(map[string]bool)
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		tag := f.Tag.Get("json")
		if tag == "-" {
			continue
		}
		name, _, _ := strings.Cut(tag, ",")
		if f.Anonymous && name == "" && f.Type.Kind() == reflect.Struct {
			for n := range jsonFields(f.Type) {
				names[n] = true
			}
			continue
		}
		if !f.IsExported() {
			continue
		}
		if name == "" {
			name = f.Name
		}
		names[name] = true
	}
	return names
}

// appendExtra adds extra members to the end of the encoded object obj.
func appendExtra(obj []byte, extra Extra) ([]byte, error) {
	if len(extra) == 0 {
		return obj, nil
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Write(obj[:len(obj)-1])
	for i, k := range keys {
		if i > 0 || len(obj) > 2 {
			buf.WriteByte(',')
		}
		name, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(extra[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
