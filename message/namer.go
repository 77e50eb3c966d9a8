package message

import (
	"reflect"
	"strings"
)

// NameOf returns the canonical type identity of an envelope: the type-name
// header when the transport supplied one, else the reflected Go type name.
func NameOf(env Envelope) string {
	if name := env.Descriptor.Header(HeaderTypeName); name != "" {
		if version := env.Descriptor.Header(HeaderTypeVersion); version != "" {
			return strings.Join([]string{name, version}, ".")
		}
		return name
	}

	return typeNameOf(env.Payload)
}

func typeNameOf(v any) string {
	t := reflect.TypeOf(v)
	if t == nil {
		return ""
	}

	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}

	if t.PkgPath() == "" {
		return t.String()
	}

	return t.PkgPath() + "." + t.Name()
}
