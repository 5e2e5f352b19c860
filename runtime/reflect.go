package runtime

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
)

var (
	rendererType = reflect.TypeOf((*Renderer)(nil)).Elem()
	errorType    = reflect.TypeOf((*error)(nil)).Elem()
)

// Reflect adapts an arbitrary Go value to a Renderer.
//
// Strings, booleans and numbers map to the built-in renderers. Maps with
// string keys and structs resolve keys lazily: struct fields match their
// `mustache` tag, then their name, then their name ignoring case; exported
// methods without arguments are resolved as lambdas. Slices and arrays are
// lists, []byte renders as text. Pointers and interfaces are followed, nil
// renders as Null. Functions taking nothing or a single string, returning a
// value and optionally an error, become lambdas.
func Reflect(v any) Renderer {
	switch x := v.(type) {
	case nil:
		return Null{}
	case Renderer:
		if rv := reflect.ValueOf(x); rv.Kind() == reflect.Pointer && rv.IsNil() {
			return Null{}
		}
		return x
	case string:
		return String(x)
	case bool:
		return Bool(x)
	case int:
		return Int(x)
	case int64:
		return Int(x)
	case float64:
		return Float(x)
	case json.Number:
		return numberFromJSON(x)
	case func() any:
		return Lambda(x)
	case func(string) any:
		return SectionLambda(x)
	case []any:
		list := make(List, len(x))
		for i, item := range x {
			list[i] = Reflect(item)
		}
		return list
	case map[string]any:
		return reflectMap{reflect.ValueOf(x)}
	}
	return reflectValue(reflect.ValueOf(v))
}

func reflectValue(rv reflect.Value) Renderer {
	if !rv.IsValid() {
		return Null{}
	}
	if rv.Type().Implements(rendererType) && rv.CanInterface() {
		if (rv.Kind() == reflect.Pointer || rv.Kind() == reflect.Interface) && rv.IsNil() {
			return Null{}
		}
		return rv.Interface().(Renderer)
	}

	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			return Null{}
		}
		return reflectValue(rv.Elem())
	case reflect.String:
		return String(rv.String())
	case reflect.Bool:
		return Bool(rv.Bool())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return Int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return Uint(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return Float(rv.Float())
	case reflect.Slice:
		if rv.IsNil() {
			return List(nil)
		}
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			return String(rv.Bytes())
		}
		return reflectList{rv}
	case reflect.Array:
		return reflectList{rv}
	case reflect.Map:
		if rv.Type().Key().Kind() != reflect.String {
			return Null{}
		}
		if rv.IsNil() {
			return Map(nil)
		}
		return reflectMap{rv}
	case reflect.Struct:
		return reflectStruct{rv}
	case reflect.Func:
		if rv.IsNil() {
			return Null{}
		}
		return reflectFunc(rv)
	}

	if rv.CanInterface() {
		if s, ok := rv.Interface().(fmt.Stringer); ok {
			return String(s.String())
		}
	}
	return Null{}
}

type reflectList struct {
	rv reflect.Value
}

func (l reflectList) IsTruthy() bool { return l.rv.Len() > 0 }

func (l reflectList) SizeHint() int {
	size := 0
	for i := 0; i < l.rv.Len(); i++ {
		size += reflectValue(l.rv.Index(i)).SizeHint()
	}
	return size
}

func (reflectList) RenderEscaped(Context, *Writer) error   { return nil }
func (reflectList) RenderUnescaped(Context, *Writer) error { return nil }

func (l reflectList) RenderSection(ctx Context, w *Writer) error {
	for i := 0; i < l.rv.Len(); i++ {
		item := reflectValue(l.rv.Index(i))
		if !item.IsTruthy() {
			continue
		}
		if err := ctx.Push(item).Render(w); err != nil {
			return err
		}
	}
	return nil
}

type reflectMap struct {
	rv reflect.Value
}

func (m reflectMap) IsTruthy() bool { return m.rv.Len() > 0 }
func (m reflectMap) SizeHint() int  { return 0 }

func (reflectMap) RenderEscaped(Context, *Writer) error   { return nil }
func (reflectMap) RenderUnescaped(Context, *Writer) error { return nil }

func (m reflectMap) Resolve(key string) (Renderer, bool) {
	k := reflect.ValueOf(key).Convert(m.rv.Type().Key())
	value := m.rv.MapIndex(k)
	if !value.IsValid() {
		return nil, false
	}
	return reflectValue(value), true
}

type reflectStruct struct {
	rv reflect.Value
}

func (reflectStruct) IsTruthy() bool { return true }
func (reflectStruct) SizeHint() int  { return 0 }

func (reflectStruct) RenderEscaped(Context, *Writer) error   { return nil }
func (reflectStruct) RenderUnescaped(Context, *Writer) error { return nil }

func (s reflectStruct) Resolve(key string) (Renderer, bool) {
	t := s.rv.Type()

	fold := -1
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		tag := field.Tag.Get("mustache")
		if tag == "-" {
			continue
		}
		if tag == key || (tag == "" && field.Name == key) {
			return reflectValue(s.rv.Field(i)), true
		}
		if fold < 0 && tag == "" && strings.EqualFold(field.Name, key) {
			fold = i
		}
	}
	if fold >= 0 {
		return reflectValue(s.rv.Field(fold)), true
	}

	if method := s.method(key); method.IsValid() {
		return reflectFunc(method), true
	}
	return nil, false
}

func (s reflectStruct) method(name string) reflect.Value {
	if s.rv.CanAddr() {
		if m := s.rv.Addr().MethodByName(name); m.IsValid() {
			return m
		}
	}
	return s.rv.MethodByName(name)
}

// reflectFunc wraps callables with a lambda signature. Other functions
// render as Null.
func reflectFunc(fn reflect.Value) Renderer {
	t := fn.Type()
	if t.IsVariadic() || t.NumOut() < 1 || t.NumOut() > 2 {
		return Null{}
	}
	if t.NumOut() == 2 && t.Out(1) != errorType {
		return Null{}
	}

	switch {
	case t.NumIn() == 0:
		return Lambda(func() any { return call(fn, nil) })
	case t.NumIn() == 1 && t.In(0).Kind() == reflect.String:
		return SectionLambda(func(text string) any {
			arg := reflect.ValueOf(text).Convert(t.In(0))
			return call(fn, []reflect.Value{arg})
		})
	}
	return Null{}
}

func call(fn reflect.Value, args []reflect.Value) any {
	out := fn.Call(args)
	if len(out) == 2 && !out[1].IsNil() {
		return out[1].Interface()
	}
	if out[0].Kind() == reflect.String {
		return out[0].String()
	}
	if !out[0].CanInterface() {
		return nil
	}
	return out[0].Interface()
}
