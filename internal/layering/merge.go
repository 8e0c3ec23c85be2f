// Package layering composes partial configuration values. A nil pointer,
// map, slice or interface in a stronger layer means "not set here" and lets
// the next weaker layer show through.
package layering

import "reflect"

// Merge combines layers ordered from strongest to weakest. Structs merge
// field by field and maps key by key; every other value is taken from the
// strongest layer that sets it. The result shares no memory with the inputs.
func Merge[T any](layers ...T) T {
	var zero T
	if len(layers) == 0 {
		return zero
	}
	merged := clone(reflect.ValueOf(layers[len(layers)-1]))
	for i := len(layers) - 2; i >= 0; i-- {
		merged = merge(reflect.ValueOf(layers[i]), merged)
	}
	if !merged.IsValid() {
		return zero
	}
	out := reflect.New(reflect.TypeOf(&zero).Elem()).Elem()
	out.Set(merged)
	return out.Interface().(T)
}

func merge(strong, weak reflect.Value) reflect.Value {
	if !strong.IsValid() {
		return clone(weak)
	}
	switch strong.Kind() {
	case reflect.Pointer, reflect.Interface:
		if strong.IsNil() {
			return clone(weak)
		}
		var weakElem reflect.Value
		if weak.IsValid() && weak.Kind() == strong.Kind() && !weak.IsNil() {
			weakElem = weak.Elem()
		}
		merged := merge(strong.Elem(), weakElem)
		if strong.Kind() == reflect.Interface {
			return merged.Convert(strong.Type())
		}
		out := reflect.New(strong.Type().Elem())
		out.Elem().Set(merged)
		return out
	case reflect.Struct:
		out := reflect.New(strong.Type()).Elem()
		sameType := weak.IsValid() && weak.Type() == strong.Type()
		for i := 0; i < strong.NumField(); i++ {
			field := out.Field(i)
			if !field.CanSet() {
				continue
			}
			var weakField reflect.Value
			if sameType {
				weakField = weak.Field(i)
			}
			field.Set(merge(strong.Field(i), weakField))
		}
		return out
	case reflect.Map:
		if strong.IsNil() {
			return clone(weak)
		}
		out := clone(weak)
		if !out.IsValid() || out.Kind() != reflect.Map || out.IsNil() {
			out = reflect.MakeMapWithSize(strong.Type(), strong.Len())
		}
		iter := strong.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), merge(iter.Value(), out.MapIndex(iter.Key())))
		}
		return out
	case reflect.Slice:
		if strong.IsNil() {
			return clone(weak)
		}
		return clone(strong)
	}
	return clone(strong)
}

func clone(v reflect.Value) reflect.Value {
	if !v.IsValid() {
		return v
	}
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.New(v.Type().Elem())
		out.Elem().Set(clone(v.Elem()))
		return out
	case reflect.Interface:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		return clone(v.Elem()).Convert(v.Type())
	case reflect.Struct:
		out := reflect.New(v.Type()).Elem()
		for i := 0; i < v.NumField(); i++ {
			if field := out.Field(i); field.CanSet() {
				field.Set(clone(v.Field(i)))
			}
		}
		return out
	case reflect.Map:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeMapWithSize(v.Type(), v.Len())
		iter := v.MapRange()
		for iter.Next() {
			out.SetMapIndex(iter.Key(), clone(iter.Value()))
		}
		return out
	case reflect.Slice:
		if v.IsNil() {
			return reflect.Zero(v.Type())
		}
		out := reflect.MakeSlice(v.Type(), v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			out.Index(i).Set(clone(v.Index(i)))
		}
		return out
	}
	out := reflect.New(v.Type()).Elem()
	out.Set(v)
	return out
}
