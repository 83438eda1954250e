package alla

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/funvibe/alla/internal/vm"
)

var valueType = reflect.TypeOf(vm.Value{})

// hostFnName labels Go functions converted without a binding name
const hostFnName = "<host fn>"

// Marshaller handles conversion between Go and alla values.
type Marshaller struct{}

func NewMarshaller() *Marshaller {
	return &Marshaller{}
}

// ToValue converts a Go value to an alla value.
func (m *Marshaller) ToValue(val interface{}) (vm.Value, error) {
	if val == nil {
		return vm.NilVal(), nil
	}
	switch x := val.(type) {
	case vm.Value:
		return x, nil
	case vm.Object:
		return vm.ObjVal(x), nil
	}

	v := reflect.ValueOf(val)
	switch v.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return vm.IntVal(v.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return vm.IntVal(int64(v.Uint())), nil
	case reflect.Float32, reflect.Float64:
		return vm.FloatVal(v.Float()), nil
	case reflect.Bool:
		return vm.BoolVal(v.Bool()), nil
	case reflect.String:
		return vm.StringVal(v.String()), nil
	case reflect.Func:
		return vm.ObjVal(m.hostFunction(hostFnName, v)), nil
	case reflect.Map:
		return m.mapToInstance(v)
	case reflect.Struct:
		// Struct by value -> Instance (copy)
		return m.structToInstance(v)
	case reflect.Ptr:
		if v.IsNil() {
			return vm.NilVal(), nil
		}
		return m.ToValue(v.Elem().Interface())
	}
	return vm.NilVal(), fmt.Errorf("cannot convert %T to an alla value", val)
}

// FromValue converts an alla value to a Go value.
// targetType is optional; if provided, tries to convert to that type.
func (m *Marshaller) FromValue(val vm.Value, targetType reflect.Type) (interface{}, error) {
	if targetType == valueType {
		return val, nil
	}

	switch val.Type {
	case vm.ValNil:
		return nil, nil
	case vm.ValInt:
		return convertNumber(val.AsInt(), targetType, int(val.AsInt()))
	case vm.ValFloat:
		return convertNumber(val.AsFloat(), targetType, val.AsFloat())
	case vm.ValBool:
		return val.AsBool(), nil
	}

	switch o := val.Obj.(type) {
	case *vm.String:
		return o.Value, nil
	case *vm.Instance:
		if targetType != nil && targetType.Kind() == reflect.Struct {
			return m.instanceToStruct(o, targetType)
		}
		return m.instanceToMap(o)
	}
	// Functions, classes and bound methods stay opaque handles
	return val.Obj, nil
}

// convertNumber converts n to a numeric targetType, or returns def
func convertNumber(n interface{}, targetType reflect.Type, def interface{}) (interface{}, error) {
	if targetType == nil || targetType.Kind() == reflect.Interface {
		return def, nil
	}
	switch targetType.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return reflect.ValueOf(n).Convert(targetType).Interface(), nil
	}
	return nil, fmt.Errorf("cannot convert number to %s", targetType)
}

func (m *Marshaller) mapToInstance(v reflect.Value) (vm.Value, error) {
	if v.Type().Key().Kind() != reflect.String {
		return vm.NilVal(), fmt.Errorf("map keys must be strings, got %s", v.Type().Key())
	}
	keys := make([]string, 0, v.Len())
	for _, k := range v.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)

	inst := (&vm.Class{Name: "map"}).NewInstance()
	for _, k := range keys {
		fv, err := m.ToValue(v.MapIndex(reflect.ValueOf(k).Convert(v.Type().Key())).Interface())
		if err != nil {
			return vm.NilVal(), fmt.Errorf("key %s: %w", k, err)
		}
		inst.SetField(k, fv)
	}
	return vm.ObjVal(inst), nil
}

func (m *Marshaller) structToInstance(v reflect.Value) (vm.Value, error) {
	t := v.Type()
	inst := (&vm.Class{Name: t.Name()}).NewInstance()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if !field.IsExported() {
			continue
		}
		fv, err := m.ToValue(v.Field(i).Interface())
		if err != nil {
			return vm.NilVal(), fmt.Errorf("field %s: %w", field.Name, err)
		}
		inst.SetField(field.Name, fv)
	}
	return vm.ObjVal(inst), nil
}

func (m *Marshaller) instanceToMap(inst *vm.Instance) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(inst.Fields))
	for _, f := range inst.Fields {
		gv, err := m.FromValue(f.Value, nil)
		if err != nil {
			return nil, err
		}
		result[f.Name] = gv
	}
	return result, nil
}

func (m *Marshaller) instanceToStruct(inst *vm.Instance, targetType reflect.Type) (interface{}, error) {
	out := reflect.New(targetType).Elem()
	for _, f := range inst.Fields {
		sf, ok := targetType.FieldByName(f.Name)
		if !ok || !sf.IsExported() {
			continue
		}
		gv, err := m.FromValue(f.Value, sf.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		if gv == nil {
			continue
		}
		rv := reflect.ValueOf(gv)
		if !rv.Type().AssignableTo(sf.Type) {
			return nil, fmt.Errorf("field %s: cannot assign %s to %s", f.Name, rv.Type(), sf.Type)
		}
		out.FieldByIndex(sf.Index).Set(rv)
	}
	return out.Interface(), nil
}
