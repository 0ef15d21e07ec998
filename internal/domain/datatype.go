package domain

import "reflect"

// DataType — тип данных порта.
type DataType string

const (
	DataTypeString  DataType = "string"
	DataTypeNumber  DataType = "number"
	DataTypeBoolean DataType = "boolean"
	DataTypeObject  DataType = "object"
	DataTypeArray   DataType = "array"
	DataTypeAny     DataType = "any"
)

// DetermineDataType определяет тип данных по значению.
//
// Используется триггерами для поля input_type и валидатором соединений.
func DetermineDataType(v any) DataType {
	switch v.(type) {
	case nil:
		return DataTypeAny
	case string:
		return DataTypeString
	case bool:
		return DataTypeBoolean
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return DataTypeNumber
	case map[string]any:
		return DataTypeObject
	case []any:
		return DataTypeArray
	}

	switch reflect.TypeOf(v).Kind() {
	case reflect.Map, reflect.Struct:
		return DataTypeObject
	case reflect.Slice, reflect.Array:
		return DataTypeArray
	default:
		return DataTypeAny
	}
}
