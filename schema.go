package databus

import "github.com/casualjim/databus/bus"

type schemaOf[T any] struct {
	name string
}

func (s schemaOf[T]) TypeName() string { return s.name }

func (s schemaOf[T]) New() any { return new(T) }

// SchemaOf builds the structural descriptor for record type T under the given
// wire name. The descriptor is opaque to this library; it is handed to the
// runtime at topic creation unmodified.
func SchemaOf[T any](name string) bus.Schema {
	return schemaOf[T]{name: name}
}
