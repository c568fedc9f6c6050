// Package types provides the value types shared by the client packages: nullable
// scalars and a schema-light JSON document that keeps the difference between an
// absent field, an explicit null and a value of the wrong type.
package types

// Nullable is implemented by values that can be absent.
type Nullable interface {
	// IsNil reports whether the value is absent or null.
	IsNil() bool
}
