// Package tensor provides the core tensor types of the engine: shapes,
// strided views over shared float32 storage, ranges, the Backend capability
// interface and the error taxonomy shared by every component.
package tensor
