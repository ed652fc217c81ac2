// Package processors contains the built-in processor classes and Register,
// which adds them to a registry.
//
// Data types: IntSource, IntOffset, IntSum and AsyncSquare exchange "int"
// data; FloatSource publishes "float"; Sink accepts anything and keeps the
// last value it received in a read-only property.
package processors
