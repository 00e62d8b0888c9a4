// Package shell provides conversion functions between domain events and storable
// events for the VM request platform.
//
// This package implements the "imperative shell" pattern, handling the
// translation between the functional core (domain events) and the external
// storage layer (storable events). It manages event serialization,
// deserialization, metadata handling, and the retry policy used by the
// provisioning workflow when optimistic appends collide.
//
// In Domain-Driven Design or Hexagonal Architecture terminology, this would be
// called the 'infrastructure' layer.
package shell
