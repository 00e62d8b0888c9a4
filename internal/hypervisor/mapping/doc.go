// Package mapping translates abstract VM requests into backend-native specs.
//
// Each tenant has one stored mapping row naming its compute target, datastore
// and network translation table. The translator resolves size categories
// through a fixed catalog and logical network names through the tenant table,
// and fails with a typed MappingError before any backend call when something
// is missing.
package mapping
