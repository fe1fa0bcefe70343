// Package mapping declares how Go types are stored in relational tables:
// one TableMapping per type and one ColumnMapping per mapped property.
// Mappings are declared once, validated eagerly and kept in a registry.
package mapping
