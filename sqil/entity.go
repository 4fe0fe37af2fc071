// Package sqil implements the Structured Query Intermediate Language: the
// entity/attribute model, the expression and query-shape algebra, and a
// generic walker over both. It is the wire format between the pushdown
// planner (package planner) and everything downstream of it — the dialect
// compilers (package compiler/...) and the reference executor (package
// refexec).
package sqil

import "github.com/sqilrun/sqil/value"

// EntityId is the opaque, stable identifier of a remote entity (usually a
// table name as the connector understands it).
type EntityId string

// AttributeId names a column of an aliased entity within a single query.
type AttributeId struct {
	EntityAlias string
	AttributeId string
}

// AttributeConfig describes one column of an entity.
type AttributeConfig struct {
	Id       string
	Type     value.Type
	Nullable bool
}

// EntitySourceConfig is the connector-specific mapping of an entity onto
// its physical source. Only the Table variant is implemented; custom
// queries are an open question (see DESIGN.md).
type EntitySourceConfig struct {
	Schema            string
	Table             string
	AttributeColumnMap map[string]string
}

// ColumnFor resolves an attribute id to its physical column name,
// honoring an AttributeColumnMap override when present.
func (c EntitySourceConfig) ColumnFor(attr string) string {
	if c.AttributeColumnMap != nil {
		if col, ok := c.AttributeColumnMap[attr]; ok {
			return col
		}
	}
	return attr
}

// EntityConfig is the immutable, once-loaded description of a remote
// entity: its attributes and how to reach it physically.
type EntityConfig struct {
	Id         EntityId
	Attributes []AttributeConfig
	Source     EntitySourceConfig
}

func NewEntityConfig(id EntityId, attrs []AttributeConfig, source EntitySourceConfig) EntityConfig {
	return EntityConfig{Id: id, Attributes: attrs, Source: source}
}

// Attribute looks up an attribute's config by id.
func (e EntityConfig) Attribute(id string) (AttributeConfig, bool) {
	for _, a := range e.Attributes {
		if a.Id == id {
			return a, true
		}
	}
	return AttributeConfig{}, false
}

// EntitySource names an instance of an entity within a single query.
type EntitySource struct {
	EntityId EntityId
	Alias    string
}

func NewEntitySource(id EntityId, alias string) EntitySource {
	return EntitySource{EntityId: id, Alias: alias}
}
