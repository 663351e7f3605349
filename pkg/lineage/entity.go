package lineage

// Direction identifies one side of the lineage graph relative to a node.
type Direction string

const (
	// DirectionUpstream refers to entities that feed data into a node.
	DirectionUpstream Direction = "upstream"
	// DirectionDownstream refers to entities that consume data from a node.
	DirectionDownstream Direction = "downstream"
)

// Valid reports whether d is one of the two known directions.
func (d Direction) Valid() bool {
	return d == DirectionUpstream || d == DirectionDownstream
}

// Entity is an identity record for a catalog object (usually a table).
// Entities are immutable once fetched; the fully-qualified name is the
// stable cross-reference key, with the id as fallback.
type Entity struct {
	ID          string `json:"id" bson:"id"`
	Type        string `json:"type,omitempty" bson:"type,omitempty"`
	Name        string `json:"name,omitempty" bson:"name,omitempty"`
	FQN         string `json:"fqn,omitempty" bson:"fqn,omitempty"` // dotted path, e.g. service.db.schema.table
	DisplayName string `json:"display_name,omitempty" bson:"display_name,omitempty"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
	Deleted     bool   `json:"deleted,omitempty" bson:"deleted,omitempty"`
}

// Key returns the stable cross-reference key: the fully-qualified name when
// present, otherwise the id.
func (e Entity) Key() string {
	if e.FQN != "" {
		return e.FQN
	}
	return e.ID
}

// Label returns the best human-readable name for the entity.
func (e Entity) Label() string {
	if e.DisplayName != "" {
		return e.DisplayName
	}
	if e.Name != "" {
		return e.Name
	}
	return e.Key()
}

// Edge is a directed relation between two entities: From feeds into To,
// i.e. From is upstream of To. Endpoints reference entities by id with an
// optional fully-qualified name; provenance fields are informational.
type Edge struct {
	FromID  string `json:"from_id" bson:"from_id"`
	ToID    string `json:"to_id" bson:"to_id"`
	FromFQN string `json:"from_fqn,omitempty" bson:"from_fqn,omitempty"`
	ToFQN   string `json:"to_fqn,omitempty" bson:"to_fqn,omitempty"`

	// Provenance (optional).
	Pipeline    string `json:"pipeline,omitempty" bson:"pipeline,omitempty"`
	Source      string `json:"source,omitempty" bson:"source,omitempty"`
	SQLQuery    string `json:"sql_query,omitempty" bson:"sql_query,omitempty"`
	Description string `json:"description,omitempty" bson:"description,omitempty"`
}

// FromKey returns the cross-reference key of the source endpoint.
func (e Edge) FromKey() string {
	if e.FromFQN != "" {
		return e.FromFQN
	}
	return e.FromID
}

// ToKey returns the cross-reference key of the target endpoint.
func (e Edge) ToKey() string {
	if e.ToFQN != "" {
		return e.ToFQN
	}
	return e.ToID
}
