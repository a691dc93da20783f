package db

// IndexBuilder assembles an FT index definition.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts building an FT index definition.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name}}
}

// Prefix restricts the index to hashes whose keys start with one of prefixes.
func (b *IndexBuilder) Prefix(prefixes ...string) *IndexBuilder {
	b.def.Prefixes = append(b.def.Prefixes, prefixes...)
	return b
}

// SortableNumeric adds a NUMERIC SORTABLE field (e.g. rating for top-rated scans).
func (b *IndexBuilder) SortableNumeric(name string) *IndexBuilder {
	return b.field(IndexField{Name: name, Type: IndexFieldNumeric, Sortable: true})
}

// Vector adds a VECTOR field.
func (b *IndexBuilder) Vector(name string, spec VectorSpec) *IndexBuilder {
	return b.field(IndexField{Name: name, Type: IndexFieldVector, Vector: &spec})
}

func (b *IndexBuilder) field(f IndexField) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, f)
	return b
}

// Build validates and returns the index definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	return &b.def, nil
}
