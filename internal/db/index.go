package db

import (
	"errors"
	"fmt"
	"regexp"
)

// DistanceMetric used by FT.SEARCH vector similarity queries.
type DistanceMetric string

const (
	DistanceL2     DistanceMetric = "L2"
	DistanceIP     DistanceMetric = "IP"
	DistanceCosine DistanceMetric = "COSINE"
)

// VectorAlgorithm selects the indexing algorithm for vector fields in FT.CREATE.
type VectorAlgorithm string

const (
	VectorHNSW VectorAlgorithm = "HNSW"
	VectorFlat VectorAlgorithm = "FLAT"
)

// IndexFieldType enumerates the FT schema field types the service uses.
type IndexFieldType int

const (
	IndexFieldNumeric IndexFieldType = iota + 1
	IndexFieldTag
	IndexFieldVector
)

// VectorSpec holds the VECTOR attributes of a schema field.
// Zero M / EFConstruct keep the server defaults (16 / 200).
type VectorSpec struct {
	Algorithm   VectorAlgorithm
	Dim         int
	Distance    DistanceMetric
	M           int
	EFConstruct int
}

// IndexField is one SCHEMA entry of an FT index over hashes.
type IndexField struct {
	Name     string
	Type     IndexFieldType
	Sortable bool
	// Vector is required for IndexFieldVector and ignored otherwise.
	Vector *VectorSpec
}

// IndexDefinition is a complete FT index over hashes, used by FT.CREATE.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

var identifierRe = regexp.MustCompile(`^[a-zA-Z0-9_:-]+$`)

// IsValidIdentifier reports whether s can be used as an index or field name.
func IsValidIdentifier(s string) bool {
	return identifierRe.MatchString(s)
}

// Validate reports every problem of the definition at once.
func (idx *IndexDefinition) Validate() error {
	var errs []error
	switch {
	case idx.Name == "":
		errs = append(errs, errors.New("index name is required"))
	case !IsValidIdentifier(idx.Name):
		errs = append(errs, fmt.Errorf("index name %q contains invalid characters", idx.Name))
	}
	if len(idx.Fields) == 0 {
		errs = append(errs, errors.New("at least one field is required"))
	}

	seen := make(map[string]bool, len(idx.Fields))
	for i := range idx.Fields {
		if err := idx.Fields[i].validate(); err != nil {
			errs = append(errs, fmt.Errorf("field %d: %w", i, err))
		}
		name := idx.Fields[i].Name
		if name != "" && seen[name] {
			errs = append(errs, fmt.Errorf("duplicate field name: %s", name))
		}
		seen[name] = true
	}
	return errors.Join(errs...)
}

func (f *IndexField) validate() error {
	if f.Name == "" {
		return errors.New("field name is required")
	}
	if f.Type != IndexFieldVector {
		return nil
	}
	if f.Vector == nil || f.Vector.Dim <= 0 {
		return fmt.Errorf("vector field %s requires positive DIM", f.Name)
	}
	if f.Sortable {
		return fmt.Errorf("vector field %s cannot be SORTABLE", f.Name)
	}
	return nil
}
