package redis

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/gamesub/gamesub/internal/db"
)

// CreateIndex runs FT.CREATE for def. An existing index yields db.ErrIndexExists.
func (s *Store) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	args, err := buildCreateArgs(def)
	if err != nil {
		return err
	}

	err = s.do(ctx, s.b().Arbitrary("FT.CREATE").Args(args...).Build()).Error()
	switch {
	case err == nil:
		return nil
	case isRedisErr(err, "index already exists"):
		return db.ErrIndexExists
	default:
		return &db.Error{Op: db.OpCreateIndex, Err: err}
	}
}

// DropIndex removes the index; the indexed hashes stay.
func (s *Store) DropIndex(ctx context.Context, name string) error {
	err := s.do(ctx, s.b().Arbitrary("FT.DROPINDEX").Args(name).Build()).Error()
	switch {
	case err == nil:
		return nil
	case isUnknownIndex(err):
		return db.ErrIndexNotFound
	default:
		return &db.Error{Op: db.OpDropIndex, Err: err}
	}
}

// IndexExists probes the index with FT.INFO. A server without the search
// module answers "unknown command", which is returned as an error.
func (s *Store) IndexExists(ctx context.Context, name string) (bool, error) {
	err := s.do(ctx, s.b().Arbitrary("FT.INFO").Args(name).Build()).Error()
	switch {
	case err == nil:
		return true, nil
	case isUnknownIndex(err):
		return false, nil
	default:
		return false, &db.Error{Op: db.OpIndexInfo, Err: err}
	}
}

// Redis Stack and Redis 8 word the missing-index error differently.
func isUnknownIndex(err error) bool {
	return isRedisErr(err, "unknown index name") || isRedisErr(err, "no such index")
}

func buildCreateArgs(idx *db.IndexDefinition) ([]string, error) {
	if idx.Name == "" {
		return nil, errors.New("index name is required")
	}
	if len(idx.Fields) == 0 {
		return nil, errors.New("at least one field is required")
	}

	args := []string{idx.Name, "ON", "HASH"}
	if len(idx.Prefixes) > 0 {
		args = append(args, "PREFIX", strconv.Itoa(len(idx.Prefixes)))
		args = append(args, idx.Prefixes...)
	}
	args = append(args, "SCHEMA")

	for i := range idx.Fields {
		fieldArgs, err := buildFieldArgs(&idx.Fields[i])
		if err != nil {
			return nil, err
		}
		args = append(args, fieldArgs...)
	}
	return args, nil
}

func buildFieldArgs(f *db.IndexField) ([]string, error) {
	if f.Name == "" {
		return nil, errors.New("field name is required")
	}

	var args []string
	switch f.Type {
	case db.IndexFieldNumeric:
		args = []string{f.Name, "NUMERIC"}
	case db.IndexFieldTag:
		args = []string{f.Name, "TAG"}
	case db.IndexFieldVector:
		if f.Vector == nil {
			return nil, fmt.Errorf("vector field %s has no vector spec", f.Name)
		}
		vec, err := vectorArgs(f.Vector)
		if err != nil {
			return nil, fmt.Errorf("vector field %s: %w", f.Name, err)
		}
		return append([]string{f.Name}, vec...), nil
	default:
		return nil, fmt.Errorf("field %s: unknown type %d", f.Name, f.Type)
	}

	if f.Sortable {
		args = append(args, "SORTABLE")
	}
	return args, nil
}

// vectorArgs renders "VECTOR <algo> <nargs> TYPE FLOAT32 DIM n DISTANCE_METRIC m [M x] [EF_CONSTRUCTION y]".
func vectorArgs(v *db.VectorSpec) ([]string, error) {
	if v.Dim <= 0 {
		return nil, errors.New("DIM must be positive")
	}

	algo := cmp.Or(v.Algorithm, db.VectorFlat)
	attrs := []string{
		"TYPE", "FLOAT32",
		"DIM", strconv.Itoa(v.Dim),
		"DISTANCE_METRIC", string(cmp.Or(v.Distance, db.DistanceCosine)),
	}
	if algo == db.VectorHNSW {
		if v.M > 0 {
			attrs = append(attrs, "M", strconv.Itoa(v.M))
		}
		if v.EFConstruct > 0 {
			attrs = append(attrs, "EF_CONSTRUCTION", strconv.Itoa(v.EFConstruct))
		}
	}

	return append([]string{"VECTOR", string(algo), strconv.Itoa(len(attrs))}, attrs...), nil
}
