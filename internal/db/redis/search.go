package redis

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/redis/rueidis"

	"github.com/gamesub/gamesub/internal/db"
	"github.com/gamesub/gamesub/internal/domain"
)

const (
	defaultVectorField = "embedding"
	scoreAlias         = "__score"
)

// SearchKNN runs a KNN query through FT.SEARCH and returns hits nearest first.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) (*db.SearchResult, error) {
	if err := validateKNN(q); err != nil {
		return nil, err
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(knnArgs(q)...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return parseKNNReply(raw, q.Distance)
}

func validateKNN(q *db.KNNQuery) error {
	switch {
	case q.IndexName == "":
		return errors.New("index name is required")
	case len(q.Vector) == 0:
		return errors.New("vector is required")
	case q.K <= 0:
		return errors.New("k must be positive")
	}
	return nil
}

// knnArgs renders everything after FT.SEARCH:
//
//	idx "*=>[KNN k @field $BLOB [EF_RUNTIME $EF] AS __score]" [RETURN ...]
//	SORTBY __score ASC LIMIT 0 k PARAMS n BLOB <bytes> [EF n] DIALECT 2
func knnArgs(q *db.KNNQuery) []string {
	field := q.VectorField
	if field == "" {
		field = defaultVectorField
	}

	params := []string{"BLOB", string(domain.EncodeVector(q.Vector))}
	ef := ""
	if q.EFRuntime > 0 {
		ef = " EF_RUNTIME $EF"
		params = append(params, "EF", strconv.Itoa(q.EFRuntime))
	}

	args := []string{q.IndexName, fmt.Sprintf("*=>[KNN %d @%s $BLOB%s AS %s]", q.K, field, ef, scoreAlias)}
	if n := len(q.ReturnFields); n > 0 {
		args = append(args, "RETURN", strconv.Itoa(n+1), scoreAlias)
		args = append(args, q.ReturnFields...)
	}
	args = append(args, "SORTBY", scoreAlias, "ASC", "LIMIT", "0", strconv.Itoa(q.K))
	args = append(args, "PARAMS", strconv.Itoa(len(params)))
	args = append(args, params...)
	return append(args, "DIALECT", "2")
}

// parseKNNReply reads the RESP2 shape [total, key, [field, value, ...], key, ...].
// Malformed pairs are skipped rather than failing the whole search.
func parseKNNReply(raw []rueidis.RedisMessage, metric db.DistanceMetric) (*db.SearchResult, error) {
	if len(raw) == 0 {
		return &db.SearchResult{}, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}

	res := &db.SearchResult{Total: int(total)}
	for pair := range pairs(raw[1:]) {
		key, err := pair[0].ToString()
		if err != nil {
			continue
		}
		values, err := pair[1].ToArray()
		if err != nil {
			continue
		}

		entry := db.SearchEntry{Key: key, Fields: fieldMap(values)}
		if dist, ok := entry.Fields[scoreAlias]; ok {
			if d, err := strconv.ParseFloat(dist, 64); err == nil {
				entry.Score = metric.Similarity(d)
			}
			delete(entry.Fields, scoreAlias)
		}
		res.Entries = append(res.Entries, entry)
	}
	return res, nil
}

// pairs yields consecutive two-element windows; a trailing odd element is dropped.
func pairs(msgs []rueidis.RedisMessage) func(yield func([2]rueidis.RedisMessage) bool) {
	return func(yield func([2]rueidis.RedisMessage) bool) {
		for i := 0; i+1 < len(msgs); i += 2 {
			if !yield([2]rueidis.RedisMessage{msgs[i], msgs[i+1]}) {
				return
			}
		}
	}
}

func fieldMap(values []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(values)/2)
	for kv := range pairs(values) {
		name, err := kv[0].ToString()
		if err != nil {
			continue
		}
		if v, err := kv[1].ToString(); err == nil {
			m[name] = v
		}
	}
	return m
}
