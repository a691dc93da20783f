package chi

import (
	"time"

	"github.com/gamesub/gamesub/internal/domain/intent"
	"github.com/gamesub/gamesub/internal/domain/search/result"
	"github.com/gamesub/gamesub/internal/repository/history"
)

// ErrorCode is the machine-readable error code of an API error.
type ErrorCode string

// Error codes.
const (
	ErrorCodeValidationFailed       ErrorCode = "validation_failed"
	ErrorCodeGameNotFound           ErrorCode = "game_not_found"
	ErrorCodeVectorDimMismatch      ErrorCode = "vector_dim_mismatch"
	ErrorCodeModelUnavailable       ErrorCode = "model_unavailable"
	ErrorCodeEmbeddingProviderError ErrorCode = "embedding_provider_error"
	ErrorCodeInternalError          ErrorCode = "internal_error"
)

type errorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type gameResult struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Slug        string     `json:"slug,omitempty"`
	Description string     `json:"description,omitempty"`
	Image       string     `json:"background_image,omitempty"`
	Genres      []string   `json:"genres"`
	Tags        []string   `json:"tags"`
	Rating      *float64   `json:"rating,omitempty"`
	Released    *time.Time `json:"released,omitempty"`
	Similarity  float64    `json:"similarity"`
	Multiplier  float64    `json:"multiplier"`
	Score       float64    `json:"score"`
	Source      string     `json:"source"`
}

type searchResponse struct {
	Query    string       `json:"query"`
	Mode     string       `json:"mode"`
	Items    []gameResult `json:"items"`
	Total    int          `json:"total"`
	ServedBy string       `json:"served_by,omitempty"`
	Degraded bool         `json:"degraded"`
	Cached   bool         `json:"cached"`
}

type listResponse struct {
	Items []gameResult `json:"items"`
	Total int          `json:"total"`
}

type profileRequest struct {
	LikedIDs []int64 `json:"liked_ids"`
	Limit    int     `json:"limit"`
}

type suggestionsResponse struct {
	Query       string   `json:"query"`
	Suggestions []string `json:"suggestions"`
}

type intentOption struct {
	Tag         string `json:"tag"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

type intentGroup struct {
	Category string         `json:"category"`
	Options  []intentOption `json:"options"`
}

type intentsResponse struct {
	Version    int           `json:"version"`
	Categories []intentGroup `json:"categories"`
}

type historyResponse struct {
	Items []history.Entry `json:"items"`
}

type healthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

func resultsToDTO(rs []result.Result) []gameResult {
	out := make([]gameResult, len(rs))
	for i := range rs {
		r := &rs[i]
		out[i] = gameResult{
			ID:          r.ID(),
			Name:        r.Name(),
			Slug:        r.Slug(),
			Description: r.Description(),
			Image:       r.Image(),
			Genres:      nonNil(r.Genres()),
			Tags:        nonNil(r.Tags()),
			Rating:      r.Rating(),
			Released:    r.Released(),
			Similarity:  r.Similarity(),
			Multiplier:  r.Multiplier(),
			Score:       r.Score(),
			Source:      string(r.Source()),
		}
	}
	return out
}

func intentsToDTO(groups []intent.Group) intentsResponse {
	resp := intentsResponse{Version: intent.Version, Categories: make([]intentGroup, 0, len(groups))}
	for _, g := range groups {
		ig := intentGroup{Category: string(g.Category), Options: make([]intentOption, 0, len(g.Options))}
		for _, o := range g.Options {
			ig.Options = append(ig.Options, intentOption{
				Tag:         string(o.Tag),
				Label:       o.Label,
				Description: o.Description,
			})
		}
		resp.Categories = append(resp.Categories, ig)
	}
	return resp
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
