package chi

import (
	"context"

	"github.com/gamesub/gamesub/internal/domain/intent"
	"github.com/gamesub/gamesub/internal/domain/search/request"
	"github.com/gamesub/gamesub/internal/domain/search/result"
	"github.com/gamesub/gamesub/internal/repository/history"
	healthuc "github.com/gamesub/gamesub/internal/usecase/health"
	searchuc "github.com/gamesub/gamesub/internal/usecase/search"
)

type searcher interface {
	Search(ctx context.Context, req *request.Request) ([]result.Result, searchuc.SideEffects, error)
}

type recommender interface {
	SimilarTo(ctx context.Context, id int64, limit int) ([]result.Result, error)
	SearchByProfile(ctx context.Context, liked []int64, limit int) ([]result.Result, error)
	Suggest(ctx context.Context, query string, limit int) ([]string, error)
}

type intentCatalogue interface {
	Options() []intent.Group
}

type historyReader interface {
	Recent(ctx context.Context, n int) ([]history.Entry, error)
}

type healthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
