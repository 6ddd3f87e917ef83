package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/tripmesh/core"
	"github.com/hupe1980/tripmesh/logging"
	"github.com/hupe1980/tripmesh/model"
)

const (
	intentInstructions = `당신은 여행 검색 의도 분석 전문가입니다.
주어진 장소 목록을 분석하여 각 장소의 검색 유형과 특성을 파악해주세요.
search_type은 장소/호텔/음식점/관광지 중 하나이며 priority는 1에서 5 사이의 검색 우선순위입니다.`

	describeInstructions = `당신은 여행 장소 설명 전문가입니다.
주어진 장소에 대한 매력적인 설명을 작성해주세요.
다음 정보를 포함해주세요:
1. 장소의 주요 특징
2. 방문하기 좋은 시간
3. 주변 관광지
4. 교통 정보
5. 방문 팁`
)

// recommendedCategories are the recommendation categories whose items are
// searched in addition to the itinerary locations.
var recommendedCategories = map[string]bool{"관광지": true, "쇼핑": true}

// PlaceSearcher looks up places for a free text query.
type PlaceSearcher interface {
	Search(ctx context.Context, query string) ([]core.Place, error)
}

// SearchTarget is one location of the search intent.
type SearchTarget struct {
	Name       string   `json:"name"`
	SearchType string   `json:"search_type" jsonschema:"enum=장소,enum=호텔,enum=음식점,enum=관광지"`
	Keywords   []string `json:"keywords"`
	Priority   int      `json:"priority" jsonschema:"minimum=1,maximum=5"`
}

// SearchIntent is the oracle's analysis of the locations to look up.
type SearchIntent struct {
	Locations         []SearchTarget `json:"locations"`
	CommonPreferences map[string]any `json:"common_preferences"`
}

// SearchOptions configure a Search handler.
type SearchOptions struct {
	// Concurrency bounds the number of locations looked up in parallel.
	Concurrency int
	// MinPriority skips intent locations with a lower priority.
	MinPriority int
	MaxAttempts int
	Logger      logging.Logger
}

// Search finds places for the locations of a travel plan.
type Search struct {
	oracle   model.Model
	searcher PlaceSearcher
	opts     SearchOptions
}

// NewSearch creates a Search handler.
func NewSearch(oracle model.Model, searcher PlaceSearcher, optFns ...func(o *SearchOptions)) *Search {
	opts := SearchOptions{
		Concurrency: 4,
		MinPriority: 5,
		MaxAttempts: model.DefaultMaxAttempts,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 1
	}
	opts.Logger = logging.OrNoOp(opts.Logger)
	return &Search{oracle: oracle, searcher: searcher, opts: opts}
}

// Name implements core.Handler.
func (s *Search) Name() string { return core.HandlerSearch }

// Validate implements core.Handler.
func (s *Search) Validate(req core.Request) bool {
	return req.Plan != nil || req.Context.Has("query")
}

// MissingFields implements core.FieldRequirer.
func (s *Search) MissingFields(req core.Request) []string {
	if s.Validate(req) {
		return nil
	}
	return []string{"query"}
}

// Process implements core.Handler.
func (s *Search) Process(ctx context.Context, req core.Request) core.Result {
	if !s.Validate(req) {
		return core.Failure("Invalid search query", "검색 쿼리가 누락되었습니다.")
	}

	req.Report("장소 정보를 검색하고 있습니다...")

	locations := searchLocations(req)

	intent, err := model.Decode[SearchIntent](ctx, s.oracle, intentPrompt(locations, req.Context), func(o *model.DecodeOptions) {
		o.Instructions = intentInstructions
		o.MaxAttempts = s.opts.MaxAttempts
	})
	if err != nil {
		return searchFailure(err)
	}

	results, err := s.lookup(ctx, req.SessionKey, intent.Locations)
	if err != nil {
		return searchFailure(err)
	}

	return core.Result{
		Status:  core.StatusSuccess,
		Message: "장소 검색이 완료되었습니다.",
		Data: &core.SearchResult{
			Locations:         results,
			CommonPreferences: intent.CommonPreferences,
		},
	}
}

// lookup searches every target at or above MinPriority. Individual failures
// are logged and dropped; the lookup fails only when every target failed.
func (s *Search) lookup(ctx context.Context, sessionKey string, targets []SearchTarget) ([]core.LocationResult, error) {
	var selected []SearchTarget
	for _, t := range targets {
		if t.Priority >= s.opts.MinPriority && strings.TrimSpace(t.Name) != "" {
			selected = append(selected, t)
		}
	}
	if len(selected) == 0 {
		return nil, nil
	}

	results := make([]*core.LocationResult, len(selected))

	var (
		mu   sync.Mutex
		errs []error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)

	for i, t := range selected {
		g.Go(func() error {
			res, err := s.searchOne(gctx, t)
			if err != nil {
				s.opts.Logger.Warn("place search failed", "session_key", sessionKey, "location", t.Name, "error", err)
				mu.Lock()
				errs = append(errs, fmt.Errorf("%s: %w", t.Name, err))
				mu.Unlock()
				return nil
			}
			results[i] = res
			return nil
		})
	}

	_ = g.Wait()

	var out []core.LocationResult
	for _, r := range results {
		if r != nil {
			out = append(out, *r)
		}
	}

	if len(out) == 0 && len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return out, nil
}

func (s *Search) searchOne(ctx context.Context, t SearchTarget) (*core.LocationResult, error) {
	places, err := s.searcher.Search(ctx, t.Name)
	if err != nil {
		return nil, err
	}

	for i := range places {
		p := &places[i]
		desc, err := model.Complete(ctx, s.oracle, model.Prompt(describeInstructions,
			fmt.Sprintf("장소: %s, 위치: %s, 카테고리: %s", p.Name, p.Address, p.Category)))
		if err != nil {
			return nil, fmt.Errorf("describe %s: %w", p.Name, err)
		}
		p.Description = strings.TrimSpace(desc)
	}

	return &core.LocationResult{Location: t.Name, SearchType: t.SearchType, Places: places}, nil
}

// searchLocations collects the distinct itinerary locations followed by the
// recommended sights and shops. Without a plan the context query is used.
func searchLocations(req core.Request) []string {
	if req.Plan == nil {
		return []string{req.Context.String("query")}
	}

	locations := req.Plan.Locations()
	seen := make(map[string]bool, len(locations))
	for _, l := range locations {
		seen[l] = true
	}

	for _, rec := range req.Plan.Recommendations {
		if !recommendedCategories[rec.Category] {
			continue
		}
		for _, item := range rec.Items {
			if item != "" && !seen[item] {
				seen[item] = true
				locations = append(locations, item)
			}
		}
	}

	return locations
}

func intentPrompt(locations []string, c core.Context) string {
	return fmt.Sprintf("여행 계획의 장소들:\n%s\n\n여행 선호사항:\n%s", mustJSON(locations), mustJSON(c["preferences"]))
}

func searchFailure(err error) core.Result {
	return core.FailureCause("Search failed", err, "장소 검색 중 오류가 발생했습니다.")
}
