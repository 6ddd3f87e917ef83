package testutil

import (
	"encoding/json"

	"github.com/hupe1980/tripmesh/core"
)

// SamplePlan returns a small two day Busan plan.
func SamplePlan() *core.TravelPlan {
	return &core.TravelPlan{
		Destination: "부산",
		Duration:    "1박 2일",
		Itinerary: []core.DayPlan{
			{Day: 1, Activities: []core.Activity{
				{Time: "09:00", Activity: "해운대 해변 산책", Location: "해운대", Duration: "2시간", Cost: 0},
				{Time: "12:00", Activity: "돼지국밥 점심", Location: "서면", Duration: "1시간 30분", Cost: 10000},
			}},
			{Day: 2, Activities: []core.Activity{
				{Time: "10:00", Activity: "감천문화마을 투어 (사전 예약 필요)", Location: "감천문화마을", Duration: "3시간", Cost: 5000},
			}},
		},
		Budget: core.Budget{
			Transportation: core.BudgetItem{Estimated: 60000, Details: []core.BudgetDetail{{Item: "KTX 왕복", Cost: 60000}}},
			Accommodation:  core.BudgetItem{Estimated: 120000, Details: []core.BudgetDetail{{Item: "호텔 1박", Cost: 120000}}},
			Food:           core.BudgetItem{Estimated: 50000, Details: []core.BudgetDetail{{Item: "식사 4회", Cost: 50000}}},
			Activities:     core.BudgetItem{Estimated: 5000, Details: []core.BudgetDetail{{Item: "입장료", Cost: 5000}}},
			Total:          235000,
		},
		Recommendations: []core.Recommendation{
			{Category: "관광지", Items: []string{"태종대"}},
			{Category: "맛집", Items: []string{"밀면집"}},
		},
		Tips: []string{"감천문화마을은 언덕이 많아 편한 신발을 준비하세요.", "해운대는 주말에 혼잡합니다."},
	}
}

// JSON marshals v and panics on failure. Handy for scripting oracle replies.
func JSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
