package router

import (
	"encoding/json"
	"fmt"

	"github.com/hupe1980/tripmesh/core"
)

const intentInstructions = `당신은 여행 계획 조율자입니다.
사용자의 메시지를 분석하여 어떤 에이전트가 처리해야 할지 결정하세요.

가능한 의도:
1. planner: 여행 계획 수립, 일정 조정, 예산 계획 등
2. calendar: 일정 등록, 일정 확인, 일정 수정 등
3. recommendation: 여행지 추천, 여행 스타일 추천, 맞춤형 여행 계획 추천 등

각 에이전트별 컨텍스트 (필수):
- planner: {
    "departure_location": "출발지 (필수)",
    "departure_date": "출발 날짜 (필수) (yyyy-mm-dd) (올해는 %d년)",
    "destination": "여행지 (필수)",
    "duration": "여행 기간 (필수)",
    "preferences": {
        "budget": "예산 (필수)",
        "activities": ["선호 활동 (필수)"],
        "accommodation": "숙박 선호도 (필수)",
        "transportation": "교통수단 선호도 (필수)"
    }
  }
- recommendation: {
    "recommendation_step": "preferences|destination",
    "collected_info": {
        "travel_style": "여행 스타일",
        "activities": ["선호 활동들"],
        "budget": "예산 범위",
        "accommodation": "숙박 선호도",
        "transportation": "교통수단 선호도"
    }
  }

현재까지의 컨텍스트:
%s

이전 결과 데이터:
%s

중요:
1. 현재 컨텍스트에 이미 있는 정보는 missing_info에 포함하지 마세요.
2. 값이 null이거나 빈 리스트인 필드는 아직 제공되지 않은 것으로 간주하세요.
3. 현재 컨텍스트와 이전 결과 데이터는 그대로 유지하고 새로운 정보만 extracted_context에 추가하세요.
4. destination 정보가 없으면 planner를 선택하지 말고 recommendation으로 정보를 모으세요.
5. destination을 추출했다면 primary_intent를 "planner"로 설정하고, 추천 단계에서 수집된 정보를 planner의 preferences에 매핑하세요.
6. 중첩 필드는 "preferences.budget"처럼 점으로 구분할 수 있습니다.

응답은 반드시 JSON 객체 하나로만 제공하세요:
{
    "primary_intent": "planner|recommendation|calendar",
    "confidence": 0.0-1.0,
    "required_context": ["field1"],
    "suggested_next_steps": ["step1"],
    "extracted_context": {"field1": "추출된 값"},
    "missing_info": {
        "fields": ["field1"],
        "message": "사용자에게 필요한 정보를 요청하는 메시지",
        "examples": {"field1": "예시 값"}
    }
}`

// formatContext renders the planner and recommendation views of the current
// context for the classification prompt.
func formatContext(c core.Context) string {
	prefs := c.Map("preferences")
	collected := c.Map("collected_info")

	view := map[string]any{
		"departure_location": c["departure_location"],
		"departure_date":     c["departure_date"],
		"destination":        c["destination"],
		"duration":           c["duration"],
		"preferences": map[string]any{
			"budget":         prefs["budget"],
			"activities":     listOrEmpty(prefs["activities"]),
			"accommodation":  prefs["accommodation"],
			"transportation": prefs["transportation"],
		},
		"recommendation": map[string]any{
			"recommendation_step": c["recommendation_step"],
			"collected_info": map[string]any{
				"travel_style":   collected["travel_style"],
				"activities":     listOrEmpty(collected["activities"]),
				"budget":         collected["budget"],
				"accommodation":  collected["accommodation"],
				"transportation": collected["transportation"],
			},
		},
	}

	return indentJSON(view)
}

func listOrEmpty(v any) any {
	if v == nil {
		return []any{}
	}
	return v
}

func indentJSON(v any) string {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(data)
}

func buildInstructions(year int, current, collected core.Context) string {
	return fmt.Sprintf(intentInstructions, year, formatContext(current), indentJSON(collected))
}
