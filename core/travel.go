package core

import (
	"errors"
	"fmt"
)

// Activity is one scheduled item of a day.
type Activity struct {
	Time     string `json:"time" jsonschema:"description=Start time as HH:MM"`
	Activity string `json:"activity"`
	Location string `json:"location"`
	Duration string `json:"duration" jsonschema:"description=Duration such as 2시간 30분"`
	Cost     int    `json:"cost" jsonschema:"description=Estimated cost in KRW"`
}

// DayPlan groups the activities of one itinerary day.
type DayPlan struct {
	Day        int        `json:"day"`
	Activities []Activity `json:"activities"`
}

// BudgetDetail is one line of a budget category.
type BudgetDetail struct {
	Item string  `json:"item"`
	Cost float64 `json:"cost"`
}

// BudgetItem is the estimated cost of one category in KRW.
type BudgetItem struct {
	Estimated float64        `json:"estimated"`
	Details   []BudgetDetail `json:"details"`
}

// Budget breaks the total cost of a trip down by category.
type Budget struct {
	Transportation BudgetItem `json:"transportation"`
	Accommodation  BudgetItem `json:"accommodation"`
	Food           BudgetItem `json:"food"`
	Activities     BudgetItem `json:"activities"`
	Total          float64    `json:"total"`
}

// Validate implements model.Validator.
func (b *Budget) Validate() error {
	if b.Total < 0 {
		return errors.New("budget total must not be negative")
	}
	return nil
}

// Recommendation lists suggested items of one category (관광지, 맛집, 쇼핑 ...).
type Recommendation struct {
	Category string   `json:"category"`
	Items    []string `json:"items"`
}

// TravelPlan is the artifact produced by the planner handler.
type TravelPlan struct {
	Destination     string           `json:"destination,omitempty"`
	Duration        string           `json:"duration,omitempty"`
	Itinerary       []DayPlan        `json:"itinerary"`
	Budget          Budget           `json:"budget"`
	Recommendations []Recommendation `json:"recommendations"`
	Tips            []string         `json:"tips"`
}

// Validate implements model.Validator.
func (p *TravelPlan) Validate() error {
	if len(p.Itinerary) == 0 {
		return errors.New("itinerary must contain at least one day")
	}
	for i, d := range p.Itinerary {
		if d.Day <= 0 {
			return fmt.Errorf("itinerary[%d]: day must be positive", i)
		}
	}
	return nil
}

// Locations returns the distinct itinerary locations in first-seen order.
func (p *TravelPlan) Locations() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, d := range p.Itinerary {
		for _, a := range d.Activities {
			if a.Location == "" {
				continue
			}
			if _, ok := seen[a.Location]; ok {
				continue
			}
			seen[a.Location] = struct{}{}
			out = append(out, a.Location)
		}
	}
	return out
}

// ActivityCount returns the number of activities over all days.
func (p *TravelPlan) ActivityCount() int {
	n := 0
	for _, d := range p.Itinerary {
		n += len(d.Activities)
	}
	return n
}

// Place is a point of interest returned by the local search provider.
type Place struct {
	Name        string `json:"name"`
	Address     string `json:"address"`
	RoadAddress string `json:"road_address,omitempty"`
	Category    string `json:"category,omitempty"`
	Telephone   string `json:"telephone,omitempty"`
	Link        string `json:"link,omitempty"`
	MapX        string `json:"mapx,omitempty"`
	MapY        string `json:"mapy,omitempty"`
	Description string `json:"description,omitempty"`
}

// LocationResult bundles the places found for one searched location.
type LocationResult struct {
	Location   string  `json:"location"`
	SearchType string  `json:"search_type"`
	Places     []Place `json:"places"`
}

// SearchResult is the aggregated output of the search handler.
type SearchResult struct {
	Locations         []LocationResult `json:"locations"`
	CommonPreferences map[string]any   `json:"common_preferences,omitempty"`
}

// Places flattens every found place.
func (s *SearchResult) Places() []Place {
	if s == nil {
		return nil
	}
	var out []Place
	for _, l := range s.Locations {
		out = append(out, l.Places...)
	}
	return out
}

// CalendarEvent is one event registered through the calendar dialogue.
type CalendarEvent struct {
	ID       string `json:"id,omitempty"`
	Title    string `json:"title"`
	Start    string `json:"start"`
	End      string `json:"end"`
	Location string `json:"location"`
	Link     string `json:"link,omitempty"`
}

// CalendarState is the persisted cursor of the calendar dialogue.
type CalendarState struct {
	CurrentDay      int             `json:"current_day"`
	CurrentActivity int             `json:"current_activity"`
	ConfirmedEvents []CalendarEvent `json:"confirmed_events"`
	Started         bool            `json:"started"`
}

// DeliveryJob asks the delivery pool to search places for a finished plan
// and mail the result to Email.
type DeliveryJob struct {
	SessionKey string
	Email      string
	Context    Context
	Plan       *TravelPlan
}
