// Package handler contains the travel handlers selected by the router and
// the continuation planner: planner, search, calendar, mail and
// recommendation.
//
// Every handler implements core.Handler. Handlers keep no per-session
// fields; facts come from the core.Request or the ContextStore at call
// time. Internal failures are returned as error Results, never as panics.
package handler
