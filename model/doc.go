// Package model defines the provider-agnostic oracle abstraction used by the
// router, the continuation planner and the content handlers.
//
// Core goals:
//   - Keep request/response shapes minimal and transport independent
//   - Treat the oracle as fallible: Decode validates replies against a JSON
//     schema reflected from the target type and retries a bounded number of
//     times before reporting a ClassifierParseError
//   - Allow provider chains (Fallback) and lightweight mocking (MockModel)
//
// Providers (OpenAI, Anthropic, Gemini) implement Model in sub-packages so
// higher layers stay decoupled from vendor SDKs.
package model
