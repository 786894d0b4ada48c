// Package model defines the provider-agnostic abstractions for the tool
// calling language model that plays the planner role.
//
// Providers (OpenAI, Anthropic) implement the Model interface from this
// package so the planner stays decoupled from vendor SDKs. ScriptedModel
// replays canned turns for tests and offline runs.
package model
