// Package model defines the provider-agnostic abstractions for invoking
// language models.
//
// Core goals:
//   - Keep request/response shapes minimal and transport independent
//   - Normalize tool/function call representation across vendors
//   - Classify failures (transient vs. structural) so the dispatcher can
//     retry or rotate without provider-specific branching
//   - Facilitate lightweight mocking for tests (MockBackend)
//
// Providers (OpenAI, Anthropic) implement the Backend interface from this
// package so higher layers remain decoupled from vendor SDKs.
package model
