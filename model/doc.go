// Package model defines the chat completion boundary agents use to reach a
// language model, together with provider independent helpers:
//
//   - ChatCompletionClient, Message, Result: the request/response contract
//   - MockClient: deterministic in-memory client for tests and examples
//   - LimitedClient: call budget and request rate decorator
//   - InstrumentedClient: metrics and logging decorator
//
// Provider adapters live in the openai and anthropic subpackages.
package model
