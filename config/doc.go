// Package config loads runtime configuration from YAML files.
//
// A configuration has three sections:
//
//	log:
//	  level: debug
//	  format: text
//	model:
//	  provider: openai
//	  name: gpt-4o-mini
//	  instruction: You are a helpful AI assistant.
//	runtime:
//	  metrics_addr: ":9090"
//	  trace_exporter: stdout
//
// API keys are read from OPENAI_API_KEY and ANTHROPIC_API_KEY when the file
// leaves them empty. AGENTRT_LOG_LEVEL overrides log.level.
package config
