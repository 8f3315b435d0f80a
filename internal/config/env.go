package config

import "os"

// FirstEnv returns the value of the first set, non-empty environment
// variable among names.
func FirstEnv(names ...string) string {
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// ProviderKeyEnv lists the conventional API key variables per analyzer
// provider, in lookup order.
var ProviderKeyEnv = map[string][]string{
	ProviderGemini: {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	ProviderOpenAI: {"OPENAI_API_KEY"},
}

// ProviderAPIKey returns the API key for provider from its conventional
// environment variables.
func ProviderAPIKey(provider string) string {
	return FirstEnv(ProviderKeyEnv[provider]...)
}
