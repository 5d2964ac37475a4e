package provider

import (
	"github.com/everstacklabs/modelsync/internal/group"
	"github.com/everstacklabs/modelsync/internal/normalize"
)

// OpenRouterPolicy groups the OpenRouter catalog.
var OpenRouterPolicy = group.Policy{
	PinnedFirst: "openrouter/auto",
	Suffixes:    []string{":free", ":nitro", ":beta", ":extended"},
	MaxDissolve: group.DefaultMaxDissolve,
	ExtrasLabel: "STEALTH",
}

// dataIDs is the common OpenAI-compatible {"data":[{"id":...}]} shape.
var dataIDs = normalize.Rule{IDField: "id", Path: "data"}

// Builtin returns the built-in provider table.
func Builtin() []Spec {
	openRouter := OpenRouterPolicy
	return []Spec{
		{
			ID: "ai302", Name: "302.AI", Format: FormatJSON,
			URL:           "https://api.302.ai/v1/models?llm=1",
			CredentialEnv: "AI302_API_KEY",
			Rule:          dataIDs,
		},
		{
			ID: "apipie", Name: "APIpie", Format: FormatJSON,
			URL:     "https://apipie.ai/models",
			Queries: []map[string]string{{"type": "vision"}, {"type": "llm"}},
			Rule:    normalize.Rule{IDField: "id"},
		},
		{
			ID: "cohere", Name: "cohere", Format: FormatJSON,
			URL:           "https://api.cohere.com/v1/models",
			CredentialEnv: "COHERE_API_KEY",
			Rule: normalize.Rule{
				IDField: "name",
				Path:    "models",
				Filters: []normalize.Predicate{{Field: "endpoints", Op: normalize.OpContains, Value: "chat"}},
			},
		},
		{
			ID: "deepseek", Name: "deepseek", Format: FormatJSON,
			URL:           "https://api.deepseek.com/models",
			CredentialEnv: "DEEPSEEK_API_KEY",
			Rule:          dataIDs,
		},
		{
			ID: "fireworks", Name: "Fireworks", Format: FormatJSON,
			URL:           "https://api.fireworks.ai/inference/v1/models",
			CredentialEnv: "FIREWORKS_API_KEY",
			Rule: normalize.Rule{
				IDField: "id",
				Path:    "data",
				Filters: []normalize.Predicate{{Field: "supports_chat", Op: normalize.OpTruthy}},
			},
		},
		{
			ID: "github", Name: "Github Models", Format: FormatJSON,
			URL:  "https://models.inference.ai.azure.com/models",
			Rule: normalize.Rule{IDField: "name"},
		},
		{
			ID: "huggingface", Name: "HuggingFace", Format: FormatJSON,
			URL: "https://huggingface.co/api/models",
			Queries: []map[string]string{{
				"filter":    "conversational",
				"sort":      "likes",
				"direction": "-1",
				"limit":     "100",
				"full":      "true",
			}},
			Pagination: &Pagination{PageParam: "page", Start: 1, MaxPages: 5, PageSize: 100},
			Rule: normalize.Rule{
				IDField: "modelId",
				Filters: []normalize.Predicate{{Field: "pipeline_tag", Op: normalize.OpEquals, Value: "text-generation"}},
			},
		},
		{
			ID: "hyperbolic", Name: "Hyperbolic", Format: FormatJSON,
			URL:           "https://api.hyperbolic.xyz/v1/models",
			CredentialEnv: "HYPERBOLIC_API_KEY",
			Rule: normalize.Rule{
				IDField: "id",
				Path:    "data",
				Filters: []normalize.Predicate{
					{Field: "supports_image_input", Op: normalize.OpFalsy},
					{Field: "id", Op: normalize.OpNotEquals, Value: "TTS"},
				},
			},
		},
		{
			ID: "kluster", Name: "Kluster", Format: FormatJSON,
			URL:           "https://api.kluster.ai/v1/models",
			CredentialEnv: "KLUSTER_API_KEY",
			Rule:          dataIDs,
		},
		{
			ID: "nanogpt", Name: "NanoGPT", Format: FormatJSON,
			URL:  "https://nano-gpt.com/api/models",
			Rule: normalize.Rule{IDField: "model", Path: "models.text"},
		},
		{
			ID: "nvidia", Name: "Nvidia", Format: FormatJSON,
			URL:  "https://integrate.api.nvidia.com/v1/models",
			Rule: dataIDs,
		},
		{
			ID: "openrouter", Name: "OpenRouter", Format: FormatJSON,
			URL:       "https://openrouter.ai/api/v1/models",
			Rule:      dataIDs,
			Group:     &openRouter,
			MinModels: 50,
		},
		{
			ID: "perplexity", Name: "Perplexity", Format: FormatHTMLTable,
			URL:      "https://docs.perplexity.ai/guides/model-cards",
			Selector: "table",
			Column:   0,
		},
		{
			ID: "sambanova", Name: "SambaNova", Format: FormatHTMLText,
			URL:      "https://community.sambanova.ai/t/supported-models/193",
			Selector: "code",
		},
		{
			ID: "shuttleai", Name: "ShuttleAI", Format: FormatJSON,
			URL: "https://api.shuttleai.com/v1/models/verbose",
			Rule: normalize.Rule{
				IDField: "id",
				Path:    "data",
				Filters: []normalize.Predicate{
					{Field: "object", Op: normalize.OpEquals, Value: "model"},
					{Field: "type", Op: normalize.OpEquals, Value: "chat.completions"},
				},
				Alias: &normalize.Alias{
					When:        []normalize.Predicate{{Field: "object", Op: normalize.OpEquals, Value: "proxy"}},
					TargetField: "proxy_to",
				},
			},
		},
		{
			ID: "togetherai", Name: "together.ai", Format: FormatJSON,
			URL:           "https://api.together.xyz/v1/models",
			CredentialEnv: "TOGETHER_API_KEY",
			Rule: normalize.Rule{
				IDField: "id",
				Filters: []normalize.Predicate{{Field: "type", Op: normalize.OpEquals, Value: "chat"}},
			},
		},
		{
			ID: "unify", Name: "Unify", Format: FormatJSON,
			URL:           "https://api.unify.ai/v0/endpoints",
			CredentialEnv: "UNIFY_API_KEY",
			Rule:          normalize.Rule{Pattern: `^([^@]+@[^@]+)`},
		},
		{
			ID: "xai", Name: "xai", Format: FormatJSON,
			URL:           "https://api.x.ai/v1/models",
			CredentialEnv: "XAI_API_KEY",
			Rule:          dataIDs,
		},
	}
}
