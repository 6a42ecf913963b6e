// Package models is the catalog of hosted chat and code models, keyed by the
// pricing plan that unlocks them.
package models

import (
	"fmt"
	"strings"
)

// Plan is a pricing plan. Plans are ordered: a higher plan unlocks every
// model of the lower ones.
type Plan int

const (
	Anonymous Plan = iota
	Free
	Individual
)

func (p Plan) String() string {
	switch p {
	case Anonymous:
		return "anonymous"
	case Free:
		return "free"
	case Individual:
		return "individual"
	default:
		return fmt.Sprintf("plan(%d)", int(p))
	}
}

// ParsePlan parses a plan name. The empty string means Anonymous.
func ParsePlan(s string) (Plan, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "anonymous":
		return Anonymous, nil
	case "free":
		return Free, nil
	case "individual":
		return Individual, nil
	}
	return Anonymous, fmt.Errorf("unknown plan %q", s)
}

// Model is one catalog entry.
type Model struct {
	Name string
	Code string
	// Plan is the lowest plan the model is available on.
	Plan Plan
}

var (
	// DefaultChatModel is used for chat-style generation when nothing is configured.
	DefaultChatModel = Model{"GPT-4o", "gpt-4o", Individual}
	// DefaultCodeModel is used for inline completion when nothing is configured.
	DefaultCodeModel = Model{"GPT-3.5 Turbo Instruct", "gpt-3.5-turbo-instruct", Individual}
)

var chatModels = []Model{
	{"o1-preview", "o1-preview", Individual},
	{"o1-mini", "o1-mini", Free},
	{"Mixtral (8x7B)", "mistralai/mixtral-8x7b-instruct-v01", Individual},
	{"Mistral Large", "mistralai/mistral-large", Individual},
	{"Llama 3.1 Instruct (70B)", "meta-llama/llama-3-1-70b-instruct", Individual},
	{"Llama 3.1 Instruct (8B)", "meta-llama/llama-3-1-8b-instruct", Individual},
	{"Llama 2 Chat (70B)", "meta-llama/llama-2-70b-chat", Individual},
	{"Llama 2 Chat (13B)", "meta-llama/llama-2-13b-chat", Individual},
	{"IBM Granite 13B Instruct V2", "ibm/granite-13b-instruct-v2", Individual},
	{"IBM Granite 13B Chat V2", "ibm/granite-13b-chat-v2", Individual},
	{"IBM Granite 20B Multilingual", "ibm/granite-20b-multilingual", Individual},
	DefaultChatModel,
	{"GPT-4o mini", "gpt-4o-mini", Anonymous},
	{"Claude 3 Opus", "claude-3-opus", Individual},
	{"Claude 3.5 Sonnet", "claude-3.5-sonnet", Individual},
	{"Llama 3.1 (405B)", "llama-3.1-405b", Individual},
	{"Llama 3 (70B)", "llama-3-70b", Free},
	{"DeepSeek Coder V2", "deepseek-coder-v2", Individual},
	{"DBRX", "dbrx", Individual},
	{"Llama 3 (8B)", "llama-3-8b", Anonymous},
	{"Code Llama (70B)", "codellama:chat", Free},
	{"Mixtral (8x22B)", "mixtral-8x22b", Free},
	{"DeepSeek Coder (33B)", "deepseek-coder-33b", Free},
	{"WizardLM-2 (8x22B)", "wizardlm-2-8x22b", Free},
}

var codeModels = []Model{
	DefaultCodeModel,
	{"Code Llama 34B Instruct", "codellama/codellama-34b-instruct", Individual},
	{"IBM Granite 3B Code Instruct", "ibm/granite-3b-code-instruct", Individual},
	{"IBM Granite 8B Code Instruct", "ibm/granite-8b-code-instruct", Individual},
	{"IBM Granite 20B Code Instruct", "ibm/granite-20b-code-instruct", Individual},
	{"IBM Granite 34B Code Instruct", "ibm/granite-34b-code-instruct", Individual},
	{"StarCoder (16B)", "starcoder-16b", Free},
	{"StarCoder (7B)", "starcoder-7b", Free},
	{"WizardCoder Python (34B)", "wizardcoder-python", Free},
	{"Phind Code LLaMA v2 (34B)", "phind-codellama", Free},
}

// pickerModels are the curated chat models shown per plan. Lower plans
// also see a few locked models as an upgrade hint, so entries may require
// a higher plan than the one they are listed for.
var pickerModels = map[Plan][]Model{
	Anonymous: {
		{"o1-preview", "o1-preview", Individual},
		{"o1-mini", "o1-mini", Free},
		{"Claude 3.5 Sonnet", "claude-3.5-sonnet", Individual},
		{"Llama 3.1 (405B)", "llama-3.1-405b", Individual},
		{"DeepSeek Coder V2", "deepseek-coder-v2", Individual},
		{"GPT-4o mini - FREE", "gpt-4o-mini", Anonymous},
		{"Llama 3 (8B) - FREE", "llama-3-8b", Anonymous},
	},
	Free: {
		{"o1-preview", "o1-preview", Individual},
		{"o1-mini", "o1-mini", Free},
		{"Claude 3.5 Sonnet", "claude-3.5-sonnet", Individual},
		{"Llama 3 (70B)", "llama-3-70b", Free},
		{"Mixtral (8x22B)", "mixtral-8x22b", Free},
		{"Code Llama (70B)", "codellama:chat", Free},
	},
	Individual: {
		{"o1-preview", "o1-preview", Individual},
		DefaultChatModel,
		{"Claude 3 Opus", "claude-3-opus", Individual},
		{"Claude 3.5 Sonnet", "claude-3.5-sonnet", Individual},
		{"Llama 3.1 (405B)", "llama-3.1-405b", Individual},
		{"DeepSeek Coder V2", "deepseek-coder-v2", Individual},
		{"DBRX", "dbrx", Individual},
	},
}

// PickerModels returns the curated chat list for a plan. Unlike ChatModels
// it is not filtered: locked entries keep their Plan so callers can mark
// them. Unknown plans get the anonymous list.
func PickerModels(plan Plan) []Model {
	list, ok := pickerModels[plan]
	if !ok {
		list = pickerModels[Anonymous]
	}
	return append([]Model(nil), list...)
}

// ChatModels returns the chat models available on the given plan.
func ChatModels(plan Plan) []Model {
	return filter(chatModels, plan)
}

// CodeModels returns the code models available on the given plan.
func CodeModels(plan Plan) []Model {
	return filter(codeModels, plan)
}

func filter(all []Model, plan Plan) []Model {
	out := make([]Model, 0, len(all))
	for _, m := range all {
		if m.Plan <= plan {
			out = append(out, m)
		}
	}
	return out
}

// Lookup finds a catalog model by its code.
func Lookup(code string) (Model, bool) {
	for _, list := range [][]Model{codeModels, chatModels} {
		for _, m := range list {
			if m.Code == code {
				return m, true
			}
		}
	}
	return Model{}, false
}

// Allowed reports whether the plan may use the model. Models outside the
// catalog are assumed to be self-hosted and always allowed.
func Allowed(plan Plan, code string) bool {
	m, ok := Lookup(code)
	if !ok {
		return true
	}
	return m.Plan <= plan
}
