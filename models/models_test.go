package models

import "testing"

func TestParsePlan(t *testing.T) {
	tests := []struct {
		input   string
		want    Plan
		wantErr bool
	}{
		{"", Anonymous, false},
		{"anonymous", Anonymous, false},
		{"FREE", Free, false},
		{" individual ", Individual, false},
		{"enterprise", Anonymous, true},
	}
	for _, tt := range tests {
		got, err := ParsePlan(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParsePlan(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParsePlan(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestCodeModelsByPlan(t *testing.T) {
	anon := CodeModels(Anonymous)
	if len(anon) != 0 {
		t.Errorf("expected no code models for anonymous plan, got %v", anon)
	}

	free := CodeModels(Free)
	for _, m := range free {
		if m.Plan > Free {
			t.Errorf("free plan returned %s which requires %s", m.Code, m.Plan)
		}
	}

	individual := CodeModels(Individual)
	if len(individual) != len(codeModels) {
		t.Errorf("expected individual plan to see all %d code models, got %d", len(codeModels), len(individual))
	}
	if individual[0].Code != DefaultCodeModel.Code {
		t.Errorf("expected default code model first, got %s", individual[0].Code)
	}
}

func TestChatModelsHigherPlanIsSuperset(t *testing.T) {
	free := ChatModels(Free)
	individual := ChatModels(Individual)
	if len(individual) < len(free) {
		t.Fatalf("individual plan sees fewer models (%d) than free (%d)", len(individual), len(free))
	}
	seen := make(map[string]bool, len(individual))
	for _, m := range individual {
		seen[m.Code] = true
	}
	for _, m := range free {
		if !seen[m.Code] {
			t.Errorf("free model %s missing from individual plan", m.Code)
		}
	}
}

func TestLookup(t *testing.T) {
	m, ok := Lookup("gpt-3.5-turbo-instruct")
	if !ok {
		t.Fatal("expected default code model in catalog")
	}
	if m.Name != "GPT-3.5 Turbo Instruct" {
		t.Errorf("unexpected name %q", m.Name)
	}

	if _, ok := Lookup("gpt-4o-mini"); !ok {
		t.Error("expected chat models to be searched too")
	}
	if _, ok := Lookup("no-such-model"); ok {
		t.Error("expected lookup miss")
	}
}

func TestAllowed(t *testing.T) {
	if !Allowed(Individual, "gpt-3.5-turbo-instruct") {
		t.Error("individual plan should allow the default code model")
	}
	if Allowed(Free, "gpt-3.5-turbo-instruct") {
		t.Error("free plan should not allow an individual-only model")
	}
	if !Allowed(Anonymous, "qwen2.5-coder:7b") {
		t.Error("models outside the catalog should always be allowed")
	}
}

func TestPlanString(t *testing.T) {
	if Free.String() != "free" {
		t.Errorf("expected free, got %s", Free.String())
	}
	if Plan(9).String() != "plan(9)" {
		t.Errorf("unexpected string for unknown plan: %s", Plan(9).String())
	}
}

func TestCatalogPlanGating(t *testing.T) {
	tests := []struct {
		code string
		plan Plan
	}{
		{"ibm/granite-3b-code-instruct", Individual},
		{"ibm/granite-34b-code-instruct", Individual},
		{"mistralai/mixtral-8x7b-instruct-v01", Individual},
		{"mistralai/mistral-large", Individual},
		{"meta-llama/llama-3-1-70b-instruct", Individual},
		{"meta-llama/llama-3-1-8b-instruct", Individual},
		{"meta-llama/llama-2-70b-chat", Individual},
		{"meta-llama/llama-2-13b-chat", Individual},
		{"ibm/granite-13b-instruct-v2", Individual},
		{"ibm/granite-13b-chat-v2", Individual},
		{"ibm/granite-20b-multilingual", Individual},
		{"o1-mini", Free},
		{"starcoder-7b", Free},
		{"llama-3-8b", Anonymous},
	}
	for _, tt := range tests {
		m, ok := Lookup(tt.code)
		if !ok {
			t.Errorf("%s missing from catalog", tt.code)
			continue
		}
		if m.Plan != tt.plan {
			t.Errorf("%s requires %s, want %s", tt.code, m.Plan, tt.plan)
		}
		if tt.plan > Anonymous && Allowed(tt.plan-1, tt.code) {
			t.Errorf("%s allowed below %s", tt.code, tt.plan)
		}
		if !Allowed(tt.plan, tt.code) {
			t.Errorf("%s not allowed on %s", tt.code, tt.plan)
		}
	}
	if len(codeModels) != 10 || len(chatModels) != 24 {
		t.Errorf("unexpected catalog size: %d code, %d chat", len(codeModels), len(chatModels))
	}
}

func TestPickerModels(t *testing.T) {
	tests := []struct {
		plan  Plan
		first string
		codes []string
	}{
		{Anonymous, "o1-preview", []string{"gpt-4o-mini", "llama-3-8b"}},
		{Free, "o1-preview", []string{"llama-3-70b", "mixtral-8x22b", "codellama:chat"}},
		{Individual, "o1-preview", []string{"gpt-4o", "claude-3-opus", "dbrx"}},
	}
	for _, tt := range tests {
		list := PickerModels(tt.plan)
		if list[0].Code != tt.first {
			t.Errorf("%s: expected %s first, got %s", tt.plan, tt.first, list[0].Code)
		}
		have := make(map[string]bool, len(list))
		for _, m := range list {
			have[m.Code] = true
		}
		for _, code := range tt.codes {
			if !have[code] {
				t.Errorf("%s: expected %s in picker", tt.plan, code)
			}
		}
	}

	anon := PickerModels(Anonymous)
	if anon[0].Plan != Individual {
		t.Error("expected locked entries to keep their plan")
	}
	if len(PickerModels(Plan(9))) != len(anon) {
		t.Error("expected unknown plan to fall back to the anonymous list")
	}
	anon[0].Code = "mutated"
	if PickerModels(Anonymous)[0].Code != "o1-preview" {
		t.Error("expected a copy of the picker list")
	}
}
