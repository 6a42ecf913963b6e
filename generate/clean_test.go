package generate

import "testing"

func TestCleanCompletion(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		w    window
		want string
	}{
		{
			name: "fenced",
			raw:  "```go\nreturn x\n```",
			w:    window{Prefix: "func f() {\n\t"},
			want: "return x",
		},
		{
			name: "marker",
			raw:  "x█y",
			w:    window{Prefix: "a = "},
			want: "xy",
		},
		{
			name: "echoed line",
			raw:  "\tresult := compute(a, b)",
			w:    window{Prefix: "func f() {\n\tresult := compute"},
			want: "(a, b)",
		},
		{
			name: "same line cut and suffix overlap",
			raw:  "a, b)\nbar()",
			w:    window{Prefix: "foo(", Suffix: ")\n", SameLine: true},
			want: "a, b",
		},
		{
			name: "trailing space kept before suffix",
			raw:  "1 + ",
			w:    window{Prefix: "x := ", Suffix: "y", SameLine: true},
			want: "1 + ",
		},
		{
			name: "trailing newlines trimmed at end of line",
			raw:  "fmt.Println()\n\n",
			w:    window{Prefix: "\t", Suffix: "\n}"},
			want: "fmt.Println()",
		},
		{
			name: "whitespace only",
			raw:  " \n\t",
			w:    window{Prefix: "x"},
			want: "",
		},
	}
	for _, tt := range tests {
		if got := cleanCompletion(tt.raw, tt.w); got != tt.want {
			t.Errorf("%s: cleanCompletion = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestStripFencesLeavesPlainText(t *testing.T) {
	if got := stripFences("x := 1\n"); got != "x := 1\n" {
		t.Errorf("expected unchanged text, got %q", got)
	}
	if got := stripFences("```x```"); got != "x" {
		t.Errorf("expected inline fence stripped, got %q", got)
	}
}

func TestTrimSuffixOverlap(t *testing.T) {
	if got := trimSuffixOverlap("foo})", "})\n"); got != "foo" {
		t.Errorf("expected overlap removed, got %q", got)
	}
	if got := trimSuffixOverlap("foo", "bar"); got != "foo" {
		t.Errorf("expected no change, got %q", got)
	}
	if got := trimSuffixOverlap("x", ""); got != "x" {
		t.Errorf("expected no change for empty suffix, got %q", got)
	}
}
