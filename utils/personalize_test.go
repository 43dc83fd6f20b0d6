package utils

import "testing"

func TestPersonalize(t *testing.T) {
	fields := map[string]string{
		"name":       "Maria Petrova",
		"first_name": "Maria",
	}

	tests := []struct {
		text string
		want string
	}{
		{"Hi {first_name}!", "Hi Maria!"},
		{"{name} / {first_name}", "Maria Petrova / Maria"},
		{"no placeholders here", "no placeholders here"},
		{"unknown {token} stays put", "unknown {token} stays put"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := Personalize(tt.text, fields); got != tt.want {
			t.Errorf("Personalize(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestPersonalizeEmptyFields(t *testing.T) {
	if got := Personalize("Hi {first_name}", nil); got != "Hi {first_name}" {
		t.Errorf("Personalize with nil fields = %q, want the text unchanged", got)
	}
}
