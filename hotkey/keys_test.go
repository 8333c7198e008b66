package hotkey

import (
	"testing"

	hook "github.com/robotn/gohook"
)

func TestParseCombo(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Combo
		wantErr bool
	}{
		{
			name:  "default combo",
			input: "ctrl+shift+space",
			want:  Combo{KeyCtrl, KeyShift, KeySpace},
		},
		{
			name:  "aliases and case",
			input: "Control+Option+CMD",
			want:  Combo{KeyCtrl, KeyAlt, KeySuper},
		},
		{
			name:  "letter key",
			input: "ctrl+shift+l",
			want:  Combo{KeyCtrl, KeyShift, Key("l")},
		},
		{
			name:  "digit key",
			input: "super+1",
			want:  Combo{KeySuper, Key("1")},
		},
		{
			name:  "whitespace tolerated",
			input: " ctrl + space ",
			want:  Combo{KeyCtrl, KeySpace},
		},
		{
			name:  "duplicate keys collapse",
			input: "ctrl+control+space",
			want:  Combo{KeyCtrl, KeySpace},
		},
		{
			name:    "unknown key name",
			input:   "ctrl+banana",
			wantErr: true,
		},
		{
			name:    "empty",
			input:   "",
			wantErr: true,
		},
		{
			name:    "punctuation rejected",
			input:   "ctrl+;",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCombo(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseCombo(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(got) != len(tt.want) {
				t.Fatalf("ParseCombo(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ParseCombo(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestFoldEvent(t *testing.T) {
	tests := []struct {
		name   string
		ev     hook.Event
		want   Key
		wantOK bool
	}{
		{"x11 left ctrl", hook.Event{Rawcode: 65507}, KeyCtrl, true},
		{"x11 right ctrl", hook.Event{Rawcode: 65508}, KeyCtrl, true},
		{"x11 left shift", hook.Event{Rawcode: 65505}, KeyShift, true},
		{"windows generic shift", hook.Event{Rawcode: 16}, KeyShift, true},
		{"mac command", hook.Event{Rawcode: 55}, KeySuper, true},
		{"space by rawcode", hook.Event{Rawcode: 32}, KeySpace, true},
		{"letter by keychar", hook.Event{Rawcode: 9999, Keychar: 'l'}, Key("l"), true},
		{"unmapped key", hook.Event{Rawcode: 9999, Keychar: '\t'}, Key(""), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := foldEvent(tt.ev)
			if ok != tt.wantOK || got != tt.want {
				t.Errorf("foldEvent(%v) = (%q, %v), want (%q, %v)", tt.ev, got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

func TestComboString(t *testing.T) {
	c := Combo{KeyCtrl, KeyShift, KeySpace}
	if got := c.String(); got != "ctrl+shift+space" {
		t.Errorf("String() = %q, want %q", got, "ctrl+shift+space")
	}
}
