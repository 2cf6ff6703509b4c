package types

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestIsValidClassroomCode(t *testing.T) {
	tests := []struct {
		name string
		code string
		want bool
	}{
		{"valid upper alnum", "ABC123", true},
		{"all digits", "012345", true},
		{"too short", "ABC12", false},
		{"too long", "ABC1234", false},
		{"lowercase rejected", "abc123", false},
		{"empty", "", false},
		{"punctuation", "ABC-12", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidClassroomCode(tt.code); got != tt.want {
				t.Errorf("IsValidClassroomCode(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestIsValidLanguageCode(t *testing.T) {
	tests := []struct {
		name string
		code string
		want bool
	}{
		{"two-letter", "en", true},
		{"region subtag", "en-US", true},
		{"script and region", "zh-Hans-CN", true},
		{"empty", "", false},
		{"single letter", "e", false},
		{"numeric", "123", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidLanguageCode(tt.code); got != tt.want {
				t.Errorf("IsValidLanguageCode(%q) = %v, want %v", tt.code, got, tt.want)
			}
		})
	}
}

func TestIsValidRole(t *testing.T) {
	if !IsValidRole(string(RoleTeacher)) {
		t.Error("expected teacher to be a valid role")
	}
	if !IsValidRole(string(RoleStudent)) {
		t.Error("expected student to be a valid role")
	}
	if IsValidRole("admin") {
		t.Error("expected an unrecognized role to be invalid")
	}
	if IsValidRole("") {
		t.Error("expected an empty role to be invalid")
	}
}

func TestRegisterFrame_JSONRoundTrip(t *testing.T) {
	frame := RegisterFrame{
		Role:          string(RoleStudent),
		LanguageCode:  "es-ES",
		Name:          "Alice",
		ClassroomCode: "ABC123",
	}

	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded RegisterFrame
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if !reflect.DeepEqual(decoded, frame) {
		t.Errorf("round-trip mismatch: got %+v, want %+v", decoded, frame)
	}
}

func TestExemptTypes(t *testing.T) {
	exempt := []string{TypeRegister, TypePing, TypePong}
	for _, typ := range exempt {
		if !ExemptTypes[typ] {
			t.Errorf("expected %q to be exempt from the session-active gate", typ)
		}
	}
	if ExemptTypes[TypeTranscription] {
		t.Error("transcription must not be exempt from the session-active gate")
	}
}
