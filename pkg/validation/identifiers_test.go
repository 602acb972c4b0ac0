package validation

import "testing"

func TestValidateAgentID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"simple", "ew_planner", false},
		{"single char", "a", false},
		{"with digits", "agent7", false},
		{"empty", "", true},
		{"uppercase", "EW_Planner", true},
		{"starts with digit", "7agent", true},
		{"hyphen", "ew-planner", true},
		{"injection attempt", "ew_planner'; DROP TABLE--", true},
		{"spaces", "ew planner", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAgentID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateAgentID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateActionName(t *testing.T) {
	if err := ValidateActionName("plan_ew_mission"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateActionName("Plan-EW-Mission"); err == nil {
		t.Error("expected error for invalid action name")
	}
}

func TestValidateElementID(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		wantErr bool
	}{
		{"valid", "THR-1042", false},
		{"short prefix", "T-1", false},
		{"no hyphen", "THR1042", true},
		{"lowercase prefix", "thr-1042", true},
		{"non-numeric suffix", "THR-abc", true},
		{"empty", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateElementID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateElementID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
		})
	}
}

func TestValidateElementIDs_ListsAllInvalid(t *testing.T) {
	err := ValidateElementIDs([]string{"THR-1", "bad", "OK-2", "alsobad"})
	if err == nil {
		t.Fatal("expected error")
	}
}
