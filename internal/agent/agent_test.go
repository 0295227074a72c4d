package agent

import "testing"

func temp(v int32) *int32 { return &v }

func TestProviderTemperature(t *testing.T) {
	tests := []struct {
		name string
		temp *int32
		want float32
	}{
		{"unset uses default", nil, DefaultTemperature},
		{"zero", temp(0), 0},
		{"midpoint", temp(50), 1.0},
		{"max", temp(100), 2.0},
		{"above range clamps", temp(150), 2.0},
		{"below range clamps", temp(-10), 0},
		{"typical", temp(35), 0.7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := Agent{Temperature: tt.temp}
			if got := a.ProviderTemperature(); got != tt.want {
				t.Errorf("ProviderTemperature() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestModelFallback(t *testing.T) {
	a := Agent{}
	if got := a.Model(); got != DefaultModel {
		t.Errorf("Model() = %q, want %q", got, DefaultModel)
	}

	a.ModelVersion = "gpt-4o"
	if got := a.Model(); got != "gpt-4o" {
		t.Errorf("Model() = %q, want gpt-4o", got)
	}
}

func TestIsPublic(t *testing.T) {
	if (&Agent{Visibility: "private"}).IsPublic() {
		t.Error("private agent reported public")
	}
	if !(&Agent{Visibility: "public"}).IsPublic() {
		t.Error("public agent reported private")
	}
}
