package validator

import (
	"testing"

	"github.com/bluwireless/blade/internal/schema"
)

func TestValidatePort(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		name    string
		port    map[string]interface{}
		wantErr bool
	}{
		{
			name:    "valid_master_port",
			port:    map[string]interface{}{"name": "req", "width": 1, "role": "master"},
			wantErr: false,
		},
		{
			name:    "zero_width_rejected",
			port:    map[string]interface{}{"name": "req", "width": 0, "role": "master"},
			wantErr: true,
		},
		{
			name:    "unknown_role_rejected",
			port:    map[string]interface{}{"name": "req", "width": 1, "role": "sideways"},
			wantErr: true,
		},
		{
			name:    "missing_width_rejected",
			port:    map[string]interface{}{"name": "req", "role": "master"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.validate("#Port", tt.port, schema.Pos{File: "t.blade", Line: 1})
			if (len(errs) > 0) != tt.wantErr {
				t.Errorf("validate(#Port) errs = %v, wantErr %v", errs, tt.wantErr)
			}
		})
	}
}

func TestValidateReg(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	tests := []struct {
		name    string
		reg     map[string]interface{}
		wantErr bool
	}{
		{
			name: "valid_register",
			reg: map[string]interface{}{
				"name": "ctrl", "blockaccess": "RW", "busaccess": "RW", "instaccess": "RW", "location": "core",
				"fields": []interface{}{},
			},
			wantErr: false,
		},
		{
			name: "bad_access_kind",
			reg: map[string]interface{}{
				"name": "ctrl", "blockaccess": "XYZ", "busaccess": "RW", "instaccess": "RW", "location": "core",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := v.validate("#Reg", tt.reg, schema.Pos{File: "t.blade", Line: 1})
			if (len(errs) > 0) != tt.wantErr {
				t.Errorf("validate(#Reg) errs = %v, wantErr %v", errs, tt.wantErr)
			}
		})
	}
}

func TestValidateForestAggregatesAcrossKinds(t *testing.T) {
	v, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	f := &schema.Forest{
		Ports: []*schema.Port{
			{Base: schema.Base{Name: "ok", Pos: schema.Pos{File: "t.blade", Line: 1}}, Width: 1, Role: "master"},
			{Base: schema.Base{Name: "bad", Pos: schema.Pos{File: "t.blade", Line: 2}}, Width: 0, Role: "master"},
		},
	}

	errs := ValidateForest(v, f)
	if len(errs) != 1 {
		t.Fatalf("ValidateForest() = %d errors, want 1: %v", len(errs), errs)
	}
}
