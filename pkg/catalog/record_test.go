// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package catalog

import (
	"testing"
)

func TestRecordText(t *testing.T) {
	rec := Record{
		"part_name":         "Brake Pad Set",
		"cost":              float64(2500),
		"friction":          0.42,
		"oem":               true,
		"compatible_models": []any{"Thar", "Scorpio"},
		"empty":             nil,
	}

	tests := []struct {
		key  string
		want string
	}{
		{"part_name", "Brake Pad Set"},
		{"cost", "2500"},
		{"friction", "0.42"},
		{"oem", "true"},
		{"compatible_models", "Thar, Scorpio"},
		{"empty", ""},
		{"missing", ""},
	}
	for _, tt := range tests {
		if got := rec.Text(tt.key); got != tt.want {
			t.Errorf("Text(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestRecordStock(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want int
	}{
		{"float", float64(12), 12},
		{"string", " 7 ", 7},
		{"negative clamps", float64(-3), 0},
		{"garbage", "lots", 0},
		{"missing", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Record{}
			if tt.v != nil {
				rec[FieldStock] = tt.v
			}
			if got := rec.Stock(); got != tt.want {
				t.Errorf("Stock() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRecordModels(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want []string
	}{
		{"array", []any{"Thar", " Scorpio "}, []string{"Thar", "Scorpio"}},
		{"csv string", "Thar, Marazzo,", []string{"Thar", "Marazzo"}},
		{"missing", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := Record{}
			if tt.v != nil {
				rec[FieldCompatibleModels] = tt.v
			}
			got := rec.Models()
			if len(got) != len(tt.want) {
				t.Fatalf("Models() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("Models()[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestNormalizeCost(t *testing.T) {
	tests := []struct {
		name string
		v    any
		want float64
	}{
		{"plain number", float64(2500), 2500},
		{"negative clamps", float64(-10), 0},
		{"inr prefix", "INR 2,500", 2500},
		{"rupee symbol", "₹450.50", 450.50},
		{"rs word", "Rs. 1200", 1200},
		{"dollar", "$99.99", 99.99},
		{"garbage", "call for price", 0},
		{"nil", nil, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeCost(tt.v); got != tt.want {
				t.Errorf("NormalizeCost(%v) = %v, want %v", tt.v, got, tt.want)
			}
		})
	}
}
