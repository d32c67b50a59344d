package normalize

import (
	"reflect"
	"testing"

	"pcbazaar/models"
)

func TestNormalizeTokens(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "strips boilerplate and clock noise",
			raw:  "AMD Ryzen 5 5600 6-Core 3.5GHz Desktop Processor",
			want: []string{"amd", "ryzen", "5", "5600"},
		},
		{
			name: "splits fused series prefix",
			raw:  "Ryzen5 5600",
			want: []string{"ryzen", "5", "5600"},
		},
		{
			name: "splits hyphenated model code",
			raw:  "Intel Core i5-12400F",
			want: []string{"intel", "core", "i5", "12400f"},
		},
		{
			name: "keeps suffix variants distinct",
			raw:  "AMD Ryzen 7 7700X Processor",
			want: []string{"amd", "ryzen", "7", "7700x"},
		},
		{
			name: "drops trademark glyphs",
			raw:  "Intel® Core™ i7-13700K",
			want: []string{"intel", "core", "i7", "13700k"},
		},
		{
			name: "thread count is noise",
			raw:  "Ryzen 9 7900 12-Core 24-Thread",
			want: []string{"ryzen", "9", "7900"},
		},
		{
			name: "parenthesized core count is noise",
			raw:  "AMD Ryzen 7 5700X 8(Core) Processor",
			want: []string{"amd", "ryzen", "7", "5700x"},
		},
		{
			name: "empty input gets sentinel",
			raw:  "",
			want: []string{EmptyToken},
		},
		{
			name: "pure boilerplate gets sentinel",
			raw:  "Desktop Processor (Box)",
			want: []string{EmptyToken},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw, models.CategoryUnknown)
			if !reflect.DeepEqual(got.Tokens, tt.want) {
				t.Fatalf("Normalize(%q) tokens = %v, want %v", tt.raw, got.Tokens, tt.want)
			}
		})
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	raws := []string{
		"AMD Ryzen 5 5600 6-Core 3.5GHz Desktop Processor",
		"Intel Core i5-12400F 2.5GHz (Tray)",
		"ASUS TUF Gaming B650-PLUS WIFI Motherboard",
		"Corsair Vengeance 16GB DDR5 5600MHz",
		"Samsung 980 Pro 1TB NVMe SSD",
		"AMD Ryzen 7 5700X 8(Core) 16(Thread) Processor",
	}
	for _, raw := range raws {
		first := Normalize(raw, models.CategoryUnknown)
		second := Normalize(first.Key, first.Category)
		if !reflect.DeepEqual(first.Tokens, second.Tokens) {
			t.Errorf("not idempotent for %q: %v then %v", raw, first.Tokens, second.Tokens)
		}
		if first.Key != second.Key {
			t.Errorf("key drifted for %q: %q then %q", raw, first.Key, second.Key)
		}
	}
}

func TestNormalizeDeterministic(t *testing.T) {
	raw := "Gigabyte GeForce RTX 4060 EAGLE OC 8GB"
	a := Normalize(raw, models.CategoryGPU)
	b := Normalize(raw, models.CategoryGPU)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("same input produced different results: %+v vs %+v", a, b)
	}
}

func TestBrandInference(t *testing.T) {
	tests := []struct {
		raw  string
		want models.Brand
	}{
		{"Ryzen 5 5600", models.BrandAMD},
		{"Radeon RX 6600", models.BrandAMD},
		{"GeForce RTX 4060 Ti", models.BrandNvidia},
		{"Core i5-12400F", models.BrandIntel},
		{"G.Skill Trident Z5 32GB", models.BrandGSkill},
		{"Western Digital Blue 1TB", models.BrandWD},
		{"Generic 650W PSU", models.BrandUnknown},
	}
	for _, tt := range tests {
		got := Normalize(tt.raw, models.CategoryUnknown)
		if got.Brand != tt.want {
			t.Errorf("Normalize(%q) brand = %q, want %q", tt.raw, got.Brand, tt.want)
		}
	}
}

func TestCategoryInference(t *testing.T) {
	tests := []struct {
		raw  string
		want models.Category
	}{
		{"AMD Ryzen 5 5600 Processor", models.CategoryCPU},
		{"Ryzen 5 5600G with Radeon Graphics Processor", models.CategoryCPU},
		{"MSI GeForce RTX 4060 VENTUS 2X", models.CategoryGPU},
		{"Corsair Vengeance 16GB DDR5", models.CategoryRAM},
		{"ASUS PRIME B650M-A Motherboard", models.CategoryMotherboard},
		{"Corsair RM750e Power Supply", models.CategoryPSU},
		{"Samsung 980 Pro 1TB NVMe SSD", models.CategoryStorage},
		{"NZXT H5 Flow ATX Casing", models.CategoryCase},
		{"DeepCool AK400 CPU Cooler", models.CategoryCooling},
	}
	for _, tt := range tests {
		got := Normalize(tt.raw, models.CategoryUnknown)
		if got.Category != tt.want {
			t.Errorf("Normalize(%q) category = %q, want %q", tt.raw, got.Category, tt.want)
		}
	}
}

func TestCategoryHintWins(t *testing.T) {
	got := Normalize("Mystery Item 42", models.CategoryRAM)
	if got.Category != models.CategoryRAM {
		t.Fatalf("hint ignored: got %q", got.Category)
	}
}

func TestHasDigit(t *testing.T) {
	if !HasDigit("7700x") {
		t.Error("7700x should have a digit")
	}
	if HasDigit("ryzen") {
		t.Error("ryzen should not have a digit")
	}
}
