package validation

import "testing"

func TestIsValidOrderNumber(t *testing.T) {
	tests := []struct {
		name   string
		number string
		valid  bool
	}{
		{
			name:   "valid example 1",
			number: "79927398713",
			valid:  true,
		},
		{
			name:   "valid example 2",
			number: "4539578763621486",
			valid:  true,
		},
		{
			name:   "invalid checksum",
			number: "79927398710",
			valid:  false,
		},
		{
			name:   "contains letters",
			number: "1234a67890",
			valid:  false,
		},
		{
			name:   "empty string",
			number: "",
			valid:  false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := IsValidOrderNumber(tt.number)
			if got != tt.valid {
				t.Fatalf("IsValidOrderNumber(%q) = %v, want %v", tt.number, got, tt.valid)
			}
		})
	}
}


func TestCheckDigit(t *testing.T) {
	tests := []struct {
		payload string
		want    byte
	}{
		{payload: "7992739871", want: '3'},
		{payload: "10000000000", want: '8'},
		{payload: "453957876362148", want: '6'},
	}

	for _, tt := range tests {
		got, err := CheckDigit(tt.payload)
		if err != nil {
			t.Fatalf("CheckDigit(%q) error: %v", tt.payload, err)
		}
		if got != tt.want {
			t.Fatalf("CheckDigit(%q) = %c, want %c", tt.payload, got, tt.want)
		}
	}

	if _, err := CheckDigit("12a4"); err == nil {
		t.Fatalf("expected error for non-digit payload")
	}
	if _, err := CheckDigit(""); err == nil {
		t.Fatalf("expected error for empty payload")
	}
}

func TestNewOrderNumber(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 50; i++ {
		number, err := NewOrderNumber()
		if err != nil {
			t.Fatalf("NewOrderNumber error: %v", err)
		}
		if len(number) != OrderNumberLength {
			t.Fatalf("len(%q) = %d, want %d", number, len(number), OrderNumberLength)
		}
		if number[0] == '0' {
			t.Fatalf("order number %q starts with zero", number)
		}
		if !IsValidOrderNumber(number) {
			t.Fatalf("generated number %q fails Luhn check", number)
		}
		seen[number] = struct{}{}
	}
	if len(seen) < 45 {
		t.Fatalf("too many collisions: %d unique of 50", len(seen))
	}
}
