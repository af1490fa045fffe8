package booking

import "testing"

func TestExtractFormFields(t *testing.T) {
	blob := `{"form_fields":{"text_9Vv7N":"1 Main Street","text_SIzYG":"SW1A 1AA","dropdown_x":"Haircut","num_y":5}}`

	fields, ok := ExtractFormFields(blob)
	if !ok {
		t.Fatal("expected valid form fields JSON to parse")
	}
	if fields["text_9Vv7N"] != "1 Main Street" {
		t.Fatalf("address field = %q", fields["text_9Vv7N"])
	}
	if fields["text_SIzYG"] != "SW1A 1AA" {
		t.Fatalf("postcode field = %q", fields["text_SIzYG"])
	}
	if fields["num_y"] != "5" {
		t.Fatalf("numeric field = %q", fields["num_y"])
	}
}

func TestExtractFormFieldsRejectsGarbage(t *testing.T) {
	for _, blob := range []string{"", "not json", `{"other":1}`, `[1,2,3]`} {
		if _, ok := ExtractFormFields(blob); ok {
			t.Fatalf("expected %q to be rejected", blob)
		}
	}
}

func TestExtractKeyValuesFallback(t *testing.T) {
	// Truncated/invalid JSON that still contains recognizable pairs.
	blob := `{"form_fields":{"text_9Vv7N":"2 Side Road","text_SIzYG":"EC1A 1BB",`

	fields := ExtractKeyValues(blob)
	if fields["text_9Vv7N"] != "2 Side Road" {
		t.Fatalf("address = %q", fields["text_9Vv7N"])
	}
	if fields["text_SIzYG"] != "EC1A 1BB" {
		t.Fatalf("postcode = %q", fields["text_SIzYG"])
	}
}

func TestExtractPostcodeShape(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{in: "customer lives at sw1a 1aa near the park", want: "SW1A 1AA"},
		{in: "ref EC1A1BB attached", want: "EC1A1BB"},
		{in: "no postal code here", want: ""},
	}
	for _, tt := range tests {
		if got := ExtractPostcodeShape(tt.in); got != tt.want {
			t.Fatalf("ExtractPostcodeShape(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestExtractAddressChain(t *testing.T) {
	// Stage 1: clean JSON.
	addr, post := ExtractAddress(`{"form_fields":{"text_9Vv7N":"1 Main Street","text_SIzYG":"SW1A 1AA"}}`)
	if addr != "1 Main Street" || post != "SW1A 1AA" {
		t.Fatalf("stage 1: addr=%q post=%q", addr, post)
	}

	// Stage 2: broken JSON, key/value scan recovers the fields.
	addr, post = ExtractAddress(`garbage "text_9Vv7N":"2 Side Road" more "text_SIzYG":"EC1A 1BB" tail`)
	if addr != "2 Side Road" || post != "EC1A 1BB" {
		t.Fatalf("stage 2: addr=%q post=%q", addr, post)
	}

	// Stage 3: no keyed values at all, postcode shape matched from text.
	addr, post = ExtractAddress(`free text mentioning SW1A 1AA somewhere`)
	if addr != "" {
		t.Fatalf("stage 3: unexpected address %q", addr)
	}
	if post != "SW1A 1AA" {
		t.Fatalf("stage 3: post=%q", post)
	}
}
