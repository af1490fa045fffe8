package booking

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// Custom-field keys observed in plugin installs. The plugin assigns
// random suffixes per form build, so installs may need additions here.
var (
	AddressFieldKeys  = []string{"text_9Vv7N"}
	PostcodeFieldKeys = []string{"text_SIzYG"}
)

// MetaFormFieldsKey is the meta row the plugin stores form answers under
const MetaFormFieldsKey = "appointment_form_fields_data"

// ExtractFormFields parses the plugin's form-fields JSON blob into a flat
// key→value map. Values that are not plain strings or numbers are dropped.
// Returns false when the blob is not the expected JSON shape.
func ExtractFormFields(blob string) (map[string]string, bool) {
	var outer struct {
		FormFields map[string]interface{} `json:"form_fields"`
	}
	if err := json.Unmarshal([]byte(blob), &outer); err != nil || outer.FormFields == nil {
		return nil, false
	}

	fields := make(map[string]string, len(outer.FormFields))
	for key, raw := range outer.FormFields {
		switch v := raw.(type) {
		case string:
			fields[key] = strings.TrimSpace(v)
		case float64:
			fields[key] = fmt.Sprintf("%v", v)
		}
	}
	return fields, true
}

// keyValuePattern matches "key":"value" pairs in arbitrary text, the
// fallback when the blob is JSON-ish but not parseable as a whole.
var keyValuePattern = regexp.MustCompile(`"([^"]+)"\s*:\s*"([^"]*)"`)

// ExtractKeyValues scans arbitrary text for quoted key/value pairs
func ExtractKeyValues(blob string) map[string]string {
	matches := keyValuePattern.FindAllStringSubmatch(blob, -1)
	if len(matches) == 0 {
		return nil
	}
	fields := make(map[string]string, len(matches))
	for _, m := range matches {
		if _, exists := fields[m[1]]; !exists {
			fields[m[1]] = strings.TrimSpace(m[2])
		}
	}
	return fields
}

// postcodeShape matches UK-style postal codes, the final fallback when no
// keyed value yields a postcode.
var postcodeShape = regexp.MustCompile(`\b[A-Za-z]{1,2}[0-9][A-Za-z0-9]?\s?[0-9][A-Za-z]{2}\b`)

// ExtractPostcodeShape pattern-matches a postal-code shape out of free text
func ExtractPostcodeShape(text string) string {
	return strings.ToUpper(strings.TrimSpace(postcodeShape.FindString(text)))
}

// pickKeyed returns the first non-empty value under any of the given keys
func pickKeyed(fields map[string]string, keys []string) string {
	for _, key := range keys {
		if v, ok := fields[key]; ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// ExtractAddress runs the extractor chain over a meta blob: JSON
// form-fields lookup first, quoted key/value scan second, postcode shape
// match last. Each stage only fills what earlier stages left empty.
func ExtractAddress(blob string) (address1, postcode string) {
	if fields, ok := ExtractFormFields(blob); ok {
		address1 = pickKeyed(fields, AddressFieldKeys)
		postcode = pickKeyed(fields, PostcodeFieldKeys)
	}

	if address1 == "" || postcode == "" {
		if fields := ExtractKeyValues(blob); fields != nil {
			if address1 == "" {
				address1 = pickKeyed(fields, AddressFieldKeys)
			}
			if postcode == "" {
				postcode = pickKeyed(fields, PostcodeFieldKeys)
			}
		}
	}

	if postcode == "" {
		postcode = ExtractPostcodeShape(blob)
	}
	return address1, postcode
}
