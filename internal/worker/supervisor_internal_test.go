package worker

import "testing"

func TestParseResult(t *testing.T) {
	cases := []struct {
		name    string
		output  string
		success bool
		errText string
	}{
		{"success", `{"success":true}`, true, ""},
		{"failure", `{"success":false,"error":"boom"}`, false, "boom"},
		{"log noise before result", "starting up\n{\"success\":true}\n", true, ""},
		{"garbage", "segfault", false, ""},
		{"empty", "", false, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			result := parseResult([]byte(tc.output))
			if result.Success != tc.success {
				t.Fatalf("success = %v, want %v", result.Success, tc.success)
			}
			if result.Error != tc.errText {
				t.Fatalf("error = %q, want %q", result.Error, tc.errText)
			}
		})
	}
}
