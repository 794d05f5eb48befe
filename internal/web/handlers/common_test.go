package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestRespondJSON(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		data     any
		wantBody string
	}{
		{"nil data", http.StatusOK, nil, ""},
		{"empty map", http.StatusCreated, map[string]string{}, "{}\n"},
		{"values", http.StatusOK, map[string]int{"count": 42}, "{\"count\":42}\n"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			respondJSON(recorder, tc.status, tc.data)

			assertStatusCode(t, recorder, tc.status)
			if ct := recorder.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("expected Content-Type 'application/json', got '%s'", ct)
			}
			if recorder.Body.String() != tc.wantBody {
				t.Errorf("expected body %q, got %q", tc.wantBody, recorder.Body.String())
			}
		})
	}
}

func TestRespondError(t *testing.T) {
	recorder := httptest.NewRecorder()

	respondError(recorder, http.StatusNotFound, "gate not found")

	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "gate not found")
}

func TestHealthCheck(t *testing.T) {
	for _, method := range []string{"GET", "HEAD", "POST"} {
		t.Run(method, func(t *testing.T) {
			recorder := httptest.NewRecorder()
			HealthCheck(recorder, httptest.NewRequest(method, "/api/v1/health", nil))

			assertStatusCode(t, recorder, http.StatusOK)
			var result map[string]string
			if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
				t.Fatalf("failed to unmarshal response: %v", err)
			}
			if result["status"] != "ok" {
				t.Errorf("expected status 'ok', got '%s'", result["status"])
			}
		})
	}
}

func TestParseLimit(t *testing.T) {
	tests := []struct {
		value   string
		want    int
		wantErr bool
	}{
		{"", 50, false},
		{"10", 10, false},
		{"5000", 1000, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"ten", 0, true},
	}

	for _, tc := range tests {
		t.Run(tc.value, func(t *testing.T) {
			got, err := parseLimit(tc.value, 50, 1000)
			if (err != nil) != tc.wantErr {
				t.Fatalf("parseLimit(%q) error = %v, wantErr %v", tc.value, err, tc.wantErr)
			}
			if got != tc.want {
				t.Errorf("parseLimit(%q) = %d, want %d", tc.value, got, tc.want)
			}
		})
	}
}

func TestSanitizeForLog(t *testing.T) {
	if got := sanitizeForLog("gate\r\n1"); got != "gate1" {
		t.Errorf("expected newlines removed, got %q", got)
	}
}

func TestReadFormFile_TooLarge(t *testing.T) {
	big := make([]byte, 10<<20+1)
	req := newMultipartRequest(t, http.MethodPost, "/api/v1/identify", nil,
		formFile{field: "face_image", filename: "big.jpg", data: big})
	if err := req.ParseMultipartForm(64 << 20); err != nil {
		t.Fatalf("parse: %v", err)
	}

	if _, _, err := readFormFile(req, "face_image"); err != errImageBytes {
		t.Errorf("expected errImageBytes, got %v", err)
	}
}
