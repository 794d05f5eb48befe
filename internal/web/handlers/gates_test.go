package handlers

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/WKowalczykDev/EntranceControl/internal/database"
	dbmock "github.com/WKowalczykDev/EntranceControl/internal/database/mock"
)

func TestGateListAttempts(t *testing.T) {
	gates := dbmock.NewMockGateReader()
	gates.AddGate(database.Gate{ID: "1", Name: "Main entrance", Active: false})
	attempts := dbmock.NewMockAttemptStore()
	now := time.Now()
	attempts.Append(t.Context(), database.VerificationAttempt{ID: "a", GateID: "1", Timestamp: now})
	attempts.Append(t.Context(), database.VerificationAttempt{ID: "b", GateID: "2", Timestamp: now})

	h := NewGatesHandler(gates, attempts, zap.NewNop())

	tests := []struct {
		name       string
		gateID     string
		query      string
		wantStatus int
		wantCount  int
	}{
		{"inactive gate keeps history", "1", "", http.StatusOK, 1},
		{"unknown gate", "2", "", http.StatusNotFound, 0},
		{"bad limit", "1", "?limit=-1", http.StatusBadRequest, 0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/v1/gates/"+tc.gateID+"/attempts"+tc.query, nil)
			req = requestWithChiParams(req, map[string]string{"id": tc.gateID})
			recorder := httptest.NewRecorder()

			h.ListAttempts(recorder, req)

			assertStatusCode(t, recorder, tc.wantStatus)
			if tc.wantStatus != http.StatusOK {
				return
			}
			var resp AttemptsResponse
			parseJSONResponse(t, recorder, &resp)
			if resp.GateID != tc.gateID || len(resp.Attempts) != tc.wantCount {
				t.Errorf("unexpected response: %+v", resp)
			}
		})
	}
}

func TestGateListAttempts_StoreFailure(t *testing.T) {
	gates := dbmock.NewMockGateReader()
	gates.AddGate(database.Gate{ID: "1", Active: true})
	attempts := dbmock.NewMockAttemptStore()
	attempts.ListError = errors.New("timeout")

	req := requestWithChiParams(httptest.NewRequest(http.MethodGet, "/api/v1/gates/1/attempts", nil),
		map[string]string{"id": "1"})
	recorder := httptest.NewRecorder()
	NewGatesHandler(gates, attempts, zap.NewNop()).ListAttempts(recorder, req)

	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, "failed to list attempts")
}
