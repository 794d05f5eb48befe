package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/WKowalczykDev/EntranceControl/internal/database"
	"github.com/WKowalczykDev/EntranceControl/internal/verification"
)

type verifierFunc func(ctx context.Context, req verification.Request) (verification.Response, error)

func (f verifierFunc) Verify(ctx context.Context, req verification.Request) (verification.Response, error) {
	return f(ctx, req)
}

func grantingVerifier(got *verification.Request) verifierFunc {
	return func(ctx context.Context, req verification.Request) (verification.Response, error) {
		*got = req
		return verification.Response{
			Decision:   database.DecisionGranted,
			Message:    "Access granted. Welcome Anna Nowak",
			PersonName: "Anna Nowak",
			Confidence: 98.5,
			AttemptID:  "att-1",
		}, nil
	}
}

func TestVerify_Granted(t *testing.T) {
	var got verification.Request
	h := NewVerifyHandler(grantingVerifier(&got), zap.NewNop())

	req := newMultipartRequest(t, http.MethodPost, "/api/v1/verify",
		map[string]string{"gate_id": "1", "token": "UID:42"},
		formFile{field: "face_image", filename: "cam.jpg", data: []byte("jpeg bytes")})
	recorder := httptest.NewRecorder()
	h.Verify(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	var resp VerifyResponse
	parseJSONResponse(t, recorder, &resp)
	if resp.Decision != database.DecisionGranted || !resp.Success || resp.PersonName != "Anna Nowak" {
		t.Errorf("unexpected response: %+v", resp)
	}
	if resp.AttemptID != "att-1" || resp.Confidence != 98.5 {
		t.Errorf("unexpected response: %+v", resp)
	}
	if got.GateID != "1" || got.TokenValue != "UID:42" || string(got.Image) != "jpeg bytes" {
		t.Errorf("unexpected engine request: %+v", got)
	}
}

func TestVerify_QRDataAlias(t *testing.T) {
	var got verification.Request
	h := NewVerifyHandler(grantingVerifier(&got), zap.NewNop())

	req := newMultipartRequest(t, http.MethodPost, "/api/v1/verify",
		map[string]string{"gate_id": "1", "qr_data": "UID:7"},
		formFile{field: "face_image", filename: "cam.jpg", data: []byte("x")})
	recorder := httptest.NewRecorder()
	h.Verify(recorder, req)

	assertStatusCode(t, recorder, http.StatusOK)
	if got.TokenValue != "UID:7" {
		t.Errorf("expected qr_data to be used as token, got %q", got.TokenValue)
	}
}

func TestVerify_NonGrantedDecisionsAre200(t *testing.T) {
	for _, d := range []database.Decision{database.DecisionDenied, database.DecisionError} {
		t.Run(string(d), func(t *testing.T) {
			h := NewVerifyHandler(verifierFunc(func(ctx context.Context, req verification.Request) (verification.Response, error) {
				return verification.Response{Decision: d, Message: "no", Reason: database.ReasonModelFailure}, nil
			}), zap.NewNop())

			req := newMultipartRequest(t, http.MethodPost, "/api/v1/verify",
				map[string]string{"gate_id": "1", "token": "UID:42"},
				formFile{field: "face_image", filename: "cam.jpg", data: []byte("x")})
			recorder := httptest.NewRecorder()
			h.Verify(recorder, req)

			assertStatusCode(t, recorder, http.StatusOK)
			var resp VerifyResponse
			parseJSONResponse(t, recorder, &resp)
			if resp.Success || resp.Decision != d || resp.PersonName != "" {
				t.Errorf("unexpected response: %+v", resp)
			}
		})
	}
}

func TestVerify_BadRequests(t *testing.T) {
	image := formFile{field: "face_image", filename: "cam.jpg", data: []byte("x")}
	tests := []struct {
		name    string
		fields  map[string]string
		files   []formFile
		wantMsg string
	}{
		{"missing gate", map[string]string{"token": "UID:42"}, []formFile{image}, "gate_id is required"},
		{"missing token", map[string]string{"gate_id": "1"}, []formFile{image}, "token is required"},
		{"missing image", map[string]string{"gate_id": "1", "token": "UID:42"}, nil, "face_image is required"},
		{"empty image", map[string]string{"gate_id": "1", "token": "UID:42"},
			[]formFile{{field: "face_image", filename: "cam.jpg"}}, "face_image is required"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			called := false
			h := NewVerifyHandler(verifierFunc(func(ctx context.Context, req verification.Request) (verification.Response, error) {
				called = true
				return verification.Response{}, nil
			}), zap.NewNop())

			recorder := httptest.NewRecorder()
			h.Verify(recorder, newMultipartRequest(t, http.MethodPost, "/api/v1/verify", tc.fields, tc.files...))

			assertStatusCode(t, recorder, http.StatusBadRequest)
			assertJSONError(t, recorder, tc.wantMsg)
			if called {
				t.Error("engine must not be called for a malformed request")
			}
		})
	}
}

func TestVerify_NotMultipart(t *testing.T) {
	h := NewVerifyHandler(verifierFunc(nil), zap.NewNop())
	recorder := httptest.NewRecorder()

	h.Verify(recorder, httptest.NewRequest(http.MethodPost, "/api/v1/verify", nil))

	assertStatusCode(t, recorder, http.StatusBadRequest)
	assertJSONError(t, recorder, errInvalidMultipart)
}

func TestVerify_EngineErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{"unknown gate", fmt.Errorf("%w: 77", verification.ErrUnknownGate), http.StatusNotFound},
		{"invalid request", verification.ErrInvalidRequest, http.StatusBadRequest},
		{"gate store down", errors.New("connection refused"), http.StatusInternalServerError},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := NewVerifyHandler(verifierFunc(func(ctx context.Context, req verification.Request) (verification.Response, error) {
				return verification.Response{}, tc.err
			}), zap.NewNop())

			req := newMultipartRequest(t, http.MethodPost, "/api/v1/verify",
				map[string]string{"gate_id": "77", "token": "UID:42"},
				formFile{field: "face_image", filename: "cam.jpg", data: []byte("x")})
			recorder := httptest.NewRecorder()
			h.Verify(recorder, req)

			assertStatusCode(t, recorder, tc.wantStatus)
		})
	}
}
