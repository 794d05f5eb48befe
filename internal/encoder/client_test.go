package encoder

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func faceServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request)) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/embed/face", handler)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestClient_Encode_PicksHighestScore(t *testing.T) {
	server := faceServer(t, func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("failed to parse multipart: %v", err)
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("missing file part: %v", err)
			http.Error(w, "missing file", http.StatusBadRequest)
			return
		}
		data, _ := io.ReadAll(file)
		if string(data) != "jpeg-bytes" {
			t.Errorf("unexpected upload %q", data)
		}
		if header.Filename != "image.jpg" {
			t.Errorf("unexpected filename %q", header.Filename)
		}
		json.NewEncoder(w).Encode(FaceResponse{
			FacesCount: 2,
			Faces: []FaceDetection{
				{FaceIndex: 0, Dim: 3, Embedding: []float32{1, 0, 0}, DetScore: 0.61},
				{FaceIndex: 1, Dim: 3, Embedding: []float32{0, 1, 0}, DetScore: 0.97},
			},
			Model: "buffalo_l",
		})
	})

	vec, err := NewClient(server.URL, 0).Encode(context.Background(), []byte("jpeg-bytes"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(vec) != 3 || vec[1] != 1 {
		t.Errorf("expected the face with the higher det_score, got %v", vec)
	}
}

func TestClient_Encode_NoFace(t *testing.T) {
	server := faceServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"faces_count":0,"faces":[],"model":"buffalo_l"}`))
	})

	_, err := NewClient(server.URL, 0).Encode(context.Background(), []byte("img"))
	if !errors.Is(err, ErrNoFaceDetected) {
		t.Errorf("expected ErrNoFaceDetected, got %v", err)
	}
}

func TestClient_Encode_Failures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "model not loaded", http.StatusServiceUnavailable)
		}},
		{"bad json", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{not json`))
		}},
		{"empty embedding", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"faces_count":1,"faces":[{"face_index":0,"dim":0,"embedding":[],"det_score":0.9}]}`))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := faceServer(t, tt.handler)
			_, err := NewClient(server.URL, 0).Encode(context.Background(), []byte("img"))
			if !errors.Is(err, ErrModelFailure) {
				t.Errorf("expected ErrModelFailure, got %v", err)
			}
		})
	}
}

func TestClient_Encode_EmptyImage(t *testing.T) {
	_, err := NewClient("http://127.0.0.1:1", 0).Encode(context.Background(), nil)
	if !errors.Is(err, ErrModelFailure) {
		t.Errorf("expected ErrModelFailure, got %v", err)
	}
}

func TestClient_Encode_Deadline(t *testing.T) {
	server := faceServer(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewClient(server.URL, 0).Encode(ctx, []byte("img"))
	if !errors.Is(err, ErrTimeout) || !errors.Is(err, ErrModelFailure) {
		t.Errorf("expected timeout model failure, got %v", err)
	}
}

func TestDownscaleImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 400, 200))
	for x := range 400 {
		img.Set(x, 100, color.RGBA{R: 255, A: 255})
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode png: %v", err)
	}

	out := DownscaleImage(buf.Bytes(), 100)
	decoded, _, err := image.Decode(bytes.NewReader(out))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if decoded.Bounds().Dx() != 100 || decoded.Bounds().Dy() != 50 {
		t.Errorf("expected 100x50, got %v", decoded.Bounds())
	}

	if same := DownscaleImage(buf.Bytes(), 1000); !bytes.Equal(same, buf.Bytes()) {
		t.Error("image that fits should be returned unchanged")
	}
	if junk := DownscaleImage([]byte("not an image"), 10); string(junk) != "not an image" {
		t.Error("undecodable input should be returned unchanged")
	}
}

func TestDetectMIMEType(t *testing.T) {
	tests := []struct {
		data []byte
		want string
	}{
		{[]byte{0xFF, 0xD8, 0xFF, 0xE0, 0, 0, 0, 0}, "image/jpeg"},
		{[]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
		{[]byte("short"), "application/octet-stream"},
	}
	for _, tt := range tests {
		if got := detectMIMEType(tt.data); got != tt.want {
			t.Errorf("detectMIMEType(%v) = %s, want %s", tt.data, got, tt.want)
		}
	}
}
