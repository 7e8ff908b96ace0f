package icons_test

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tailored-agentic-units/drawbridge/companion"
	"github.com/tailored-agentic-units/drawbridge/config"
	"github.com/tailored-agentic-units/drawbridge/icons"
	"github.com/tailored-agentic-units/drawbridge/observability"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	img.Set(1, 1, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error: %v", err)
	}
	return buf.Bytes()
}

func jpegBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatalf("jpeg.Encode() error: %v", err)
	}
	return buf.Bytes()
}

func decodePNG(t *testing.T, b64 string) image.Image {
	t.Helper()
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		t.Fatalf("base64 decode error: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("png.Decode() error: %v", err)
	}
	return img
}

func imageServer(t *testing.T) *httptest.Server {
	t.Helper()
	payload := pngBytes(t)
	mux := http.NewServeMux()
	mux.HandleFunc("/icons/ok.png", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(payload)
	})
	mux.HandleFunc("/icons/garbage.png", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not an image"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{"png", pngBytes(t), false},
		{"jpeg re-encoded as png", jpegBytes(t), false},
		{"garbage", []byte("not an image"), true},
		{"empty", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := icons.Encode(tt.data)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Encode() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if b := decodePNG(t, got).Bounds(); b.Dx() != 4 || b.Dy() != 4 {
				t.Errorf("decoded bounds = %v, want 4x4", b)
			}
		})
	}
}

func TestEncodeBounded_RejectsOversizedImage(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 64, 64))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("png.Encode() error: %v", err)
	}

	if _, err := icons.EncodeBounded(buf.Bytes(), 100); !errors.Is(err, icons.ErrImageTooLarge) {
		t.Errorf("EncodeBounded() error = %v, want ErrImageTooLarge", err)
	}
	if _, err := icons.EncodeBounded(buf.Bytes(), 64*64); err != nil {
		t.Errorf("EncodeBounded() at the cap error = %v", err)
	}
}

func TestMaterialize_OversizedImageFails(t *testing.T) {
	srv := imageServer(t)
	rec := observability.NewRecorder()
	cfg := icons.Config{MaxImagePixels: 8}
	m := icons.NewMaterializer(cfg, icons.NewLoader(cfg, srv.Client()), icons.WithObserver(rec))

	out := m.MaterializeSync(context.Background(), map[string]companion.ActionDescriptor{
		"ok": {Name: "ok", ImageURL: srv.URL + "/icons/ok.png"},
	})

	if out["ok"].ImageBase64 != "" {
		t.Errorf("ImageBase64 = %q, want empty", out["ok"].ImageBase64)
	}
	if n := rec.Count(icons.EventLoadFailed); n != 1 {
		t.Errorf("Expected 1 load failure event, got %d", n)
	}
}

func TestPlaceholderIsPNG(t *testing.T) {
	if b := decodePNG(t, icons.Placeholder).Bounds(); b.Dx() != 16 || b.Dy() != 16 {
		t.Errorf("placeholder bounds = %v, want 16x16", b)
	}
}

func TestApplyPlaceholder(t *testing.T) {
	tests := []struct {
		name string
		in   companion.ActionDescriptor
		want string
	}{
		{"neither image field", companion.ActionDescriptor{Name: "a"}, icons.Placeholder},
		{"inline image kept", companion.ActionDescriptor{ImageBase64: "abc"}, "abc"},
		{"image url left for loading", companion.ActionDescriptor{ImageURL: "https://x/y.png"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := icons.ApplyPlaceholder(tt.in).ImageBase64; got != tt.want {
				t.Errorf("ImageBase64 = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMaterialize_NothingToLoadIsSynchronous(t *testing.T) {
	m := icons.NewMaterializer(icons.DefaultConfig(), icons.LoaderFunc(func(ctx context.Context, u string) ([]byte, error) {
		t.Errorf("loader called for %s", u)
		return nil, nil
	}))

	batch := map[string]companion.ActionDescriptor{
		"a": {Name: "a", ImageBase64: "abc"},
		"b": {Name: "b"},
	}

	var got map[string]companion.ActionDescriptor
	m.Materialize(context.Background(), batch, func(out map[string]companion.ActionDescriptor) {
		got = out
	})

	if got == nil {
		t.Fatal("Expected done to run before Materialize returned")
	}
	if len(got) != 2 || got["a"].ImageBase64 != "abc" || got["b"].ImageBase64 != "" {
		t.Errorf("Expected batch forwarded unchanged, got %+v", got)
	}
}

func TestMaterialize_FailedLoadYieldsEmptyImage(t *testing.T) {
	srv := imageServer(t)
	rec := observability.NewRecorder()
	m := icons.NewMaterializer(icons.Config{}, icons.NewLoader(icons.Config{}, srv.Client()), icons.WithObserver(rec))

	batch := map[string]companion.ActionDescriptor{
		"ok":      {Name: "ok", ImageURL: srv.URL + "/icons/ok.png"},
		"missing": {Name: "missing", ImageURL: srv.URL + "/icons/missing.png"},
		"garbage": {Name: "garbage", ImageURL: srv.URL + "/icons/garbage.png"},
		"inline":  {Name: "inline", ImageBase64: "abc"},
	}

	out := m.MaterializeSync(context.Background(), batch)

	if len(out) != 4 {
		t.Fatalf("Expected 4 descriptors, got %d", len(out))
	}
	if out["ok"].ImageBase64 == "" {
		t.Error("Expected ok descriptor to resolve")
	} else {
		decodePNG(t, out["ok"].ImageBase64)
	}
	if out["missing"].ImageBase64 != "" {
		t.Errorf("missing ImageBase64 = %q, want empty", out["missing"].ImageBase64)
	}
	if out["garbage"].ImageBase64 != "" {
		t.Errorf("garbage ImageBase64 = %q, want empty", out["garbage"].ImageBase64)
	}
	if out["inline"].ImageBase64 != "abc" {
		t.Errorf("inline ImageBase64 = %q, want %q", out["inline"].ImageBase64, "abc")
	}

	if batch["ok"].ImageBase64 != "" {
		t.Error("Materialize mutated the input batch")
	}
	if n := rec.Count(icons.EventLoadFailed); n != 2 {
		t.Errorf("Expected 2 load failure events, got %d", n)
	}
	if n := rec.Count(icons.EventBatchComplete); n != 1 {
		t.Errorf("Expected 1 batch completion event, got %d", n)
	}
}

func TestMaterialize_RelativeURLResolvedAgainstBase(t *testing.T) {
	srv := imageServer(t)
	cfg := icons.Config{BaseURL: srv.URL + "/icons/"}
	m := icons.NewMaterializer(cfg, icons.NewLoader(cfg, srv.Client()))

	out := m.MaterializeSync(context.Background(), map[string]companion.ActionDescriptor{
		"rel": {Name: "rel", ImageURL: "ok.png"},
	})

	if out["rel"].ImageBase64 == "" {
		t.Error("Expected relative image url to resolve")
	}
}

func TestMaterialize_BoundsConcurrentLoads(t *testing.T) {
	payload := pngBytes(t)

	var inFlight, peak atomic.Int32
	loader := icons.LoaderFunc(func(ctx context.Context, u string) ([]byte, error) {
		n := inFlight.Add(1)
		defer inFlight.Add(-1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		return payload, nil
	})

	m := icons.NewMaterializer(icons.Config{MaxConcurrentLoads: 2}, loader)

	batch := make(map[string]companion.ActionDescriptor)
	for _, key := range []string{"a", "b", "c", "d", "e", "f"} {
		batch[key] = companion.ActionDescriptor{Name: key, ImageURL: "https://icons.example/" + key + ".png"}
	}

	out := m.MaterializeSync(context.Background(), batch)

	for key, d := range out {
		if d.ImageBase64 == "" {
			t.Errorf("descriptor %s not resolved", key)
		}
	}
	if p := peak.Load(); p > 2 {
		t.Errorf("peak concurrent loads = %d, want <= 2", p)
	}
}

func TestMaterialize_CancelledContextFailsLoads(t *testing.T) {
	payload := pngBytes(t)
	loader := icons.LoaderFunc(func(ctx context.Context, u string) ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return payload, nil
	})

	m := icons.NewMaterializer(icons.Config{MaxConcurrentLoads: 1}, loader)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := m.MaterializeSync(ctx, map[string]companion.ActionDescriptor{
		"a": {ImageURL: "https://icons.example/a.png"},
		"b": {ImageURL: "https://icons.example/b.png"},
	})

	if out["a"].ImageBase64 != "" || out["b"].ImageBase64 != "" {
		t.Errorf("Expected failed loads, got %+v", out)
	}
}

func TestDataURLLoader(t *testing.T) {
	raw := pngBytes(t)

	tests := []struct {
		name    string
		url     string
		want    []byte
		wantErr error
	}{
		{"base64", "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw), raw, nil},
		{"percent encoded", "data:text/plain,hello%20world", []byte("hello world"), nil},
		{"missing comma", "data:image/png;base64", nil, icons.ErrInvalidDataURL},
		{"bad base64", "data:image/png;base64,!!!", nil, icons.ErrInvalidDataURL},
		{"not a data url", "https://x/y.png", nil, icons.ErrInvalidDataURL},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := icons.DataURLLoader{}.Load(context.Background(), tt.url)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Load() error = %v, want %v", err, tt.wantErr)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("Load() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTTPLoader_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/large" {
			w.Write(bytes.Repeat([]byte{0}, 64))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	loader := &icons.HTTPLoader{Client: srv.Client(), MaxBytes: 32}

	if _, err := loader.Load(context.Background(), srv.URL+"/missing"); !errors.Is(err, icons.ErrUnexpectedStatus) {
		t.Errorf("Load(missing) error = %v, want ErrUnexpectedStatus", err)
	}
	if _, err := loader.Load(context.Background(), srv.URL+"/large"); !errors.Is(err, icons.ErrImageTooLarge) {
		t.Errorf("Load(large) error = %v, want ErrImageTooLarge", err)
	}
}

func TestFileLoader(t *testing.T) {
	raw := pngBytes(t)
	path := filepath.Join(t.TempDir(), "icon.png")
	if err := os.WriteFile(path, raw, 0o600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	for _, u := range []string{path, "file://" + path} {
		got, err := icons.FileLoader{}.Load(context.Background(), u)
		if err != nil {
			t.Fatalf("Load(%s) error: %v", u, err)
		}
		if !bytes.Equal(got, raw) {
			t.Errorf("Load(%s) returned different bytes", u)
		}
	}
}

func TestSchemeLoader(t *testing.T) {
	called := ""
	loader := &icons.SchemeLoader{
		Loaders: map[string]icons.Loader{
			"https": icons.LoaderFunc(func(ctx context.Context, u string) ([]byte, error) {
				called = "https"
				return nil, nil
			}),
		},
		Default: icons.LoaderFunc(func(ctx context.Context, u string) ([]byte, error) {
			called = "default"
			return nil, nil
		}),
	}

	tests := []struct {
		url     string
		want    string
		wantErr error
	}{
		{"https://icons.example/a.png", "https", nil},
		{"HTTPS://icons.example/a.png", "https", nil},
		{"icons/a.png", "default", nil},
		{"ftp://icons.example/a.png", "", icons.ErrUnsupportedScheme},
	}

	for _, tt := range tests {
		called = ""
		_, err := loader.Load(context.Background(), tt.url)
		if !errors.Is(err, tt.wantErr) {
			t.Errorf("Load(%s) error = %v, want %v", tt.url, err, tt.wantErr)
		}
		if called != tt.want {
			t.Errorf("Load(%s) used %q loader, want %q", tt.url, called, tt.want)
		}
	}
}

func TestConfig_Merge(t *testing.T) {
	cfg := icons.DefaultConfig()
	cfg.Merge(&icons.Config{
		MaxConcurrentLoads: 8,
		BaseURL:            "https://launchpad.example/",
		MaxImagePixels:     1 << 10,
	})

	if cfg.MaxConcurrentLoads != 8 {
		t.Errorf("MaxConcurrentLoads = %d, want 8", cfg.MaxConcurrentLoads)
	}
	if cfg.BaseURL != "https://launchpad.example/" {
		t.Errorf("BaseURL = %q", cfg.BaseURL)
	}
	if cfg.MaxImagePixels != 1<<10 {
		t.Errorf("MaxImagePixels = %d, want %d", cfg.MaxImagePixels, 1<<10)
	}
	if cfg.MaxImageBytes != 5<<20 {
		t.Errorf("MaxImageBytes = %d, want default %d", cfg.MaxImageBytes, 5<<20)
	}
	if cfg.LoadTimeout != config.Duration(10*time.Second) {
		t.Errorf("LoadTimeout = %v, want default 10s", cfg.LoadTimeout)
	}
}
