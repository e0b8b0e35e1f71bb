package gemini

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"memographic/memo"
)

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		apiKey  string
		wantErr bool
	}{
		{"valid key", "test-api-key", false},
		{"empty key", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.apiKey)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewClient() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && client == nil {
				t.Error("NewClient() returned nil client")
			}
		})
	}
}

func TestNewClientFromEnv(t *testing.T) {
	// Save original env
	orig := map[string]string{}
	for _, name := range APIKeyEnvVars {
		orig[name] = os.Getenv(name)
		os.Unsetenv(name)
	}
	defer func() {
		for name, v := range orig {
			os.Setenv(name, v)
		}
	}()

	for _, name := range APIKeyEnvVars {
		os.Setenv(name, "key-from-"+name)
		client, err := NewClientFromEnv()
		if err != nil {
			t.Errorf("NewClientFromEnv() with %s failed: %v", name, err)
		}
		if client == nil || client.apiKey != "key-from-"+name {
			t.Errorf("NewClientFromEnv() did not pick up %s", name)
		}
		os.Unsetenv(name)
	}

	// GEMINI_API_KEY wins over the fallbacks
	os.Setenv("GOOGLE_API_KEY", "google")
	os.Setenv("GEMINI_API_KEY", "gemini")
	if client, _ := NewClientFromEnv(); client == nil || client.apiKey != "gemini" {
		t.Error("NewClientFromEnv() should prefer GEMINI_API_KEY")
	}
	os.Unsetenv("GOOGLE_API_KEY")
	os.Unsetenv("GEMINI_API_KEY")

	// Test with no keys
	if _, err := NewClientFromEnv(); err == nil {
		t.Error("NewClientFromEnv() should fail with no API keys set")
	}
	if err := CheckConfig(); err == nil {
		t.Error("CheckConfig() should fail with no API keys set")
	}
}

func TestClientOptions(t *testing.T) {
	client, err := NewClient("test-key",
		WithBaseURL("https://custom.api.com"),
		WithDebug(true),
		WithTranscriptionModel("gemini-2.0-flash"),
		WithImageModel(ModelGemini25FlashImage),
		WithImageConfig("16:9", "2K"),
	)
	if err != nil {
		t.Fatalf("NewClient() failed: %v", err)
	}

	if client.baseURL != "https://custom.api.com" {
		t.Errorf("WithBaseURL() = %v, want https://custom.api.com", client.baseURL)
	}
	if !client.debug {
		t.Error("WithDebug(true) did not enable debug mode")
	}
	if client.transcriptionModel != "gemini-2.0-flash" {
		t.Errorf("transcriptionModel = %v", client.transcriptionModel)
	}
	if client.imageModel != ModelGemini25FlashImage {
		t.Errorf("imageModel = %v", client.imageModel)
	}
	if client.aspectRatio != "16:9" || client.imageSize != "2K" {
		t.Errorf("image config = %v %v", client.aspectRatio, client.imageSize)
	}
}

func TestClientDefaults(t *testing.T) {
	client, _ := NewClient("test-key", WithImageConfig("", ""))
	if client.transcriptionModel != "gemini-2.5-flash" {
		t.Errorf("transcriptionModel = %v, want gemini-2.5-flash", client.transcriptionModel)
	}
	if client.imageModel != "gemini-3-pro-image-preview" {
		t.Errorf("imageModel = %v, want gemini-3-pro-image-preview", client.imageModel)
	}
	if client.aspectRatio != "3:4" || client.imageSize != "1K" {
		t.Errorf("image config = %v %v, want 3:4 1K", client.aspectRatio, client.imageSize)
	}
}

func TestWithBaseURL_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		url     string
		wantURL string
	}{
		{"empty", "", BaseURL},
		{"invalid scheme", "ftp://example.com", BaseURL},
		{"no host", "http://", BaseURL},
		{"valid http", "http://localhost:8080", "http://localhost:8080"},
		{"valid https", "https://api.example.com", "https://api.example.com"},
		{"trailing slash", "https://api.example.com/", "https://api.example.com"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, _ := NewClient("test-key", WithBaseURL(tt.url))
			if client.baseURL != tt.wantURL {
				t.Errorf("WithBaseURL(%q) = %v, want %v", tt.url, client.baseURL, tt.wantURL)
			}
		})
	}
}

func jsonResponse(t *testing.T, w http.ResponseWriter, status int, v any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		t.Errorf("encode response: %v", err)
	}
}

func textResponse(text string) GenerateContentResponse {
	return GenerateContentResponse{
		Candidates: []*Candidate{
			{
				Content:      &Content{Parts: []*Part{{Text: text}}},
				FinishReason: "STOP",
			},
		},
	}
}

func TestTranscribe(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("Expected POST, got %s", r.Method)
		}
		if r.URL.Path != "/models/gemini-2.5-flash:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("key = %q", r.URL.Query().Get("key"))
		}

		var req GenerateContentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		parts := req.Contents[0].Parts
		if len(parts) != 2 {
			t.Errorf("got %d parts, want 2", len(parts))
			return
		}
		if parts[0].InlineData == nil || parts[0].InlineData.MIMEType != "audio/webm" || parts[0].InlineData.Data != "QUJD" {
			t.Errorf("audio part = %+v", parts[0].InlineData)
		}
		if parts[1].Text != memo.TranscriptionInstruction {
			t.Errorf("instruction = %q", parts[1].Text)
		}
		if req.GenerationConfig != nil {
			t.Errorf("transcription should not send a generation config: %+v", req.GenerationConfig)
		}

		jsonResponse(t, w, http.StatusOK, textResponse("  Buy milk and eggs.\n"))
	}))
	defer server.Close()

	client, _ := NewClient("test-key", WithBaseURL(server.URL))
	text, err := client.Transcribe(context.Background(), "QUJD", "audio/webm")
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if text != "Buy milk and eggs." {
		t.Errorf("Transcribe() = %q", text)
	}
}

func TestTranscribe_Failures(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      any
		wantEmpty bool
		wantMsg   string
	}{
		{"no candidates", http.StatusOK, GenerateContentResponse{}, true, ""},
		{"blank text", http.StatusOK, textResponse("   "), true, ""},
		{
			"api error", http.StatusBadRequest,
			map[string]any{"error": map[string]any{"code": 400, "message": "Unsupported MIME type", "status": "INVALID_ARGUMENT"}},
			false, "Unsupported MIME type: INVALID_ARGUMENT",
		},
		{"non-json error", http.StatusBadGateway, "upstream exploded", false, "API error (status 502)"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				jsonResponse(t, w, tt.status, tt.body)
			}))
			defer server.Close()

			client, _ := NewClient("test-key", WithBaseURL(server.URL))
			_, err := client.Transcribe(context.Background(), "QUJD", "audio/wav")

			if tt.wantEmpty {
				if !errors.Is(err, memo.ErrEmptyResult) {
					t.Errorf("error = %v, want ErrEmptyResult", err)
				}
				return
			}

			var terr *memo.TranscriptionError
			if !errors.As(err, &terr) {
				t.Fatalf("error = %v, want *memo.TranscriptionError", err)
			}
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("error = %v, want wrapped *APIError", err)
			}
			if apiErr.StatusCode != tt.status {
				t.Errorf("StatusCode = %d, want %d", apiErr.StatusCode, tt.status)
			}
			if !strings.HasPrefix(apiErr.Error(), tt.wantMsg) {
				t.Errorf("message = %q, want prefix %q", apiErr.Error(), tt.wantMsg)
			}
		})
	}
}

func TestTranscribe_EmptyAudio(t *testing.T) {
	client, _ := NewClient("test-key", WithBaseURL("http://127.0.0.1:1"))
	if _, err := client.Transcribe(context.Background(), "", "audio/wav"); !errors.Is(err, memo.ErrEmptyResult) {
		t.Errorf("Transcribe(\"\") error = %v, want ErrEmptyResult", err)
	}
}

func TestTranscribe_KeyNotLeaked(t *testing.T) {
	client, _ := NewClient("super-secret", WithBaseURL("http://127.0.0.1:1"))
	_, err := client.Transcribe(context.Background(), "QUJD", "audio/wav")
	if err == nil {
		t.Fatal("Transcribe() expected connection error")
	}
	if strings.Contains(err.Error(), "super-secret") {
		t.Errorf("error leaks the API key: %v", err)
	}
}

func TestGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/models/gemini-3-pro-image-preview:generateContent" {
			t.Errorf("path = %s", r.URL.Path)
		}

		var req GenerateContentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
			return
		}
		prompt := req.Contents[0].Parts[0].Text
		if !strings.Contains(prompt, `"Buy milk"`) {
			t.Errorf("prompt does not embed the transcript: %q", prompt)
		}
		cfg := req.GenerationConfig
		if cfg == nil || cfg.ImageConfig == nil {
			t.Errorf("missing image config: %+v", cfg)
			return
		}
		if cfg.ImageConfig.AspectRatio != "3:4" || cfg.ImageConfig.ImageSize != "1K" {
			t.Errorf("image config = %+v, want 3:4 1K", cfg.ImageConfig)
		}

		jsonResponse(t, w, http.StatusOK, GenerateContentResponse{
			Candidates: []*Candidate{
				{
					Content: &Content{Parts: []*Part{
						{Text: "Here is your infographic."},
						{InlineData: &InlineData{MIMEType: "image/png", Data: "iVBORw0KGgo="}},
					}},
				},
			},
		})
	}))
	defer server.Close()

	client, _ := NewClient("test-key", WithBaseURL(server.URL))
	url, err := client.Generate(context.Background(), "Buy milk")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if url != "data:image/png;base64,iVBORw0KGgo=" {
		t.Errorf("Generate() = %q", url)
	}
}

func TestGenerate_KeepsImageMIMEType(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		jsonResponse(t, w, http.StatusOK, GenerateContentResponse{
			Candidates: []*Candidate{
				{
					Content: &Content{Parts: []*Part{
						{InlineData: &InlineData{MIMEType: "image/jpeg", Data: "/9j/4AAQ"}},
					}},
				},
			},
		})
	}))
	defer server.Close()

	client, _ := NewClient("test-key", WithBaseURL(server.URL))
	url, err := client.Generate(context.Background(), "Buy milk")
	if err != nil {
		t.Fatalf("Generate() error = %v", err)
	}
	if url != "data:image/jpeg;base64,/9j/4AAQ" {
		t.Errorf("Generate() = %q, want the JPEG labelled as such", url)
	}
}

func TestGenerate_Failures(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       any
		wantNoImg  bool
		wantSubstr string
	}{
		{"text only", http.StatusOK, textResponse("I cannot draw that."), true, ""},
		{"no candidates", http.StatusOK, GenerateContentResponse{}, true, ""},
		{"blocked", http.StatusOK, GenerateContentResponse{PromptFeedback: &PromptFeedback{BlockReason: "SAFETY"}}, false, "prompt blocked: SAFETY"},
		{
			"permission", http.StatusForbidden,
			map[string]any{"error": map[string]any{"code": 403, "message": "Billing required", "status": "PERMISSION_DENIED"}},
			false, "Billing required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				jsonResponse(t, w, tt.status, tt.body)
			}))
			defer server.Close()

			client, _ := NewClient("test-key", WithBaseURL(server.URL))
			_, err := client.Generate(context.Background(), "hello")

			if tt.wantNoImg {
				if !errors.Is(err, memo.ErrNoImageProduced) {
					t.Errorf("error = %v, want ErrNoImageProduced", err)
				}
				return
			}
			var gerr *memo.GenerationError
			if !errors.As(err, &gerr) {
				t.Fatalf("error = %v, want *memo.GenerationError", err)
			}
			if !strings.Contains(err.Error(), tt.wantSubstr) {
				t.Errorf("error = %q, want %q", err.Error(), tt.wantSubstr)
			}
		})
	}
}

func TestGenerate_Cancelled(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer server.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client, _ := NewClient("test-key", WithBaseURL(server.URL))
	_, err := client.Generate(ctx, "hello")
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestResponseText_SkipsThoughts(t *testing.T) {
	resp := &GenerateContentResponse{
		Candidates: []*Candidate{{Content: &Content{Parts: []*Part{
			{Text: "thinking...", Thought: true},
			{Text: "Hello "},
			{Text: "world"},
		}}}},
	}
	if got := resp.Text(); got != "Hello world" {
		t.Errorf("Text() = %q", got)
	}

	var empty *GenerateContentResponse
	if got := empty.Text(); got != "" {
		t.Errorf("nil Text() = %q", got)
	}
}

func TestValidImageOptions(t *testing.T) {
	if !ValidAspectRatio("3:4") || ValidAspectRatio("3:5") {
		t.Error("ValidAspectRatio() mismatch")
	}
	if !ValidImageSize("1K") || ValidImageSize("8K") {
		t.Error("ValidImageSize() mismatch")
	}
}
