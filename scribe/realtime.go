package scribe

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"memographic/memo"
	"memographic/recorder"
)

const (
	// RealtimeWebSocketURL is the ElevenLabs Scribe v2 realtime WebSocket endpoint
	RealtimeWebSocketURL = "wss://api.elevenlabs.io/v1/speech-to-text/realtime"

	// DefaultEncoding for audio input
	DefaultEncoding = "pcm_s16le"

	// DefaultFinalWait is how long to wait for trailing transcripts after a flush
	DefaultFinalWait = 2 * time.Second

	realtimeChunk = 100 * time.Millisecond
)

// RealtimeConfig configures a realtime session
type RealtimeConfig struct {
	URL        string
	Model      string
	Language   string
	SampleRate int
	Encoding   string
	FinalWait  time.Duration
}

// RealtimeTranscript is one transcript event
type RealtimeTranscript struct {
	Text     string `json:"text"`
	IsFinal  bool   `json:"is_final"`
	Language string `json:"language,omitempty"`
}

type realtimeInitMessage struct {
	Type       string `json:"type"`
	ModelID    string `json:"model_id,omitempty"`
	Language   string `json:"language,omitempty"`
	SampleRate int    `json:"sample_rate,omitempty"`
	Encoding   string `json:"encoding,omitempty"`
}

type realtimeAudioMessage struct {
	Type  string `json:"type"`
	Audio string `json:"audio"`
}

type realtimeResponse struct {
	Type       string              `json:"type"`
	Transcript *RealtimeTranscript `json:"transcript,omitempty"`
	Error      *APIError           `json:"error,omitempty"`
	Message    string              `json:"message,omitempty"`
}

// RealtimeClient streams PCM audio over a WebSocket and collects the final
// transcript events
type RealtimeClient struct {
	apiKey string
	cfg    RealtimeConfig
	logger *zap.Logger

	// gorilla connections allow one concurrent writer
	writeMu sync.Mutex
	conn    *websocket.Conn
	flushed atomic.Bool
}

// NewRealtimeClient creates a realtime client. Zero config fields take
// their defaults.
func NewRealtimeClient(apiKey string, cfg RealtimeConfig, logger *zap.Logger) (*RealtimeClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.URL == "" {
		cfg.URL = RealtimeWebSocketURL
	}
	if cfg.Model == "" {
		cfg.Model = ModelScribeV2Realtime
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = recorder.DefaultSampleRate
	}
	if cfg.Encoding == "" {
		cfg.Encoding = DefaultEncoding
	}
	if cfg.FinalWait == 0 {
		cfg.FinalWait = DefaultFinalWait
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RealtimeClient{apiKey: apiKey, cfg: cfg, logger: logger}, nil
}

// Connect dials the endpoint and sends the session parameters
func (c *RealtimeClient) Connect(ctx context.Context) error {
	if c.conn != nil {
		return fmt.Errorf("already connected")
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	header := http.Header{}
	header.Set("xi-api-key", c.apiKey)

	conn, resp, err := dialer.DialContext(ctx, c.cfg.URL, header)
	if err != nil {
		if resp != nil {
			return fmt.Errorf("websocket connection failed (status %d): %w", resp.StatusCode, err)
		}
		return fmt.Errorf("websocket connection failed: %w", err)
	}
	c.conn = conn
	c.logger.Debug("realtime session connected", zap.String("url", c.cfg.URL))

	start := realtimeInitMessage{
		Type:       "init",
		ModelID:    c.cfg.Model,
		Language:   c.cfg.Language,
		SampleRate: c.cfg.SampleRate,
		Encoding:   c.cfg.Encoding,
	}
	if err := c.writeJSON(start); err != nil {
		c.Close()
		return fmt.Errorf("failed to send init message: %w", err)
	}
	return nil
}

func (c *RealtimeClient) writeJSON(v any) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	return c.conn.WriteJSON(v)
}

// SendAudio sends one chunk of PCM audio
func (c *RealtimeClient) SendAudio(pcm []byte) error {
	return c.writeJSON(realtimeAudioMessage{
		Type:  "audio",
		Audio: base64.StdEncoding.EncodeToString(pcm),
	})
}

// Flush signals the end of audio input. Reads give up once the server has
// been quiet for FinalWait.
func (c *RealtimeClient) Flush() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return fmt.Errorf("not connected")
	}
	if err := c.conn.WriteJSON(map[string]string{"type": "flush"}); err != nil {
		return err
	}
	c.flushed.Store(true)
	return c.conn.SetReadDeadline(time.Now().Add(c.cfg.FinalWait))
}

// Close closes the connection
func (c *RealtimeClient) Close() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// collect reads events until the server flushes, closes or goes quiet after
// a flush, and joins the final transcripts
func (c *RealtimeClient) collect(conn *websocket.Conn) (string, error) {
	var parts []string
	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			var netErr net.Error
			switch {
			case websocket.IsCloseError(err, websocket.CloseNormalClosure):
				return strings.Join(parts, " "), nil
			case c.flushed.Load() && errors.As(err, &netErr) && netErr.Timeout():
				return strings.Join(parts, " "), nil
			}
			return "", fmt.Errorf("websocket read error: %w", err)
		}
		if c.flushed.Load() {
			conn.SetReadDeadline(time.Now().Add(c.cfg.FinalWait))
		}

		var resp realtimeResponse
		if err := json.Unmarshal(message, &resp); err != nil {
			c.logger.Debug("skipping unparseable realtime message", zap.Error(err))
			continue
		}

		switch resp.Type {
		case "transcript":
			if resp.Transcript != nil && resp.Transcript.IsFinal {
				if text := strings.TrimSpace(resp.Transcript.Text); text != "" {
					parts = append(parts, text)
				}
			}
		case "error":
			if resp.Error != nil {
				return "", resp.Error
			}
			return "", &APIError{Message: resp.Message}
		case "flushed":
			return strings.Join(parts, " "), nil
		}
	}
}

// TranscribePCM streams a whole recording and returns the joined final
// transcripts
func (c *RealtimeClient) TranscribePCM(ctx context.Context, pcm []byte) (string, error) {
	if err := c.Connect(ctx); err != nil {
		return "", err
	}
	defer c.Close()
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	type result struct {
		text string
		err  error
	}
	results := make(chan result, 1)
	conn := c.conn
	go func() {
		text, err := c.collect(conn)
		results <- result{text, err}
	}()

	// A failed write usually means the server already hung up with a reason
	writeFailed := func(op string, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		select {
		case r := <-results:
			if r.err != nil {
				return r.err
			}
		default:
		}
		return fmt.Errorf("%s error: %w", op, err)
	}

	chunk := c.cfg.SampleRate * 2 * int(realtimeChunk/time.Millisecond) / 1000
	for i := 0; i < len(pcm); i += chunk {
		end := min(i+chunk, len(pcm))
		if err := c.SendAudio(pcm[i:end]); err != nil {
			return "", writeFailed("send", err)
		}
	}
	if err := c.Flush(); err != nil {
		return "", writeFailed("flush", err)
	}

	select {
	case r := <-results:
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// RealtimeTranscriber adapts the realtime API to memo.Transcriber. Only mono
// 16-bit WAV recordings can be streamed.
type RealtimeTranscriber struct {
	APIKey   string
	URL      string
	Model    string
	Language string
	Logger   *zap.Logger
}

// NewRealtimeTranscriberFromEnv reads ELEVENLABS_API_KEY
func NewRealtimeTranscriberFromEnv() (*RealtimeTranscriber, error) {
	apiKey := strings.TrimSpace(os.Getenv("ELEVENLABS_API_KEY"))
	if apiKey == "" {
		return nil, fmt.Errorf("ELEVENLABS_API_KEY environment variable not set")
	}
	return &RealtimeTranscriber{APIKey: apiKey}, nil
}

// Transcribe implements memo.Transcriber
func (t *RealtimeTranscriber) Transcribe(ctx context.Context, base64Audio, mimeType string) (string, error) {
	const provider = "elevenlabs_realtime"

	audio, err := base64.StdEncoding.DecodeString(base64Audio)
	if err != nil {
		return "", &memo.TranscriptionError{Provider: provider, Err: fmt.Errorf("invalid audio encoding: %w", err)}
	}
	if len(audio) == 0 {
		return "", memo.ErrEmptyResult
	}

	pcm, format, err := recorder.DecodeWAV(audio)
	if err != nil {
		return "", &memo.TranscriptionError{Provider: provider, Err: fmt.Errorf("realtime transcription needs wav audio (got %s): %w", mimeType, err)}
	}
	if format.Channels != 1 {
		return "", &memo.TranscriptionError{Provider: provider, Err: fmt.Errorf("realtime transcription needs mono audio (got %d channels)", format.Channels)}
	}

	client, err := NewRealtimeClient(t.APIKey, RealtimeConfig{
		URL:        t.URL,
		Model:      t.Model,
		Language:   t.Language,
		SampleRate: format.SampleRate,
	}, t.Logger)
	if err != nil {
		return "", &memo.TranscriptionError{Provider: provider, Err: err}
	}

	text, err := client.TranscribePCM(ctx, pcm)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &memo.TranscriptionError{Provider: provider, Err: err}
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", memo.ErrEmptyResult
	}
	return text, nil
}
