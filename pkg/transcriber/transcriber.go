package transcriber

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/demonstrikkk/HoneyCatcher/pkg/audio"
	"github.com/gorilla/websocket"
	openai "github.com/sashabaranov/go-openai"
)

// Transcription is the collaborator's structured result for one audio window.
type Transcription struct {
	Text       string  `json:"text"`
	Language   string  `json:"language"`
	Confidence float64 `json:"confidence"`
}

type ITranscriber interface {
	Transcribe(ctx context.Context, pcm []byte) (*Transcription, error)
	Close()
}

const minTextLength = 2

// client talks to a streaming Whisper gateway over a persistent WebSocket
// (binary PCM in, JSON result out) and falls back to the OpenAI Whisper HTTP
// API when the gateway is unreachable.
type client struct {
	conn         *websocket.Conn
	mu           sync.Mutex
	openaiClient *openai.Client
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
}

func New() ITranscriber {
	c := &client{
		pingInterval: 30 * time.Second,
		readTimeout:  30 * time.Second,
		writeTimeout: 5 * time.Second,
	}

	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		c.openaiClient = openai.NewClient(apiKey)
	}

	go c.connectInBackground()

	return c
}

func (c *client) connectInBackground() {
	if err := c.reconnect(); err != nil {
		log.Printf("Initial connection to transcription gateway failed: %v. Will retry on demand.", err)
	} else {
		log.Printf("Successfully connected to transcription gateway")
	}
}

func gatewayURL() string {
	url := os.Getenv("STT_GATEWAY_URL")
	if url == "" {
		url = "ws://localhost:9000/api/v1/transcribe/ws"
	}
	return url
}

func (c *client) reconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}

	url := gatewayURL()

	dialer := websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.Dial(url, nil)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	conn.SetPingHandler(func(appData string) error {
		err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout))
		if err != nil {
			log.Printf("Error sending pong: %v", err)
		}
		return nil
	})

	c.conn = conn
	go c.keepAlive()

	return nil
}

func (c *client) keepAlive() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for range ticker.C {
		c.mu.Lock()
		conn := c.conn
		if conn == nil {
			c.mu.Unlock()
			return
		}

		err := conn.WriteControl(
			websocket.PingMessage,
			[]byte{},
			time.Now().Add(c.writeTimeout),
		)
		if err != nil {
			log.Printf("Ping failed for transcription gateway, marking connection as dead: %v", err)
			c.conn = nil
			conn.Close()
			c.mu.Unlock()
			return
		}

		c.mu.Unlock()
	}
}

// Transcribe sends one normalized PCM window and waits for the gateway's
// result. Results shorter than two characters after trimming are discarded
// as noise.
func (c *client) Transcribe(ctx context.Context, pcm []byte) (*Transcription, error) {
	result, err := c.transcribeGateway(pcm)
	if err != nil {
		if c.openaiClient == nil {
			return nil, err
		}
		result, err = c.transcribeWhisperHTTP(ctx, pcm)
		if err != nil {
			return nil, err
		}
	}

	if result == nil || len(strings.TrimSpace(result.Text)) < minTextLength {
		return nil, nil
	}

	result.Text = strings.TrimSpace(result.Text)
	return result, nil
}

func (c *client) transcribeGateway(pcm []byte) (*Transcription, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		if err := c.reconnect(); err != nil {
			return nil, fmt.Errorf("cannot connect to transcription gateway: %w", err)
		}
		c.mu.Lock()
		conn = c.conn
		c.mu.Unlock()
		if conn == nil {
			return nil, fmt.Errorf("transcription gateway unavailable")
		}
	}

	c.mu.Lock()
	conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))

	if err := conn.WriteMessage(websocket.BinaryMessage, pcm); err != nil {
		c.conn = nil
		conn.Close()
		c.mu.Unlock()
		return nil, fmt.Errorf("error sending audio window: %w", err)
	}

	conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	c.mu.Unlock()

	_, message, err := conn.ReadMessage()
	if err != nil {
		c.mu.Lock()
		c.conn = nil
		conn.Close()
		c.mu.Unlock()
		return nil, fmt.Errorf("error reading transcription result: %w", err)
	}

	c.mu.Lock()
	conn.SetReadDeadline(time.Time{})
	conn.SetWriteDeadline(time.Time{})
	c.mu.Unlock()

	var result Transcription
	if err := json.Unmarshal(message, &result); err != nil {
		return nil, fmt.Errorf("error unmarshaling transcription result: %w", err)
	}

	return &result, nil
}

func (c *client) transcribeWhisperHTTP(ctx context.Context, pcm []byte) (*Transcription, error) {
	req := openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: "window.wav",
		Reader:   bytes.NewReader(audio.WrapWAV(pcm)),
		Format:   openai.AudioResponseFormatVerboseJSON,
	}

	resp, err := c.openaiClient.CreateTranscription(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("whisper fallback failed: %w", err)
	}

	return &Transcription{
		Text:       resp.Text,
		Language:   resp.Language,
		Confidence: 0.8, // verbose_json carries no utterance-level confidence
	}, nil
}

func (c *client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.conn != nil {
		c.conn.Close()
		c.conn = nil
	}
}
