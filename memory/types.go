// Package memory turns the persisted chat history into the bounded context
// block that the SQL generator and answer synthesizer see.
package memory

import (
	"fmt"
	"sync"
	"time"

	"github.com/pkoukk/tiktoken-go"
)

// Sender identifies who wrote a chat turn.
type Sender string

const (
	SenderUser      Sender = "user"
	SenderAssistant Sender = "assistant"
)

// ChatTurn is one message of a conversation. Turns are append-only and
// ordered by Timestamp.
type ChatTurn struct {
	Timestamp time.Time `json:"timestamp"`
	Sender    Sender    `json:"sender"`
	Message   string    `json:"message"`
}

// NewUserTurn creates a user turn stamped now.
func NewUserTurn(message string) ChatTurn {
	return ChatTurn{Timestamp: time.Now().UTC(), Sender: SenderUser, Message: message}
}

// NewAssistantTurn creates an assistant turn stamped now.
func NewAssistantTurn(message string) ChatTurn {
	return ChatTurn{Timestamp: time.Now().UTC(), Sender: SenderAssistant, Message: message}
}

// TokenizerFunc is a function that counts tokens in a string.
type TokenizerFunc func(text string) int

// DefaultTokenizer approximates ~4 characters per token.
func DefaultTokenizer(text string) int {
	return len(text) / 4
}

// EncodingCL100kBase is the encoding used by current OpenAI-compatible chat models.
const EncodingCL100kBase = "cl100k_base"

var (
	encodingsMu sync.Mutex
	encodings   = map[string]*tiktoken.Tiktoken{}
)

// NewTikTokenizer returns a TokenizerFunc backed by the named tiktoken
// encoding. Encodings are loaded once per process.
func NewTikTokenizer(encodingName string) (TokenizerFunc, error) {
	if encodingName == "" {
		encodingName = EncodingCL100kBase
	}

	encodingsMu.Lock()
	defer encodingsMu.Unlock()

	enc, ok := encodings[encodingName]
	if !ok {
		var err error
		enc, err = tiktoken.GetEncoding(encodingName)
		if err != nil {
			return nil, fmt.Errorf("failed to get encoding %s: %w", encodingName, err)
		}
		encodings[encodingName] = enc
	}

	return func(text string) int {
		return len(enc.Encode(text, nil, nil))
	}, nil
}
