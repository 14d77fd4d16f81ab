package llm

import (
	"context"
	"strings"
	"sync"
	"time"

	"tangent-backend/internal/application/ports"
	"tangent-backend/internal/domain/chat"
	pkgerrors "tangent-backend/pkg/errors"
)

// RecordedCall captures one StreamChat invocation for test assertions.
type RecordedCall struct {
	Transcript chat.Transcript
	StartedAt  time.Time
	FinishedAt time.Time
}

// MockStreamer is a scripted ChatStreamer for tests and local development.
// By default it echoes the last user turn; set Reply to script behavior and
// FailWith to inject a failure for every call.
type MockStreamer struct {
	mu       sync.Mutex
	calls    []RecordedCall
	inFlight int
	peak     int

	// Reply computes the full answer for a transcript. Nil means echo.
	Reply func(transcript chat.Transcript) (string, error)
	// FailWith, when non-nil, fails every call regardless of Reply.
	FailWith error
	// ChunkSize splits the answer into onChunk deliveries. Zero means one
	// chunk carrying the whole answer.
	ChunkSize int
	// Delay is slept once per call before answering, to widen the window in
	// which concurrent calls overlap.
	Delay time.Duration
}

// NewMockStreamer returns an echoing mock.
func NewMockStreamer() *MockStreamer {
	return &MockStreamer{}
}

// StreamChat implements ports.ChatStreamer.
func (m *MockStreamer) StreamChat(
	ctx context.Context,
	transcript chat.Transcript,
	onChunk func(string),
	_ ports.StreamOptions,
) (string, error) {
	call := RecordedCall{Transcript: transcript, StartedAt: time.Now()}

	m.mu.Lock()
	m.inFlight++
	if m.inFlight > m.peak {
		m.peak = m.inFlight
	}
	m.mu.Unlock()

	defer func() {
		call.FinishedAt = time.Now()
		m.mu.Lock()
		m.inFlight--
		m.calls = append(m.calls, call)
		m.mu.Unlock()
	}()

	if m.Delay > 0 {
		select {
		case <-time.After(m.Delay):
		case <-ctx.Done():
			return "", pkgerrors.NewTimeout("mock stream cancelled")
		}
	}

	if m.FailWith != nil {
		return "", m.FailWith
	}

	answer, err := m.answer(transcript)
	if err != nil {
		return "", err
	}

	if onChunk != nil {
		size := m.ChunkSize
		if size <= 0 {
			size = len(answer)
		}
		for i := size; i < len(answer); i += size {
			onChunk(answer[:i])
		}
		onChunk(answer)
	}
	return answer, nil
}

func (m *MockStreamer) answer(transcript chat.Transcript) (string, error) {
	if m.Reply != nil {
		return m.Reply(transcript)
	}
	for i := len(transcript) - 1; i >= 0; i-- {
		if transcript[i].Role == "user" {
			return "echo: " + flatten(transcript[i]), nil
		}
	}
	return "echo:", nil
}

// Calls returns a copy of the recorded calls in completion order.
func (m *MockStreamer) Calls() []RecordedCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]RecordedCall(nil), m.calls...)
}

// PeakConcurrency reports the most calls that were in flight at once.
func (m *MockStreamer) PeakConcurrency() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peak
}

func flatten(t chat.Turn) string {
	if len(t.Parts) == 0 {
		return t.Content
	}
	var sb strings.Builder
	for _, p := range t.Parts {
		if p.Text != "" {
			sb.WriteString(p.Text)
		}
	}
	return sb.String()
}
