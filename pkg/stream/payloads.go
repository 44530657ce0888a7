package stream

import (
	"encoding/json"
	"fmt"

	"github.com/devlens/gateway/pkg/sse"
)

// Progress is the payload of job "progress" and "done" frames.
type Progress struct {
	JobID      string `json:"job_id,omitempty"`
	Stage      string `json:"stage"`
	Progress   int    `json:"progress"`
	Message    string `json:"message,omitempty"`
	ETASeconds *int   `json:"eta_seconds,omitempty"`
}

// Delta is one streamed token of a chat answer.
type Delta struct {
	Token string `json:"token"`
}

// Citation anchors part of an answer to indexed source code.
type Citation struct {
	ChunkID   string  `json:"chunk_id"`
	FilePath  string  `json:"file_path"`
	LineStart int     `json:"line_start"`
	LineEnd   int     `json:"line_end"`
	Anchor    string  `json:"anchor"`
	Score     float64 `json:"score"`
}

// ChatDone closes a chat answer.
type ChatDone struct {
	MessageID  string     `json:"message_id"`
	Citations  []Citation `json:"citations"`
	NoCitation bool       `json:"no_citation"`
}

// StreamError is the payload of "error" frames.
type StreamError struct {
	JobID    string `json:"job_id,omitempty"`
	RepoID   string `json:"repo_id,omitempty"`
	Stage    string `json:"stage,omitempty"`
	Progress int    `json:"progress,omitempty"`
	Code     string `json:"code,omitempty"`
	Message  string `json:"message,omitempty"`
}

// DecodeProgress decodes a job progress or done frame.
func DecodeProgress(f sse.Frame) (Progress, error) {
	var p Progress
	if err := decode(f, &p); err != nil {
		return Progress{}, err
	}
	if p.Progress < 0 || p.Progress > 100 {
		return Progress{}, fmt.Errorf("decoding %s frame: progress %d out of range", f.Event, p.Progress)
	}
	return p, nil
}

// DecodeDelta decodes a chat delta frame.
func DecodeDelta(f sse.Frame) (Delta, error) {
	var d Delta
	err := decode(f, &d)
	return d, err
}

// DecodeChatDone decodes the final frame of a chat answer.
func DecodeChatDone(f sse.Frame) (ChatDone, error) {
	var d ChatDone
	err := decode(f, &d)
	return d, err
}

// DecodeStreamError decodes an error frame. The payload is optional: an
// undecodable body yields an empty StreamError and no error.
func DecodeStreamError(f sse.Frame) StreamError {
	var e StreamError
	_ = json.Unmarshal([]byte(f.Data), &e)
	return e
}

func decode(f sse.Frame, v any) error {
	if err := json.Unmarshal([]byte(f.Data), v); err != nil {
		return fmt.Errorf("decoding %s frame: %w", f.Event, err)
	}
	return nil
}
