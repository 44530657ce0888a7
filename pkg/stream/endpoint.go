package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Class is the role a frame plays in the subscription lifecycle.
type Class int

const (
	// ClassOther frames are forwarded without a state change.
	ClassOther Class = iota

	// ClassProgress frames prove the link is healthy and reset the attempt
	// counter.
	ClassProgress

	// ClassTerminal frames finish the subscription.
	ClassTerminal

	// ClassError frames are reported and trigger a reconnect.
	ClassError
)

func (c Class) String() string {
	switch c {
	case ClassProgress:
		return "progress"
	case ClassTerminal:
		return "terminal"
	case ClassError:
		return "error"
	default:
		return "other"
	}
}

// Classifier maps event names to classes. Unlisted events are ClassOther.
type Classifier map[string]Class

// Classify returns the class of event.
func (c Classifier) Classify(event string) Class {
	if class, ok := c[event]; ok {
		return class
	}
	return ClassOther
}

const resourcePlaceholder = "{id}"

// Endpoint describes a streamed resource on the backend API.
type Endpoint struct {
	// Name identifies the endpoint in logs.
	Name string

	// Method defaults to GET.
	Method string

	// Path is joined to the client base URL. Every "{id}" is replaced with
	// the path-escaped resource id.
	Path string

	// Query is appended to every request.
	Query url.Values

	// Body is sent as JSON on every connection attempt, if set.
	Body []byte

	Classifier Classifier
}

// RepoStatusEndpoint streams analysis job progress for a repository.
var RepoStatusEndpoint = Endpoint{
	Name:   "repo_status",
	Method: http.MethodGet,
	Path:   "/api/v1/repos/{id}/status",
	Classifier: Classifier{
		"progress": ClassProgress,
		"done":     ClassTerminal,
		"error":    ClassError,
	},
}

// ChatMessageEndpoint sends content to a chat session and streams the answer.
// A topK of zero or less uses the backend default.
func ChatMessageEndpoint(content string, topK int) (Endpoint, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return Endpoint{}, errors.New("message content must not be empty")
	}

	payload := struct {
		Content string `json:"content"`
		TopK    int    `json:"top_k,omitempty"`
	}{Content: content, TopK: topK}

	body, err := json.Marshal(payload)
	if err != nil {
		return Endpoint{}, fmt.Errorf("encoding chat message: %w", err)
	}

	return Endpoint{
		Name:   "chat_message",
		Method: http.MethodPost,
		Path:   "/api/v1/chat/sessions/{id}/message",
		Body:   body,
		Classifier: Classifier{
			"delta": ClassProgress,
			"done":  ClassTerminal,
			"error": ClassError,
		},
	}, nil
}

// WithQuery returns a copy of e with key set to value in its query.
func (e Endpoint) WithQuery(key, value string) Endpoint {
	q := url.Values{}
	for k, v := range e.Query {
		q[k] = append([]string(nil), v...)
	}
	q.Set(key, value)
	e.Query = q
	return e
}

func (e Endpoint) method() string {
	if e.Method == "" {
		return http.MethodGet
	}
	return e.Method
}

// resolve builds the request URL for resourceID against base.
func (e Endpoint) resolve(base *url.URL, resourceID string) string {
	rawPath := strings.TrimSuffix(base.EscapedPath(), "/") +
		strings.ReplaceAll(e.Path, resourcePlaceholder, url.PathEscape(resourceID))

	u := *base
	u.RawPath = rawPath
	u.Path = strings.TrimSuffix(base.Path, "/") + strings.ReplaceAll(e.Path, resourcePlaceholder, resourceID)
	if len(e.Query) > 0 {
		u.RawQuery = e.Query.Encode()
	}
	return u.String()
}
