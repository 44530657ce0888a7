package eventstream_test

import (
	"encoding/json"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/devlens/gateway/pkg/eventstream"
)

var _ = Describe("Event", func() {
	It("marshals RelayCompletedEvent with expected top-level keys", func() {
		now := time.Unix(1735689600, 0).UTC()
		event := eventstream.NewRelayCompletedEvent("trace-1", eventstream.RequestMeta{
			Method:      "GET",
			Path:        "/api/v1/repos/abc123/status",
			StartedAt:   now.Add(-2 * time.Second),
			CompletedAt: now,
			DurationMs:  2000,
			HTTPStatus:  200,
			BytesOut:    512,
		}, eventstream.OutcomeCompleted)
		event.Stream = &eventstream.StreamMeta{Frames: 2, FirstFrameMs: 15}

		payload, err := json.Marshal(event)
		Expect(err).NotTo(HaveOccurred())

		var got map[string]any
		Expect(json.Unmarshal(payload, &got)).To(Succeed())

		Expect(got).To(HaveKeyWithValue("schema_version", BeNumerically("==", 1)))
		Expect(got).To(HaveKeyWithValue("event_type", "devlens.gateway.relay.completed"))
		Expect(got).To(HaveKeyWithValue("trace_id", "trace-1"))
		Expect(got).To(HaveKeyWithValue("outcome", "completed"))
		Expect(got).To(HaveKey("event_id"))
		Expect(got).To(HaveKey("emitted_at"))
		Expect(got["request"]).To(HaveKeyWithValue("path", "/api/v1/repos/abc123/status"))
		Expect(got["stream"]).To(HaveKeyWithValue("frames", BeNumerically("==", 2)))
	})

	It("omits stream metadata for plain responses", func() {
		payload, err := json.Marshal(eventstream.NewRelayCompletedEvent("t", eventstream.RequestMeta{}, eventstream.OutcomeCompleted))
		Expect(err).NotTo(HaveOccurred())
		Expect(string(payload)).NotTo(ContainSubstring(`"stream"`))
	})

	It("assigns unique event ids", func() {
		a := eventstream.NewRelayCompletedEvent("t", eventstream.RequestMeta{}, eventstream.OutcomeCompleted)
		b := eventstream.NewRelayCompletedEvent("t", eventstream.RequestMeta{}, eventstream.OutcomeCompleted)
		Expect(a.EventID).NotTo(Equal(b.EventID))
	})

	It("provides ErrNilRelayEvent for nil payload validation", func() {
		Expect(eventstream.ErrNilRelayEvent).To(MatchError("nil relay event"))
	})
})
