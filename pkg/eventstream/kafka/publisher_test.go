package kafka_test

import (
	"context"
	"encoding/json"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/devlens/gateway/pkg/eventstream"
	"github.com/devlens/gateway/pkg/eventstream/kafka"
)

var _ eventstream.Publisher = (*kafka.Publisher)(nil)

var _ = Describe("Publisher", func() {
	It("requires brokers and a topic", func() {
		_, err := kafka.NewPublisher(kafka.Config{Topic: "relay"})
		Expect(err).To(MatchError(ContainSubstring("brokers")))

		_, err = kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}})
		Expect(err).To(MatchError(ContainSubstring("topic")))
	})

	It("creates a writer without connecting", func() {
		p, err := kafka.NewPublisher(kafka.Config{Brokers: []string{"localhost:9092"}, Topic: "relay"})
		Expect(err).NotTo(HaveOccurred())
		Expect(p.Close()).To(Succeed())
	})

	It("writes one JSON message keyed by trace id", func() {
		var written []kafkago.Message
		p, closed := kafka.NewTestPublisher(func(_ context.Context, msgs ...kafkago.Message) error {
			written = append(written, msgs...)
			return nil
		})

		event := eventstream.NewRelayCompletedEvent("trace-9", eventstream.RequestMeta{Method: "GET", Path: "/api/v1/repos"}, eventstream.OutcomeCompleted)
		Expect(p.PublishRelay(context.Background(), event)).To(Succeed())

		Expect(written).To(HaveLen(1))
		Expect(string(written[0].Key)).To(Equal("trace-9"))
		Expect(written[0].Headers).To(ContainElement(kafkago.Header{Key: "event_type", Value: []byte(eventstream.EventTypeRelayCompleted)}))

		var decoded eventstream.RelayCompletedEvent
		Expect(json.Unmarshal(written[0].Value, &decoded)).To(Succeed())
		Expect(decoded.EventID).To(Equal(event.EventID))
		Expect(decoded.Request.Path).To(Equal("/api/v1/repos"))

		Expect(p.Close()).To(Succeed())
		Expect(closed()).To(BeTrue())
	})

	It("rejects nil events", func() {
		p, _ := kafka.NewTestPublisher(func(context.Context, ...kafkago.Message) error { return nil })
		Expect(p.PublishRelay(context.Background(), nil)).To(MatchError(eventstream.ErrNilRelayEvent))
	})

	It("wraps writer failures", func() {
		p, _ := kafka.NewTestPublisher(func(context.Context, ...kafkago.Message) error {
			return errors.New("leader not available")
		})
		err := p.PublishRelay(context.Background(), eventstream.NewRelayCompletedEvent("t", eventstream.RequestMeta{}, eventstream.OutcomeCompleted))
		Expect(err).To(MatchError(ContainSubstring("leader not available")))
	})
})
