package nop_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/devlens/gateway/pkg/eventstream"
	"github.com/devlens/gateway/pkg/eventstream/nop"
)

var _ eventstream.Publisher = (*nop.Publisher)(nil)

var _ = Describe("Publisher", func() {
	It("returns ErrNilRelayEvent for nil events", func() {
		err := nop.NewPublisher().PublishRelay(context.Background(), nil)
		Expect(err).To(MatchError(eventstream.ErrNilRelayEvent))
	})

	It("succeeds for non-nil events", func() {
		err := nop.NewPublisher().PublishRelay(context.Background(), &eventstream.RelayCompletedEvent{})
		Expect(err).NotTo(HaveOccurred())
	})

	It("closes successfully", func() {
		Expect(nop.NewPublisher().Close()).To(Succeed())
	})
})
