package sse

import (
	"math/rand/v2"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

const jobStream = "event: progress\ndata: {\"stage\":\"clone\",\"progress\":10}\n\n" +
	": keep-alive\n\n" +
	"event: progress\ndata: {\"stage\":\"parsing\",\"progress\":35}\n\n" +
	"event: delta\r\ndata: {\"token\":\"Relevant \"}\r\n\r\n" +
	"event: done\ndata: {\"stage\":\"complete\",\"progress\":100}\n\n"

// feedAll feeds every chunk to a fresh parser and collects the frames.
func feedAll(chunks [][]byte, opts ...ParserOption) []Frame {
	p := NewParser(opts...)
	var out []Frame
	for _, c := range chunks {
		out = append(out, p.Feed(c)...)
	}
	return out
}

// randomSplit cuts b into pieces at random offsets.
func randomSplit(r *rand.Rand, b []byte) [][]byte {
	var chunks [][]byte
	for len(b) > 0 {
		n := 1 + r.IntN(len(b))
		if n > 7 {
			n = 1 + r.IntN(7)
		}
		chunks = append(chunks, b[:n])
		b = b[n:]
	}
	return chunks
}

var _ = Describe("Parser", func() {
	Describe("Feed", func() {
		It("emits a frame once its delimiter arrives", func() {
			p := NewParser()

			Expect(p.Feed([]byte("event: progress\ndata: {\"progress\":10}\n"))).To(BeEmpty())
			Expect(p.Buffered()).To(BeNumerically(">", 0))

			frames := p.Feed([]byte("\n"))
			Expect(frames).To(Equal([]Frame{{Event: "progress", Data: "{\"progress\":10}"}}))
			Expect(p.Buffered()).To(BeZero())
		})

		It("parses the whole job stream in order", func() {
			frames := feedAll([][]byte{[]byte(jobStream)})
			Expect(frames).To(HaveLen(4))
			Expect(frames[0].Event).To(Equal("progress"))
			Expect(frames[0].Data).To(Equal(`{"stage":"clone","progress":10}`))
			Expect(frames[2].Event).To(Equal("delta"))
			Expect(frames[2].Data).To(Equal(`{"token":"Relevant "}`))
			Expect(frames[3].Event).To(Equal("done"))
		})

		It("uses the last event name of a record", func() {
			frames := feedAll([][]byte{[]byte("event: progress\nevent: done\ndata: {}\n\n")})
			Expect(frames).To(Equal([]Frame{{Event: "done", Data: "{}"}}))
		})

		It("joins data lines in order", func() {
			frames := feedAll([][]byte{[]byte("event: note\ndata: one\ndata:two\ndata: three\n\n")})
			Expect(frames).To(HaveLen(1))
			Expect(frames[0].Data).To(Equal("one\ntwo\nthree"))
		})

		It("keeps the id field", func() {
			frames := feedAll([][]byte{[]byte("id: 7\nevent: progress\ndata: {}\n\n")})
			Expect(frames).To(HaveLen(1))
			Expect(frames[0].ID).To(Equal("7"))
		})

		It("ignores unknown fields and comments", func() {
			frames := feedAll([][]byte{[]byte("retry: 3000\n: comment\nfoo: bar\nevent: progress\ndata: x\n\n")})
			Expect(frames).To(Equal([]Frame{{Event: "progress", Data: "x"}}))
		})

		It("does not emit a trailing record without its delimiter", func() {
			p := NewParser()
			Expect(p.Feed([]byte("event: done\ndata: {}\n"))).To(BeEmpty())
			Expect(p.Feed(nil)).To(BeEmpty())
		})
	})

	Describe("malformed records", func() {
		It("drops a record missing both event and data without corrupting the next one", func() {
			input := "id: 1\nretry: 10\n\nevent: progress\ndata: ok\n\n"
			frames := feedAll([][]byte{[]byte(input)})
			Expect(frames).To(Equal([]Frame{{Event: "progress", Data: "ok"}}))
		})

		It("drops a record without an event name", func() {
			frames := feedAll([][]byte{[]byte("data: orphan\n\nevent: done\ndata: {}\n\n")})
			Expect(frames).To(Equal([]Frame{{Event: "done", Data: "{}"}}))
		})

		It("drops a record without data", func() {
			frames := feedAll([][]byte{[]byte("event: progress\n\nevent: done\ndata: {}\n\n")})
			Expect(frames).To(Equal([]Frame{{Event: "done", Data: "{}"}}))
		})

		It("skips blank lines between records", func() {
			frames := feedAll([][]byte{[]byte("\n\n\nevent: done\ndata: {}\n\n\n")})
			Expect(frames).To(HaveLen(1))
		})
	})

	Describe("resumability", func() {
		var want []Frame

		BeforeEach(func() {
			want = feedAll([][]byte{[]byte(jobStream)})
			Expect(want).To(HaveLen(4))
		})

		It("yields the same frames for every two-way split", func() {
			b := []byte(jobStream)
			for i := 0; i <= len(b); i++ {
				got := feedAll([][]byte{b[:i], b[i:]})
				Expect(got).To(Equal(want), "split at %d", i)
			}
		})

		It("yields the same frames when fed byte by byte", func() {
			b := []byte(jobStream)
			chunks := make([][]byte, 0, len(b))
			for i := range b {
				chunks = append(chunks, b[i:i+1])
			}
			Expect(feedAll(chunks)).To(Equal(want))
		})

		It("yields the same frames for random splits", func() {
			r := rand.New(rand.NewPCG(1, 2))
			for range 200 {
				Expect(feedAll(randomSplit(r, []byte(jobStream)))).To(Equal(want))
			}
		})
	})

	Describe("WithMaxRecordSize", func() {
		It("discards an oversized record and resumes at the next one", func() {
			big := "event: progress\ndata: " + strings.Repeat("x", 256) + "\n\n"
			input := []byte(big + "event: done\ndata: {}\n\n")

			frames := feedAll([][]byte{input}, WithMaxRecordSize(64))
			Expect(frames).To(Equal([]Frame{{Event: "done", Data: "{}"}}))
		})

		It("bounds the buffer while an oversized line is still arriving", func() {
			p := NewParser(WithMaxRecordSize(64))
			p.Feed([]byte("event: progress\ndata: "))
			for range 100 {
				p.Feed([]byte(strings.Repeat("y", 128)))
				Expect(p.Buffered()).To(BeNumerically("<=", 64))
			}
			frames := p.Feed([]byte("\n\nevent: done\ndata: {}\n\n"))
			Expect(frames).To(Equal([]Frame{{Event: "done", Data: "{}"}}))
		})

		It("is resumable across splits while discarding", func() {
			big := "event: progress\ndata: " + strings.Repeat("z", 100) + "\r\n\r\n"
			input := []byte(big + "event: done\ndata: {}\n\n")
			want := []Frame{{Event: "done", Data: "{}"}}
			for i := 0; i <= len(input); i++ {
				Expect(feedAll([][]byte{input[:i], input[i:]}, WithMaxRecordSize(32))).To(Equal(want), "split at %d", i)
			}
		})
	})
})
