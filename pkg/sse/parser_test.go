package sse_test

import (
	"io"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/agentstream/pkg/sse"
)

var _ = Describe("ParseLine", func() {
	It("parses an event envelope", func() {
		msg, ok, err := sse.ParseLine(`data: {"type":"token","data":{"content":"hi"}}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(msg.Done).To(BeFalse())
		Expect(msg.Kind).To(Equal("token"))
		Expect(msg.Payload).To(HaveKeyWithValue("content", "hi"))
	})

	It("recognizes the done sentinel", func() {
		msg, ok, err := sse.ParseLine("data: [DONE]")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(msg.Done).To(BeTrue())
	})

	It("ignores lines without the data prefix", func() {
		for _, line := range []string{": comment", "event: token", "id: 7", "retry: 3000", "data:[DONE]"} {
			_, ok, err := sse.ParseLine(line)
			Expect(err).NotTo(HaveOccurred(), line)
			Expect(ok).To(BeFalse(), line)
		}
	})

	It("uses an empty payload when data is missing or null", func() {
		msg, ok, err := sse.ParseLine(`data: {"type":"message_done"}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(msg.Payload).NotTo(BeNil())
		Expect(msg.Payload).To(BeEmpty())

		msg, _, err = sse.ParseLine(`data: {"type":"message_done","data":null}`)
		Expect(err).NotTo(HaveOccurred())
		Expect(msg.Payload).To(BeEmpty())
	})

	It("fails on malformed JSON", func() {
		_, ok, err := sse.ParseLine(`data: {"type":"token","data":`)
		Expect(ok).To(BeFalse())
		Expect(err).To(MatchError(sse.ErrMalformedEvent))
	})

	It("fails when data is not an object", func() {
		_, _, err := sse.ParseLine(`data: {"type":"token","data":"hello"}`)
		Expect(err).To(MatchError(sse.ErrMalformedEvent))
	})
})

var _ = Describe("Decoder", func() {
	It("skips blank and ignored lines", func() {
		d := sse.NewDecoder(strings.NewReader("\n: ping\n  \ndata: {\"type\":\"token\",\"data\":{}}\n\ndata: [DONE]\n"))

		msg, err := d.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(msg.Kind).To(Equal("token"))

		msg, err = d.Next()
		Expect(err).NotTo(HaveOccurred())
		Expect(msg.Done).To(BeTrue())

		_, err = d.Next()
		Expect(err).To(MatchError(io.EOF))
	})

	It("stops at the first malformed line", func() {
		d := sse.NewDecoder(strings.NewReader("data: {oops}\ndata: [DONE]\n"))
		_, err := d.Next()
		Expect(err).To(MatchError(sse.ErrMalformedEvent))
	})
})
