package stream_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/agentstream/pkg/backoff"
	"github.com/papercomputeco/agentstream/pkg/dispatch"
	"github.com/papercomputeco/agentstream/pkg/header"
	"github.com/papercomputeco/agentstream/pkg/logger"
	"github.com/papercomputeco/agentstream/pkg/stream"
)

var fastPolicy = backoff.Policy{BaseDelay: 5 * time.Millisecond, MaxAttempts: 3}

var _ = Describe("New", func() {
	It("requires an absolute http(s) base URL", func() {
		for _, base := range []string{"", "localhost:8000", "ftp://example.com", "http://"} {
			_, err := stream.New(stream.Config{BaseURL: base}, logger.Nop())
			Expect(err).To(HaveOccurred(), base)
		}
	})

	It("accepts a base URL with a path prefix", func() {
		c, err := stream.New(stream.Config{BaseURL: "https://example.com/api/"}, nil)
		Expect(err).NotTo(HaveOccurred())
		Expect(c.Close()).To(Succeed())
	})
})

var _ = Describe("Subscription", func() {
	var (
		be  *backend
		c   *stream.Client
		rec *recorder
		trs *transitions
	)

	BeforeEach(func() {
		rec = &recorder{}
		trs = &transitions{}
	})

	AfterEach(func() {
		if c != nil {
			Expect(c.Close()).To(Succeed())
			c = nil
		}
		if be != nil {
			be.Close()
			be = nil
		}
	})

	Context("with a healthy backend", func() {
		BeforeEach(func() {
			be = newBackend(func(_ int, w http.ResponseWriter, _ *http.Request) {
				writeLines(w,
					token("Hel"),
					"",
					`data: {"type":"unknown_kind","data":{}}`,
					": keep-alive",
					token("lo"),
					`data: {"type":"pipeline_progress","data":{"step":"x","label":"L","status":"running","detail":"d","current":3,"total":10,"step_index":1,"total_steps":4,"overall_pct":42}}`,
					`data: {"type":"message_done","data":{}}`,
					doneLine,
					token("after done"),
				)
			})
			c = newClient(be.URL, fastPolicy)
		})

		It("dispatches events in order and stops at the sentinel", func() {
			sub, err := c.Subscribe(context.Background(), "session-1", rec.handlers(), stream.WithStateObserver(trs.observe))
			Expect(err).NotTo(HaveOccurred())

			Eventually(sub.Done()).Should(BeClosed())
			Expect(sub.Reason()).To(Equal(stream.ReasonDone))
			Expect(rec.Calls()).To(Equal([]string{
				"token:Hel",
				"token:lo",
				"progress:42",
				"message_done",
				"done",
			}))
			Expect(trs.states()).To(Equal([]stream.State{
				stream.StateConnecting,
				stream.StateStreaming,
				stream.StateClosed,
			}))
		})

		It("does not reconnect after the sentinel", func() {
			sub, err := c.Subscribe(context.Background(), "session-1", rec.handlers())
			Expect(err).NotTo(HaveOccurred())
			Expect(sub.Wait()).To(Equal(stream.ReasonDone))

			Consistently(be.Requests, 50*time.Millisecond).Should(Equal(1))
		})

		It("requests the session stream as an event stream with the development identity", func() {
			sub, err := c.Subscribe(context.Background(), "session/1", rec.handlers())
			Expect(err).NotTo(HaveOccurred())
			sub.Wait()

			Expect(be.Path(0)).To(Equal("/agent/stream/session%2F1"))
			Expect(be.Header(0).Get("Accept")).To(Equal("text/event-stream"))
			Expect(be.Header(0).Get(header.CurrentUserHeader)).To(Equal(header.DevelopmentUser))
			Expect(sub.Session().SubscriptionID).NotTo(BeEmpty())
		})

		It("sends an explicit user instead of the development identity", func() {
			sub, err := c.Subscribe(context.Background(), "s", rec.handlers(), stream.WithUser("alice"))
			Expect(err).NotTo(HaveOccurred())
			sub.Wait()

			Expect(be.Header(0).Get(header.CurrentUserHeader)).To(Equal("alice"))
		})

		It("omits the identity header in production without a user", func() {
			Expect(c.Close()).To(Succeed())
			var err error
			c, err = stream.New(stream.Config{BaseURL: be.URL, Environment: header.EnvProduction, Policy: fastPolicy}, logger.Nop())
			Expect(err).NotTo(HaveOccurred())

			sub, err := c.Subscribe(context.Background(), "s", rec.handlers())
			Expect(err).NotTo(HaveOccurred())
			sub.Wait()

			Expect(be.Header(0).Values(header.CurrentUserHeader)).To(BeEmpty())
		})

		It("mirrors raw bytes to the tee writer", func() {
			var raw bytes.Buffer
			sub, err := c.Subscribe(context.Background(), "s", dispatch.Handlers{}, stream.WithRawTee(&raw))
			Expect(err).NotTo(HaveOccurred())
			sub.Wait()

			Expect(raw.String()).To(ContainSubstring(doneLine + "\n"))
		})
	})

	Context("when the backend keeps failing", func() {
		BeforeEach(func() {
			be = newBackend(func(_ int, w http.ResponseWriter, _ *http.Request) {
				http.Error(w, "unavailable", http.StatusServiceUnavailable)
			})
			c = newClient(be.URL, fastPolicy)
		})

		It("reports MAX_RETRIES exactly once and stops connecting", func() {
			sub, err := c.Subscribe(context.Background(), "s", rec.handlers(), stream.WithStateObserver(trs.observe))
			Expect(err).NotTo(HaveOccurred())

			Expect(sub.Wait()).To(Equal(stream.ReasonFatal))
			Expect(rec.Calls()).To(Equal([]string{"error:MAX_RETRIES:Maximum reconnection attempts reached"}))
			Expect(be.Requests()).To(Equal(fastPolicy.MaxAttempts + 1))
			Consistently(be.Requests, 50*time.Millisecond).Should(Equal(fastPolicy.MaxAttempts + 1))

			Expect(trs.delays()).To(Equal([]time.Duration{
				5 * time.Millisecond,
				10 * time.Millisecond,
				20 * time.Millisecond,
			}))
		})

		It("passes through reconnecting before closing as fatal", func() {
			sub, err := c.Subscribe(context.Background(), "s", rec.handlers(), stream.WithStateObserver(trs.observe))
			Expect(err).NotTo(HaveOccurred())
			Expect(sub.Wait()).To(Equal(stream.ReasonFatal))

			all := trs.list()
			Expect(len(all)).To(BeNumerically(">=", 2))
			last, closed := all[len(all)-2], all[len(all)-1]

			Expect(last.From).To(Equal(stream.StateConnecting))
			Expect(last.To).To(Equal(stream.StateReconnecting))
			Expect(last.Final).To(BeTrue())
			Expect(last.Delay).To(BeZero())
			Expect(last.Err).To(MatchError(stream.ErrUnexpectedStatus))

			Expect(closed.From).To(Equal(stream.StateReconnecting))
			Expect(closed.To).To(Equal(stream.StateClosed))
			Expect(closed.Reason).To(Equal(stream.ReasonFatal))
		})

		It("never fires a pending reconnect timer after cancel", func() {
			Expect(c.Close()).To(Succeed())
			c = newClient(be.URL, backoff.Policy{BaseDelay: time.Hour, MaxAttempts: 3})

			sub, err := c.Subscribe(context.Background(), "s", rec.handlers(), stream.WithStateObserver(trs.observe))
			Expect(err).NotTo(HaveOccurred())

			Eventually(trs.delays).Should(HaveLen(1))
			sub.Cancel()

			Eventually(sub.Done()).Should(BeClosed())
			Expect(sub.Reason()).To(Equal(stream.ReasonCancelled))
			Expect(be.Requests()).To(Equal(1))
			Expect(rec.Calls()).To(BeEmpty())
		})
	})

	Context("when a data line is malformed", func() {
		BeforeEach(func() {
			be = newBackend(func(n int, w http.ResponseWriter, _ *http.Request) {
				if n == 1 {
					writeLines(w, token("a"), `data: {"type":"token","data":`, token("never"))
					return
				}
				writeLines(w, token("b"), doneLine)
			})
			c = newClient(be.URL, fastPolicy)
		})

		It("ends the attempt and reconnects through the retry path", func() {
			sub, err := c.Subscribe(context.Background(), "s", rec.handlers(), stream.WithStateObserver(trs.observe))
			Expect(err).NotTo(HaveOccurred())

			Expect(sub.Wait()).To(Equal(stream.ReasonDone))
			Expect(rec.Calls()).To(Equal([]string{"token:a", "token:b", "done"}))
			Expect(be.Requests()).To(Equal(2))
		})
	})

	Context("when a healthy period separates two failures", func() {
		BeforeEach(func() {
			be = newBackend(func(n int, w http.ResponseWriter, _ *http.Request) {
				switch n {
				case 1:
					http.Error(w, "boom", http.StatusInternalServerError)
				case 2:
					// Streams, then ends without the sentinel.
					writeLines(w, token("partial"))
				default:
					writeLines(w, doneLine)
				}
			})
			c = newClient(be.URL, fastPolicy)
		})

		It("uses the first-retry delay both times", func() {
			sub, err := c.Subscribe(context.Background(), "s", rec.handlers(), stream.WithStateObserver(trs.observe))
			Expect(err).NotTo(HaveOccurred())

			Expect(sub.Wait()).To(Equal(stream.ReasonDone))
			Expect(trs.delays()).To(Equal([]time.Duration{fastPolicy.BaseDelay, fastPolicy.BaseDelay}))
			Expect(be.Requests()).To(Equal(3))
		})
	})

	Context("when the stream ends without the sentinel and an unterminated fragment", func() {
		BeforeEach(func() {
			be = newBackend(func(n int, w http.ResponseWriter, _ *http.Request) {
				if n == 1 {
					writeLines(w, token("one"))
					_, _ = w.Write([]byte(token("fragment")))
					return
				}
				writeLines(w, doneLine)
			})
			c = newClient(be.URL, fastPolicy)
		})

		It("drops the fragment and reconnects", func() {
			sub, err := c.Subscribe(context.Background(), "s", rec.handlers())
			Expect(err).NotTo(HaveOccurred())

			Expect(sub.Wait()).To(Equal(stream.ReasonDone))
			Expect(rec.Calls()).To(Equal([]string{"token:one", "done"}))
		})
	})

	Context("when the backend has not sent any bytes yet", func() {
		BeforeEach(func() {
			be = newBackend(func(_ int, w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/event-stream")
				w.WriteHeader(http.StatusOK)
				w.(http.Flusher).Flush()
				<-r.Context().Done()
			})
			c = newClient(be.URL, fastPolicy)
		})

		It("cancels immediately with no handler invocations", func() {
			sub, err := c.Subscribe(context.Background(), "s", rec.handlers(), stream.WithStateObserver(trs.observe))
			Expect(err).NotTo(HaveOccurred())

			Eventually(be.Requests).Should(Equal(1))
			sub.Cancel()
			sub.Cancel()

			Eventually(sub.Done()).Should(BeClosed())
			Expect(sub.Reason()).To(Equal(stream.ReasonCancelled))
			Expect(rec.Calls()).To(BeEmpty())
			Expect(trs.delays()).To(BeEmpty())
			Consistently(be.Requests, 50*time.Millisecond).Should(Equal(1))
		})

		It("treats a cancelled parent context as cancellation", func() {
			ctx, cancel := context.WithCancel(context.Background())
			sub, err := c.Subscribe(ctx, "s", rec.handlers())
			Expect(err).NotTo(HaveOccurred())

			Eventually(be.Requests).Should(Equal(1))
			cancel()

			Expect(sub.Wait()).To(Equal(stream.ReasonCancelled))
			Expect(rec.Calls()).To(BeEmpty())
		})

		It("cancels every subscription on Close", func() {
			sub, err := c.Subscribe(context.Background(), "s", rec.handlers())
			Expect(err).NotTo(HaveOccurred())
			Eventually(be.Requests).Should(Equal(1))

			Expect(c.Close()).To(Succeed())
			Expect(sub.Reason()).To(Equal(stream.ReasonCancelled))
			Expect(c.Active()).To(Equal(0))

			_, err = c.Subscribe(context.Background(), "s", rec.handlers())
			Expect(err).To(MatchError(stream.ErrClientClosed))
			c = nil
		})
	})

	Context("when the disposer is called before subscribing starts", func() {
		BeforeEach(func() {
			be = newBackend(func(_ int, w http.ResponseWriter, _ *http.Request) {
				writeLines(w, token("x"), doneLine)
			})
			c = newClient(be.URL, fastPolicy)
		})

		It("makes no request when the parent context is already cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()

			sub, err := c.Subscribe(ctx, "s", rec.handlers())
			Expect(err).NotTo(HaveOccurred())

			Expect(sub.Wait()).To(Equal(stream.ReasonCancelled))
			Expect(rec.Calls()).To(BeEmpty())
			Expect(be.Requests()).To(Equal(0))
		})
	})

	Context("when a handler cancels mid-stream", func() {
		BeforeEach(func() {
			be = newBackend(func(_ int, w http.ResponseWriter, _ *http.Request) {
				writeLines(w, token("first"), token("second"), doneLine)
			})
			c = newClient(be.URL, fastPolicy)
		})

		It("invokes no handler after the disposer", func() {
			var sub *stream.Subscription
			started := make(chan struct{})
			h := rec.handlers()
			onToken := h.OnToken
			h.OnToken = func(text string) {
				onToken(text)
				<-started
				sub.Cancel()
			}

			var err error
			sub, err = c.Subscribe(context.Background(), "s", h)
			Expect(err).NotTo(HaveOccurred())
			close(started)

			Expect(sub.Wait()).To(Equal(stream.ReasonCancelled))
			Expect(rec.Calls()).To(Equal([]string{"token:first"}))
		})
	})

	Context("when cancelled from another goroutine mid-stream", func() {
		BeforeEach(func() {
			be = newBackend(func(_ int, w http.ResponseWriter, r *http.Request) {
				writeLines(w)
				flusher := w.(http.Flusher)
				for i := 0; r.Context().Err() == nil; i++ {
					fmt.Fprint(w, token(fmt.Sprint(i))+"\n")
					flusher.Flush()
					time.Sleep(time.Millisecond)
				}
			})
			c = newClient(be.URL, fastPolicy)
		})

		It("runs no handler once Done is closed", func() {
			sub, err := c.Subscribe(context.Background(), "s", rec.handlers())
			Expect(err).NotTo(HaveOccurred())

			Eventually(rec.Calls).ShouldNot(BeEmpty())
			sub.Cancel()

			Eventually(sub.Done()).Should(BeClosed())
			Expect(sub.Reason()).To(Equal(stream.ReasonCancelled))

			n := len(rec.Calls())
			Consistently(func() int { return len(rec.Calls()) }, 50*time.Millisecond).Should(Equal(n))
		})
	})

	It("rejects an empty session id", func() {
		var err error
		c, err = stream.New(stream.Config{BaseURL: "http://127.0.0.1:1"}, logger.Nop())
		Expect(err).NotTo(HaveOccurred())

		_, err = c.Subscribe(context.Background(), "", dispatch.Handlers{})
		Expect(err).To(MatchError(stream.ErrEmptySessionID))
	})
})

var _ = Describe("StatusError", func() {
	It("wraps ErrUnexpectedStatus", func() {
		err := &stream.StatusError{StatusCode: 503, Body: "down"}
		Expect(err).To(MatchError(stream.ErrUnexpectedStatus))
		Expect(err.Error()).To(ContainSubstring("503"))
		Expect(strings.Contains(err.Error(), "down")).To(BeTrue())
	})
})
