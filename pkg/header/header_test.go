package header

import (
	"net/http"
	"net/http/httptest"

	"github.com/gofiber/fiber/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Identity", func() {
	It("prefers the configured user", func() {
		Expect(Identity("alice", EnvProduction)).To(Equal("alice"))
		Expect(Identity("alice", "development")).To(Equal("alice"))
	})

	It("substitutes the development user outside production", func() {
		Expect(Identity("", "development")).To(Equal(DevelopmentUser))
		Expect(Identity("", "")).To(Equal(DevelopmentUser))
	})

	It("leaves the identity empty in production", func() {
		Expect(Identity("", EnvProduction)).To(BeEmpty())
	})
})

var _ = Describe("SetStreamRequestHeaders", func() {
	It("asks for an event stream and attaches the user", func() {
		req, err := http.NewRequest(http.MethodGet, "http://backend/agent/stream/s1", nil)
		Expect(err).NotTo(HaveOccurred())

		SetStreamRequestHeaders(req, "alice")

		Expect(req.Header.Get("Accept")).To(Equal("text/event-stream"))
		Expect(req.Header.Get(CurrentUserHeader)).To(Equal("alice"))
	})

	It("omits the identity header when there is no user", func() {
		req, err := http.NewRequest(http.MethodGet, "http://backend/agent/stream/s1", nil)
		Expect(err).NotTo(HaveOccurred())

		SetStreamRequestHeaders(req, "")

		Expect(req.Header.Values(CurrentUserHeader)).To(BeEmpty())
	})
})

var _ = Describe("SetStreamResponseHeaders", func() {
	var app *fiber.App

	BeforeEach(func() {
		app = fiber.New()
	})

	AfterEach(func() {
		app.Shutdown()
	})

	It("marks the response as an uncached event stream", func() {
		var user string
		app.Get("/stream", func(c *fiber.Ctx) error {
			user = CurrentUser(c)
			SetStreamResponseHeaders(c)
			return c.SendString("data: [DONE]\n")
		})

		req := httptest.NewRequest(http.MethodGet, "/stream", nil)
		req.Header.Set(CurrentUserHeader, "bob")
		resp, err := app.Test(req, -1)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()

		Expect(user).To(Equal("bob"))
		Expect(resp.Header.Get("Content-Type")).To(Equal("text/event-stream"))
		Expect(resp.Header.Get("Cache-Control")).To(Equal("no-cache"))
		Expect(resp.Header.Get("X-Accel-Buffering")).To(Equal("no"))
	})
})
