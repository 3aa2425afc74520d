package dotdir_test

import (
	"os"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/agentstream/pkg/dotdir"
)

var _ = Describe("dotdir.Manager session state", func() {
	var (
		tmpDir string
		m      *dotdir.Manager
	)

	BeforeEach(func() {
		tmpDir = GinkgoT().TempDir()
		m = dotdir.NewManager()
	})

	It("returns nil when nothing was watched", func() {
		state, err := m.LoadSessionState(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(BeNil())
	})

	It("round-trips the last watched session", func() {
		watched := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		err := m.SaveSessionState(&dotdir.SessionState{
			SessionID: "abc",
			BaseURL:   "http://localhost:8000",
			WatchedAt: watched,
		}, tmpDir)
		Expect(err).NotTo(HaveOccurred())

		state, err := m.LoadSessionState(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state.SessionID).To(Equal("abc"))
		Expect(state.BaseURL).To(Equal("http://localhost:8000"))
		Expect(state.WatchedAt.Equal(watched)).To(BeTrue())
	})

	It("rejects nil state", func() {
		Expect(m.SaveSessionState(nil, tmpDir)).To(HaveOccurred())
	})

	It("rejects invalid JSON and a missing session id", func() {
		path := filepath.Join(tmpDir, "session.json")

		Expect(os.WriteFile(path, []byte("not json"), 0o600)).To(Succeed())
		_, err := m.LoadSessionState(tmpDir)
		Expect(err).To(HaveOccurred())

		Expect(os.WriteFile(path, []byte(`{"base_url":"x"}`), 0o600)).To(Succeed())
		_, err = m.LoadSessionState(tmpDir)
		Expect(err).To(MatchError(ContainSubstring("no session id")))
	})

	It("clears state and tolerates clearing twice", func() {
		Expect(m.SaveSessionState(&dotdir.SessionState{SessionID: "abc"}, tmpDir)).To(Succeed())

		Expect(m.ClearSessionState(tmpDir)).To(Succeed())
		Expect(m.ClearSessionState(tmpDir)).To(Succeed())

		state, err := m.LoadSessionState(tmpDir)
		Expect(err).NotTo(HaveOccurred())
		Expect(state).To(BeNil())
	})
})
