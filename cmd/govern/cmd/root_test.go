package cmd

import (
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestGovernCLI(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Govern CLI Suite")
}

var _ = Describe("GetDaemonURL", func() {
	AfterEach(func() {
		daemonURL = ""
	})

	It("should default to localhost", func() {
		Expect(GetDaemonURL()).To(Equal("http://localhost:8090"))
	})

	It("should strip trailing slashes from the flag value", func() {
		daemonURL = "http://governor.internal:8090///"
		Expect(GetDaemonURL()).To(Equal("http://governor.internal:8090"))
	})
})

var _ = Describe("breaker status", func() {
	AfterEach(func() {
		daemonURL = ""
	})

	It("should accept a well-formed status document", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			Expect(r.URL.Path).To(Equal("/status"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"latch":{"engaged":false},"breakers":[{"name":"llm-bridge","state":"CLOSED","failure_count":0,"success_count":4,"last_failure":"0001-01-01T00:00:00Z","time_in_state":1000000000}]}`))
		}))
		defer srv.Close()

		daemonURL = srv.URL
		Expect(runBreakerStatus(breakerStatusCmd, nil)).To(Succeed())
	})

	It("should surface daemon errors", func() {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		daemonURL = srv.URL
		err := runBreakerStatus(breakerStatusCmd, nil)
		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("500"))
	})
})

var _ = Describe("breaker trip-test", func() {
	It("should walk the breaker through every transition", func() {
		Expect(runBreakerTripTest(breakerTripTestCmd, nil)).To(Succeed())
	})
})
