package circuitbreaker_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/governor/internal/circuitbreaker"
)

var _ = Describe("Registry", func() {
	var registry *circuitbreaker.Registry

	BeforeEach(func() {
		registry = circuitbreaker.NewRegistry(
			circuitbreaker.Settings{FailureThreshold: 5, ResetTimeout: 30 * time.Second},
			nil,
		)
	})

	Describe("GetBreaker", func() {
		It("should create a new breaker for an unknown name", func() {
			cb := registry.GetBreaker("llm-bridge")
			Expect(cb).NotTo(BeNil())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})

		It("should return the same breaker for the same name", func() {
			cb1 := registry.GetBreaker("llm-bridge")
			cb2 := registry.GetBreaker("llm-bridge")
			Expect(cb1).To(BeIdenticalTo(cb2))
		})

		It("should return different breakers for different names", func() {
			cb1 := registry.GetBreaker("llm-bridge")
			cb2 := registry.GetBreaker("core-db")
			Expect(cb1).NotTo(BeIdenticalTo(cb2))
		})

		It("should use registry defaults for new breakers", func() {
			registry = circuitbreaker.NewRegistry(
				circuitbreaker.Settings{FailureThreshold: 2, ResetTimeout: 100 * time.Millisecond},
				nil,
			)
			cb := registry.GetBreaker("llm-bridge")

			cb.RecordFailure()
			cb.RecordFailure()
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))

			time.Sleep(120 * time.Millisecond)
			Expect(cb.Allow()).To(BeTrue())
			Expect(cb.State()).To(Equal(circuitbreaker.StateHalfOpen))
		})
	})

	Describe("Named overrides", func() {
		BeforeEach(func() {
			registry = circuitbreaker.NewRegistry(
				circuitbreaker.Settings{FailureThreshold: 5, ResetTimeout: 30 * time.Second},
				map[string]circuitbreaker.Settings{
					"llm-bridge": {FailureThreshold: 3},
				},
			)
		})

		It("should apply the override to the named breaker", func() {
			cb := registry.GetBreaker("llm-bridge")
			cb.RecordFailure()
			cb.RecordFailure()
			cb.RecordFailure()
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
		})

		It("should leave unnamed breakers on the defaults", func() {
			cb := registry.GetBreaker("core-db")
			cb.RecordFailure()
			cb.RecordFailure()
			cb.RecordFailure()
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})
	})

	Describe("Concurrent access", func() {
		It("should handle concurrent GetBreaker calls safely", func() {
			const goroutines = 100
			const callsPerGoroutine = 10

			var wg sync.WaitGroup
			wg.Add(goroutines)

			for i := 0; i < goroutines; i++ {
				go func() {
					defer wg.Done()
					for j := 0; j < callsPerGoroutine; j++ {
						cb := registry.GetBreaker("llm-bridge")
						Expect(cb).NotTo(BeNil())
					}
				}()
			}

			wg.Wait()

			stats := registry.Stats()
			Expect(stats).To(HaveLen(1))
		})

		It("should handle concurrent operations on the same breaker", func() {
			const goroutines = 50

			var wg sync.WaitGroup
			wg.Add(goroutines * 2)

			cb := registry.GetBreaker("llm-bridge")

			for i := 0; i < goroutines; i++ {
				go func() {
					defer wg.Done()
					cb.RecordFailure()
				}()
			}

			for i := 0; i < goroutines; i++ {
				go func() {
					defer wg.Done()
					cb.RecordSuccess()
				}()
			}

			wg.Wait()

			state := cb.State()
			Expect(state).To(BeElementOf(
				circuitbreaker.StateClosed,
				circuitbreaker.StateOpen,
				circuitbreaker.StateHalfOpen,
			))
		})
	})

	Describe("Reset", func() {
		It("should clear all breakers", func() {
			registry.GetBreaker("llm-bridge")
			registry.GetBreaker("core-db")
			registry.GetBreaker("sensor-feed")

			Expect(registry.Stats()).To(HaveLen(3))

			registry.Reset()

			Expect(registry.Stats()).To(HaveLen(0))
		})
	})

	Describe("AllStatus", func() {
		It("should return a snapshot of every breaker", func() {
			registry.GetBreaker("llm-bridge")
			cb := registry.GetBreaker("core-db")

			for i := 0; i < 5; i++ {
				cb.RecordFailure()
			}

			statuses := registry.AllStatus()
			Expect(statuses).To(HaveLen(2))

			byName := make(map[string]circuitbreaker.Status, len(statuses))
			for _, status := range statuses {
				byName[status.Name] = status
			}
			Expect(byName["llm-bridge"].State).To(Equal("CLOSED"))
			Expect(byName["core-db"].State).To(Equal("OPEN"))
		})
	})
})
