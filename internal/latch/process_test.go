package latch_test

import (
	"log/slog"
	"os"
	"os/exec"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/angeloszaimis/governor/internal/latch"
)

var _ = Describe("OSProcessManager", func() {
	var pm *latch.OSProcessManager

	BeforeEach(func() {
		pm = latch.NewOSProcessManager(slog.New(slog.NewTextHandler(GinkgoWriter, nil)))
	})

	Describe("IsAlive", func() {
		It("should report the current process as alive", func() {
			Expect(pm.IsAlive(os.Getpid())).To(BeTrue())
		})
	})

	Describe("Terminate", func() {
		It("should terminate a child process", func() {
			cmd := exec.Command("sleep", "60")
			Expect(cmd.Start()).To(Succeed())
			pid := cmd.Process.Pid

			// Reap the child as soon as it exits so the liveness
			// probe sees it gone rather than a zombie.
			done := make(chan struct{})
			go func() {
				_ = cmd.Wait()
				close(done)
			}()

			Expect(pm.Terminate(pid)).To(Succeed())
			Eventually(done).Should(BeClosed())
			Expect(pm.IsAlive(pid)).To(BeFalse())
		})

		It("should not error for an already-dead process", func() {
			cmd := exec.Command("true")
			Expect(cmd.Run()).To(Succeed())

			Expect(pm.Terminate(cmd.Process.Pid)).To(Succeed())
		})
	})

	Describe("TerminateByName", func() {
		It("should not error when nothing matches", func() {
			Expect(pm.TerminateByName("governor-no-such-service")).To(Succeed())
		})
	})
})
