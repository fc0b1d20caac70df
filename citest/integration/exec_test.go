package integration_test

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/codeforge-ai/codeforge/internal/cmderr"
	"github.com/codeforge-ai/codeforge/internal/event"
	"github.com/codeforge-ai/codeforge/internal/permission"
	"github.com/codeforge-ai/codeforge/internal/retry"
	"github.com/codeforge-ai/codeforge/internal/shell"
	"github.com/codeforge-ai/codeforge/internal/tool"
)

var _ = Describe("Command Execution", func() {
	var s *stack

	AfterEach(func() {
		if s != nil {
			s.teardown()
			s = nil
		}
	})

	Describe("Allowed commands", func() {
		BeforeEach(func() {
			s = newStack(allowAll)
		})

		It("should run a command and capture its output", func() {
			res, err := s.run("bash", tool.BashInput{
				Command:     "echo hello integration",
				Description: "greet",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Error).To(BeNil())
			Expect(res.Output).To(ContainSubstring("hello integration"))
			Expect(res.Output).NotTo(ContainSubstring("<bash_error>"))
			Expect(res.Metadata["success"]).To(BeTrue())
			Expect(res.Metadata["exit"]).To(Equal(0))
		})

		It("should capture stderr alongside stdout", func() {
			res, err := s.run("bash", tool.BashInput{
				Command:     "echo to-out; echo to-err 1>&2",
				Description: "both streams",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Error).To(BeNil())
			Expect(res.Output).To(ContainSubstring("to-out"))
			Expect(res.Output).To(ContainSubstring("to-err"))
		})

		It("should surface a non-zero exit code as a failure with output kept", func() {
			res, err := s.run("bash", tool.BashInput{
				Command:     "echo before && exit 3",
				Description: "fail",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Error).To(HaveOccurred())
			Expect(res.Output).To(ContainSubstring("<bash_error>"))
			Expect(res.Output).To(ContainSubstring("exit code 3"))
			Expect(res.Output).To(ContainSubstring("before"))
			Expect(res.Metadata["exit"]).To(Equal(3))
			Expect(res.Metadata["success"]).To(BeFalse())
		})

		It("should run the command in the requested working directory", func() {
			sub := filepath.Join(s.workDir, "nested")
			Expect(os.MkdirAll(sub, 0o755)).To(Succeed())

			res, err := s.run("bash", tool.BashInput{
				Command:     "pwd",
				Description: "where",
				WorkDir:     sub,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Error).To(BeNil())
			Expect(strings.TrimSpace(res.Output)).To(HaveSuffix("nested"))
		})

		It("should reject a missing working directory before spawning", func() {
			res, err := s.run("bash", tool.BashInput{
				Command:     "echo never",
				Description: "bad dir",
				WorkDir:     filepath.Join(s.workDir, "missing"),
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(cmderr.KindOf(res.Error)).To(Equal(cmderr.InvalidWorkdir))
			Expect(res.Output).NotTo(ContainSubstring("never"))
		})

		It("should time out and keep partial output", func() {
			res, err := s.run("bash", tool.BashInput{
				Command:     "echo started; sleep 5",
				Description: "slow",
				Timeout:     300,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(cmderr.KindOf(res.Error)).To(Equal(cmderr.Timeout))
			Expect(res.Output).To(ContainSubstring("started"))
			Expect(res.Metadata["timed_out"]).To(BeTrue())
		})

		It("should leave no live process behind after a timeout", func() {
			_, err := s.run("bash", tool.BashInput{
				Command:     "sleep 30",
				Description: "hang",
				Timeout:     200,
			})
			Expect(err).NotTo(HaveOccurred())
			Eventually(s.manager.Len, time.Second).Should(Equal(0))
		})
	})

	Describe("Retry", func() {
		It("should re-run a timed-out command per the strategy", func() {
			s = newStack(allowAll, tool.WithRetry(retry.Strategy{
				MaxAttempts: 2,
				Schedule:    []time.Duration{20 * time.Millisecond},
			}))

			res, err := s.run("bash", tool.BashInput{
				Command:     "echo x >> attempts.log; sleep 5",
				Description: "flaky",
				Timeout:     250,
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(cmderr.KindOf(res.Error)).To(Equal(cmderr.Timeout))

			data, err := os.ReadFile(filepath.Join(s.workDir, "attempts.log"))
			Expect(err).NotTo(HaveOccurred())
			Expect(strings.Count(string(data), "x")).To(Equal(2), "both attempts should have run")
		})

		It("should not re-run a denied command", func() {
			s = newStack(
				[]permission.Rule{{Pattern: "*", Action: permission.ActionDeny}},
				tool.WithRetry(retry.Strategy{
					MaxAttempts: 3,
					Schedule:    []time.Duration{10 * time.Millisecond},
				}),
			)

			res, err := s.run("bash", tool.BashInput{
				Command:     "echo x >> denied.log",
				Description: "denied",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(cmderr.KindOf(res.Error)).To(Equal(cmderr.PermissionDenied))
			Expect(filepath.Join(s.workDir, "denied.log")).NotTo(BeAnExistingFile())
		})
	})

	Describe("Denied commands", func() {
		BeforeEach(func() {
			s = newStack([]permission.Rule{
				{Pattern: "sudo *", Action: permission.ActionDeny},
				{Pattern: "*", Action: permission.ActionAllow},
			})
		})

		It("should block a denied command without running it", func() {
			res, err := s.run("bash", tool.BashInput{
				Command:     "sudo touch escalated",
				Description: "escalate",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(cmderr.KindOf(res.Error)).To(Equal(cmderr.PermissionDenied))
			Expect(res.Output).To(ContainSubstring("PERMISSION_DENIED"))
			Expect(filepath.Join(s.workDir, "escalated")).NotTo(BeAnExistingFile())
		})

		It("should apply the strictest verdict across a compound command", func() {
			res, err := s.run("bash", tool.BashInput{
				Command:     "touch harmless && sudo id",
				Description: "compound",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(cmderr.KindOf(res.Error)).To(Equal(cmderr.PermissionDenied))
			// The allowed half must not run either.
			Expect(filepath.Join(s.workDir, "harmless")).NotTo(BeAnExistingFile())
		})

		It("should refuse catastrophic commands regardless of rules", func() {
			res, err := s.run("bash", tool.BashInput{
				Command:     "rm -rf /",
				Description: "catastrophe",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(cmderr.KindOf(res.Error)).To(Equal(cmderr.DangerousCommand))
		})
	})

	Describe("Ask flow", func() {
		BeforeEach(func() {
			// No rules: every command falls through to the ask verdict.
			s = newStack(nil)
		})

		respondWith := func(reply string, asks *int32) func() {
			return event.Subscribe(event.PermissionRequired, func(ev event.Event) {
				data, ok := ev.Data.(event.PermissionRequiredData)
				if !ok {
					return
				}
				if asks != nil {
					atomic.AddInt32(asks, 1)
				}
				s.checker.Respond(data.ID, reply)
			})
		}

		It("should run the command after an approval", func() {
			unsubscribe := respondWith(permission.ReplyOnce, nil)
			defer unsubscribe()

			res, err := s.run("bash", tool.BashInput{
				Command:     "echo approved-run",
				Description: "ask once",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Error).To(BeNil())
			Expect(res.Output).To(ContainSubstring("approved-run"))
		})

		It("should fail without executing when the user rejects", func() {
			unsubscribe := respondWith(permission.ReplyReject, nil)
			defer unsubscribe()

			res, err := s.run("bash", tool.BashInput{
				Command:     "touch rejected-marker",
				Description: "ask reject",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(cmderr.KindOf(res.Error)).To(Equal(cmderr.PermissionDenied))
			Expect(filepath.Join(s.workDir, "rejected-marker")).NotTo(BeAnExistingFile())
		})

		It("should remember an always approval within the session", func() {
			var asks int32
			unsubscribe := respondWith(permission.ReplyAlways, &asks)
			defer unsubscribe()

			res, err := s.run("bash", tool.BashInput{
				Command:     "echo first-ask",
				Description: "ask always",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Error).To(BeNil())

			res, err = s.run("bash", tool.BashInput{
				Command:     "echo second-silent",
				Description: "ask always",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Error).To(BeNil())
			Expect(res.Output).To(ContainSubstring("second-silent"))

			Expect(atomic.LoadInt32(&asks)).To(Equal(int32(1)), "second command should reuse the approval")
		})
	})

	Describe("Output capping", func() {
		It("should truncate runaway output at the configured limit", func() {
			s = newStack(allowAll, tool.WithMaxOutputBytes(256))

			res, err := s.run("bash", tool.BashInput{
				Command:     "i=0; while [ $i -lt 200 ]; do echo 0123456789abcdef; i=$((i+1)); done",
				Description: "noisy",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Error).To(BeNil())
			Expect(res.Metadata["truncated"]).To(BeTrue())
			Expect(res.Output).To(ContainSubstring("output truncated at 256 bytes"))
		})
	})

	Describe("Shell selection", func() {
		It("should fail cleanly when the configured shell is missing", func() {
			s = newStack(allowAll,
				tool.WithSelector(shell.NewSelectorWithOverride("/missing/shell")))

			res, err := s.run("bash", tool.BashInput{
				Command:     "echo unreachable",
				Description: "no shell",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(cmderr.KindOf(res.Error)).To(Equal(cmderr.ShellNotFound))
		})

		It("should honor a configured shell override", func() {
			s = newStack(allowAll,
				tool.WithSelector(shell.NewSelectorWithOverride("/bin/sh")))

			res, err := s.run("bash", tool.BashInput{
				Command:     "echo via-override",
				Description: "override",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Error).To(BeNil())
			Expect(res.Output).To(ContainSubstring("via-override"))
		})
	})

	Describe("Process lifecycle events", func() {
		It("should publish start and exit events for a run", func() {
			s = newStack(allowAll)

			started := make(chan event.ProcessStartedData, 4)
			exited := make(chan event.ProcessExitedData, 4)
			unsubStart := event.Subscribe(event.ProcessStarted, func(ev event.Event) {
				if data, ok := ev.Data.(event.ProcessStartedData); ok {
					started <- data
				}
			})
			defer unsubStart()
			unsubExit := event.Subscribe(event.ProcessExited, func(ev event.Event) {
				if data, ok := ev.Data.(event.ProcessExitedData); ok {
					exited <- data
				}
			})
			defer unsubExit()

			res, err := s.run("bash", tool.BashInput{
				Command:     "echo lifecycle",
				Description: "events",
			})
			Expect(err).NotTo(HaveOccurred())
			Expect(res.Error).To(BeNil())

			var startData event.ProcessStartedData
			Eventually(started, 2*time.Second).Should(Receive(&startData))
			Expect(startData.Command).To(ContainSubstring("echo lifecycle"))

			var exitData event.ProcessExitedData
			Eventually(exited, 2*time.Second).Should(Receive(&exitData))
			Expect(exitData.ExitCode).To(Equal(0))
		})
	})
})

var _ = Describe("Policy Inspection", func() {
	It("should classify each part of a compound command", func() {
		m := permission.NewMatcher(
			permission.Rule{Pattern: "git *", Action: permission.ActionAllow},
			permission.Rule{Pattern: "rm *", Action: permission.ActionDeny},
		)

		verdict, pattern := permission.ClassifyCommand(m, "git status && rm -rf build")
		Expect(verdict).To(Equal(permission.ActionDeny))
		Expect(pattern).To(Equal("rm *"))
	})

	It("should screen catastrophic forms before matching", func() {
		form, found := permission.ScreenCommand("echo safe; rm -rf /")
		Expect(found).To(BeTrue())
		Expect(form).To(Equal("rm -rf /"))
	})
})
