package integration_test

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/codeforge-ai/codeforge/internal/event"
	"github.com/codeforge-ai/codeforge/internal/permission"
	"github.com/codeforge-ai/codeforge/internal/tool"
)

var _ = Describe("Batch Dispatch", func() {
	var s *stack

	BeforeEach(func() {
		s = newStack(allowAll)
	})

	AfterEach(func() {
		s.teardown()
		s = nil
	})

	bashArgs := func(command string) json.RawMessage {
		return mustJSON(tool.BashInput{Command: command, Description: command})
	}

	It("should run mixed tools concurrently and aggregate their results", func() {
		Expect(os.WriteFile(filepath.Join(s.workDir, "note.txt"),
			[]byte("hello from file\n"), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(s.workDir, "main.go"),
			[]byte("package main\n"), 0o644)).To(Succeed())

		res, err := s.run("batch", tool.BatchInput{Tools: []tool.BatchInvocation{
			{Name: "bash", Arguments: bashArgs("echo from-bash")},
			{Name: "read", Arguments: mustJSON(map[string]any{"filePath": "note.txt"})},
			{Name: "glob", Arguments: mustJSON(map[string]any{"pattern": "*.go"})},
		}})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Error).To(BeNil())
		Expect(res.Output).To(ContainSubstring("All 3 tools executed successfully."))
		Expect(res.Output).To(ContainSubstring("=== bash (success) ==="))
		Expect(res.Output).To(ContainSubstring("from-bash"))
		Expect(res.Output).To(ContainSubstring("hello from file"))
		Expect(res.Output).To(ContainSubstring("main.go"))
	})

	It("should isolate entry failures from their siblings", func() {
		res, err := s.run("batch", tool.BatchInput{Tools: []tool.BatchInvocation{
			{Name: "bash", Arguments: bashArgs("echo ok-one")},
			{Name: "bash", Arguments: bashArgs("exit 7")},
			{Name: "bash", Arguments: bashArgs("echo ok-two")},
		}})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Output).To(ContainSubstring("Executed 2/3 tools successfully. 1 failed."))
		Expect(res.Output).To(ContainSubstring("ok-one"))
		Expect(res.Output).To(ContainSubstring("ok-two"))
		Expect(res.Output).To(ContainSubstring("exit code 7"))
		Expect(res.Metadata["failed"]).To(Equal(1))
	})

	It("should report an unknown tool as a failed entry", func() {
		res, err := s.run("batch", tool.BatchInput{Tools: []tool.BatchInvocation{
			{Name: "bash", Arguments: bashArgs("echo fine")},
			{Name: "nonexistent", Arguments: mustJSON(map[string]any{})},
		}})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Output).To(ContainSubstring("=== nonexistent (failed) ==="))
		Expect(res.Output).To(ContainSubstring("not registered"))
		Expect(res.Output).To(ContainSubstring("fine"))
	})

	It("should run entries concurrently", func() {
		start := time.Now()
		res, err := s.run("batch", tool.BatchInput{Tools: []tool.BatchInvocation{
			{Name: "bash", Arguments: bashArgs("sleep 0.4")},
			{Name: "bash", Arguments: bashArgs("sleep 0.4")},
			{Name: "bash", Arguments: bashArgs("sleep 0.4")},
		}})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Error).To(BeNil())
		Expect(time.Since(start)).To(BeNumerically("<", time.Second),
			"three 400ms sleeps should overlap, not serialize")
	})

	It("should report outcomes in submission order regardless of completion order", func() {
		res, err := s.run("batch", tool.BatchInput{Tools: []tool.BatchInvocation{
			{Name: "bash", Arguments: bashArgs("sleep 0.3; echo slow-done")},
			{Name: "bash", Arguments: bashArgs("echo fast-done")},
		}})
		Expect(err).NotTo(HaveOccurred())

		slowIdx := strings.Index(res.Output, "slow-done")
		fastIdx := strings.Index(res.Output, "fast-done")
		Expect(slowIdx).To(BeNumerically(">=", 0))
		Expect(fastIdx).To(BeNumerically(">", slowIdx))
	})

	It("should reject an empty batch", func() {
		_, err := s.run("batch", tool.BatchInput{})
		Expect(err).To(MatchError(ContainSubstring("at least one")))
	})

	It("should reject an oversized batch before dispatching anything", func() {
		invs := make([]tool.BatchInvocation, 11)
		for i := range invs {
			invs[i] = tool.BatchInvocation{
				Name:      "bash",
				Arguments: bashArgs("echo x >> oversize.log"),
			}
		}

		_, err := s.run("batch", tool.BatchInput{Tools: invs})
		Expect(err).To(MatchError(ContainSubstring("at most 10")))
		Expect(filepath.Join(s.workDir, "oversize.log")).NotTo(BeAnExistingFile())
	})

	It("should refuse to nest batches", func() {
		_, err := s.run("batch", tool.BatchInput{Tools: []tool.BatchInvocation{
			{Name: "batch", Arguments: mustJSON(tool.BatchInput{})},
		}})
		Expect(err).To(MatchError(ContainSubstring("cannot invoke itself")))
	})

	It("should apply permission rules to every entry independently", func() {
		denying := newStack([]permission.Rule{
			{Pattern: "sudo *", Action: permission.ActionDeny},
			{Pattern: "*", Action: permission.ActionAllow},
		})
		defer denying.teardown()

		res, err := denying.run("batch", tool.BatchInput{Tools: []tool.BatchInvocation{
			{Name: "bash", Arguments: bashArgs("echo permitted")},
			{Name: "bash", Arguments: bashArgs("sudo touch " + filepath.Join(denying.workDir, "escalated"))},
		}})
		Expect(err).NotTo(HaveOccurred())
		Expect(res.Output).To(ContainSubstring("Executed 1/2 tools successfully. 1 failed."))
		Expect(res.Output).To(ContainSubstring("permitted"))
		Expect(res.Output).To(ContainSubstring("PERMISSION_DENIED"))
		Expect(filepath.Join(denying.workDir, "escalated")).NotTo(BeAnExistingFile())
	})

	It("should publish a completion event with the aggregate counts", func() {
		done := make(chan event.BatchCompletedData, 1)
		unsubscribe := event.Subscribe(event.BatchCompleted, func(ev event.Event) {
			if data, ok := ev.Data.(event.BatchCompletedData); ok {
				select {
				case done <- data:
				default:
				}
			}
		})
		defer unsubscribe()

		_, err := s.run("batch", tool.BatchInput{Tools: []tool.BatchInvocation{
			{Name: "bash", Arguments: bashArgs("echo one")},
			{Name: "bash", Arguments: bashArgs("exit 1")},
		}})
		Expect(err).NotTo(HaveOccurred())

		var data event.BatchCompletedData
		Eventually(done, 2*time.Second).Should(Receive(&data))
		Expect(data.Total).To(Equal(2))
		Expect(data.Succeeded).To(Equal(1))
		Expect(data.Failed).To(Equal(1))
	})
})
