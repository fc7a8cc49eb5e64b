package openr

import (
	"time"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

var _ = Describe("PubQueue", func() {
	It("delivers publications FIFO", func() {
		queue := NewPubQueue(4)

		queue.PushPublication(Publication{Area: "a1"})
		queue.PushPublication(Publication{Area: "a2"})

		first, err := queue.RecvPublication()
		Expect(err).NotTo(HaveOccurred())
		Expect(first.Area).To(Equal("a1"))

		second, err := queue.RecvPublication()
		Expect(err).NotTo(HaveOccurred())
		Expect(second.Area).To(Equal("a2"))
	})

	It("skips InitializationEvent items when the caller wants only publications", func() {
		queue := NewPubQueue(4)

		queue.PushInitialized()
		queue.PushPublication(Publication{Area: "a1"})

		publication, err := queue.RecvPublication()
		Expect(err).NotTo(HaveOccurred())
		Expect(publication.Area).To(Equal("a1"))
	})

	It("skips publications when the caller wants only the initialization signal", func() {
		queue := NewPubQueue(4)

		queue.PushPublication(Publication{Area: "a1"})
		queue.PushInitialized()

		Expect(queue.RecvInitializedSignal()).NotTo(HaveOccurred())
	})

	It("returns ErrQueueClosed to a reader once closed and drained", func() {
		queue := NewPubQueue(1)

		queue.PushPublication(Publication{Area: "a1"})
		queue.Close()

		_, err := queue.RecvPublication()
		Expect(err).NotTo(HaveOccurred()) // still drains the one pending item first

		_, err = queue.RecvPublication()
		Expect(err).To(Equal(ErrQueueClosed))
	})

	It("Close is idempotent", func() {
		queue := NewPubQueue(1)

		queue.Close()
		queue.Close()

		_, _, err := queue.Recv()
		Expect(err).To(Equal(ErrQueueClosed))
	})

	It("blocks a reader indefinitely rather than timing out", func() {
		queue := NewPubQueue(0)

		done := make(chan struct{})

		go func() {
			queue.RecvPublication()
			close(done)
		}()

		select {
		case <-done:
			Fail("RecvPublication returned before anything was pushed")
		case <-time.After(50 * time.Millisecond):
		}

		queue.PushPublication(Publication{Area: "a1"})

		Eventually(done, time.Second).Should(BeClosed())
	})
})
