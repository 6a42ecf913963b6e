package uithread_test

import (
	"bytes"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Paranoid-AF/ghostline/logger"
	"github.com/Paranoid-AF/ghostline/uithread"
)

var _ = Describe("Loop", func() {
	var loop *uithread.Loop

	BeforeEach(func() {
		loop = uithread.New(nil)
	})

	AfterEach(func() {
		loop.Close()
	})

	It("runs tasks in submission order", func() {
		var (
			mu  sync.Mutex
			got []int
		)
		for i := range 100 {
			Expect(loop.Submit(func() {
				mu.Lock()
				got = append(got, i)
				mu.Unlock()
			})).To(BeTrue())
		}
		loop.Close()

		Expect(got).To(HaveLen(100))
		for i, v := range got {
			Expect(v).To(Equal(i))
		}
	})

	It("runs tasks one at a time", func() {
		var running, overlap atomic.Int32
		var wg sync.WaitGroup
		for range 8 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for range 20 {
					loop.Submit(func() {
						if running.Add(1) > 1 {
							overlap.Add(1)
						}
						time.Sleep(time.Microsecond)
						running.Add(-1)
					})
				}
			}()
		}
		wg.Wait()
		loop.Close()

		Expect(overlap.Load()).To(BeZero())
	})

	It("does not block the submitter", func() {
		release := make(chan struct{})
		loop.Submit(func() { <-release })

		submitted := make(chan bool, 1)
		go func() { submitted <- loop.Submit(func() {}) }()
		Eventually(submitted).Should(Receive(BeTrue()))
		Expect(loop.Pending()).To(Equal(1))
		close(release)
	})

	It("reports whether a task is executing", func() {
		release := make(chan struct{})
		loop.Submit(func() { <-release })

		Eventually(loop.Executing).Should(BeTrue())
		close(release)
		Eventually(loop.Executing).Should(BeFalse())
	})

	It("drains queued tasks on Close and rejects later ones", func() {
		var ran atomic.Int32
		for range 10 {
			loop.Submit(func() {
				time.Sleep(time.Millisecond)
				ran.Add(1)
			})
		}
		loop.Close()

		Expect(ran.Load()).To(BeEquivalentTo(10))
		Expect(loop.Submit(func() { ran.Add(1) })).To(BeFalse())
		Expect(loop.Done()).To(BeClosed())
	})

	It("rejects nil tasks", func() {
		Expect(loop.Submit(nil)).To(BeFalse())
	})

	It("survives a panicking task", func() {
		var buf bytes.Buffer
		l := uithread.New(logger.New(logger.WithWriter(&buf)))

		var after atomic.Bool
		l.Submit(func() { panic("boom") })
		l.Submit(func() { after.Store(true) })
		l.Close()

		Expect(after.Load()).To(BeTrue())
		Expect(buf.String()).To(ContainSubstring("ui task panicked"))
	})
})
