package completion_test

import (
	"errors"
	"log/slog"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Paranoid-AF/ghostline/completion"
	"github.com/Paranoid-AF/ghostline/logger"
	"github.com/Paranoid-AF/ghostline/uithread"
)

var _ = Describe("SessionListener", func() {
	var (
		anchor   completion.Position
		sink     *recordingSink
		exec     *manualExecutor
		notifier *recordingNotifier
		progress *countingProgress
		logs     *syncBuffer
		log      *slog.Logger
	)

	newListener := func(p completion.ProgressHandle) (*completion.Session, *completion.SessionListener) {
		sess := completion.NewSession(anchor, p)
		l, err := completion.NewListener(sess, completion.ListenerConfig{
			Sink:     sink,
			Executor: exec,
			Notifier: notifier,
			Logger:   log,
		})
		Expect(err).NotTo(HaveOccurred())
		return sess, l
	}

	BeforeEach(func() {
		anchor = completion.Position{URI: "file:///main.rs", Offset: 120}
		sink = &recordingSink{}
		exec = &manualExecutor{}
		notifier = &recordingNotifier{}
		progress = &countingProgress{}
		logs = &syncBuffer{}
		log = logger.New(logger.WithWriter(logs), logger.WithJSON(true), logger.WithDebug(true))
	})

	Describe("NewListener", func() {
		It("requires a sink and an executor", func() {
			sess := completion.NewSession(anchor, nil)
			_, err := completion.NewListener(sess, completion.ListenerConfig{Executor: exec})
			Expect(err).To(HaveOccurred())
			_, err = completion.NewListener(sess, completion.ListenerConfig{Sink: sink})
			Expect(err).To(HaveOccurred())
			_, err = completion.NewListener(nil, completion.ListenerConfig{Sink: sink, Executor: exec})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("scenarios", func() {
		It("completes with text: finishes progress and schedules one insertion", func() {
			sess, l := newListener(progress)
			l.OnComplete("let x = 1;")
			exec.RunAll()

			Expect(progress.Count()).To(Equal(1))
			Expect(sink.Applied()).To(ConsistOf(sinkCall{op: "apply", at: anchor, text: "let x = 1;"}))
			Expect(notifier.Sent()).To(BeEmpty())
			Expect(sess.Done()).To(BeClosed())
		})

		It("completes empty without a progress handle: no insertion, no notification", func() {
			sess, l := newListener(nil)
			Expect(func() { l.OnComplete("") }).NotTo(Panic())
			exec.RunAll()

			Expect(sink.Applied()).To(BeEmpty())
			Expect(sink.Calls()).To(ConsistOf(sinkCall{op: "clear", at: anchor}))
			Expect(notifier.Sent()).To(BeEmpty())
			Expect(sess.Outcome().Kind).To(Equal(completion.OutcomeComplete))
		})

		It("fails: logs the cause, finishes progress, notifies once with remediation", func() {
			_, l := newListener(progress)
			cause := errors.New("http 429")
			l.OnError(completion.ErrorDetails{Message: "rate limited"}, cause)
			exec.RunAll()

			Expect(progress.Count()).To(Equal(1))
			errs := logs.AtLevel("ERROR")
			Expect(errs).To(HaveLen(1))
			Expect(errs[0]["error"]).To(Equal("http 429"))

			sent := notifier.Sent()
			Expect(sent).To(HaveLen(1))
			Expect(sent[0].message).To(ContainSubstring("rate limited"))
			Expect(sent[0].action).To(Equal(completion.OpenSettingsAction))
			Expect(sink.Calls()).To(BeEmpty())
		})

		It("is cancelled: logs at info and finishes progress only", func() {
			_, l := newListener(progress)
			l.OnCancelled("partial tex")
			exec.RunAll()

			Expect(progress.Count()).To(Equal(1))
			infos := logs.AtLevel("INFO")
			Expect(infos).To(HaveLen(1))
			Expect(infos[0]["msg"]).To(Equal("code completion cancelled"))
			Expect(sink.Calls()).To(BeEmpty())
			Expect(exec.Pending()).To(BeZero())
			Expect(notifier.Sent()).To(BeEmpty())
		})

		It("absorbs a second terminal callback", func() {
			sess, l := newListener(progress)
			l.OnComplete("done")
			l.OnError(completion.ErrorDetails{Message: "late"}, errors.New("late"))
			exec.RunAll()

			Expect(progress.Count()).To(Equal(1))
			Expect(notifier.Sent()).To(BeEmpty())
			Expect(sink.Applied()).To(HaveLen(1))
			Expect(sess.Outcome().Kind).To(Equal(completion.OutcomeComplete))

			warns := logs.AtLevel("WARN")
			Expect(warns).To(HaveLen(1))
			Expect(warns[0]["callback"]).To(Equal("error"))
			Expect(warns[0]["outcome"]).To(Equal("complete"))
		})
	})

	Describe("UI marshalling", func() {
		It("never touches the sink inside the callback", func() {
			_, l := newListener(progress)
			l.OnComplete("foo")

			Expect(sink.Calls()).To(BeEmpty())
			Expect(exec.Pending()).To(Equal(1))

			exec.RunAll()
			Expect(sink.Calls()).To(Equal([]sinkCall{
				{op: "clear", at: anchor},
				{op: "apply", at: anchor, text: "foo"},
			}))
		})

		It("runs the insertion on the loop goroutine", func() {
			loop := uithread.New(log)
			defer loop.Close()

			var onLoop bool
			spy := &loopSpySink{check: loop.Executing, onLoop: &onLoop}
			sess := completion.NewSession(anchor, progress)
			l, err := completion.NewListener(sess, completion.ListenerConfig{Sink: spy, Executor: loop, Logger: log})
			Expect(err).NotTo(HaveOccurred())

			l.OnComplete("foo")
			loop.Close()
			Expect(onLoop).To(BeTrue())
		})

		It("logs and still settles when the executor is closed", func() {
			exec.closed = true
			sess, l := newListener(progress)
			l.OnComplete("foo")

			Expect(progress.Count()).To(Equal(1))
			Expect(sess.Done()).To(BeClosed())
			warns := logs.AtLevel("WARN")
			Expect(warns).To(HaveLen(1))
			Expect(warns[0]["msg"]).To(Equal("completion result dropped"))
		})
	})

	Describe("error reporting", func() {
		It("recovers a panicking notifier", func() {
			notifier.panicWith = "bus down"
			sess, l := newListener(progress)

			Expect(func() { l.OnError(completion.ErrorDetails{}, errors.New("boom")) }).NotTo(Panic())
			Expect(progress.Count()).To(Equal(1))
			Expect(sess.Done()).To(BeClosed())
			Expect(logs.AtLevel("ERROR")).To(HaveLen(2))
		})

		It("still finishes and notifies when the error log panics", func() {
			log = slog.New(panickingHandler{})
			notifier.panicWith = "bus down"
			sess, l := newListener(progress)

			Expect(func() { l.OnError(completion.ErrorDetails{Message: "quota"}, errors.New("429")) }).NotTo(Panic())
			Expect(progress.Count()).To(Equal(1))
			Expect(notifier.Sent()).To(HaveLen(1))
			Expect(notifier.Sent()[0].message).To(Equal("Code completion failed: quota"))
			Expect(sess.Done()).To(BeClosed())
			Expect(sess.Outcome().Kind).To(Equal(completion.OutcomeError))
		})

		It("uses the cause when the provider sent no message", func() {
			_, l := newListener(progress)
			l.OnError(completion.ErrorDetails{}, errors.New("dial unix: no such file"))

			Expect(notifier.Sent()).To(HaveLen(1))
			Expect(notifier.Sent()[0].message).To(Equal("Code completion failed: dial unix: no such file"))
		})

		It("honours a custom remediation action", func() {
			custom := completion.Action{ID: "retry", Title: "Retry"}
			sess := completion.NewSession(anchor, progress)
			l, err := completion.NewListener(sess, completion.ListenerConfig{
				Sink: sink, Executor: exec, Notifier: notifier, Remediation: &custom,
			})
			Expect(err).NotTo(HaveOccurred())

			l.OnError(completion.ErrorDetails{Message: "x"}, nil)
			Expect(notifier.Sent()[0].action).To(Equal(custom))
		})

		It("logs without a notifier", func() {
			sess := completion.NewSession(anchor, progress)
			l, err := completion.NewListener(sess, completion.ListenerConfig{Sink: sink, Executor: exec, Logger: log})
			Expect(err).NotTo(HaveOccurred())

			l.OnError(completion.ErrorDetails{Message: "x"}, errors.New("x"))
			Expect(progress.Count()).To(Equal(1))
			Expect(logs.AtLevel("ERROR")).To(HaveLen(1))
		})
	})

	Describe("cancellation", func() {
		It("never inserts nor notifies", func() {
			_, l := newListener(progress)
			l.OnCancelled("")
			l.OnComplete("late")
			exec.RunAll()

			Expect(sink.Calls()).To(BeEmpty())
			Expect(notifier.Sent()).To(BeEmpty())
			Expect(progress.Count()).To(Equal(1))
		})
	})

	Describe("racing callbacks", func() {
		It("settles exactly once across goroutines", func() {
			for range 50 {
				sink = &recordingSink{}
				notifier = &recordingNotifier{}
				progress = &countingProgress{}
				exec = &manualExecutor{}
				sess, l := newListener(progress)

				var start sync.WaitGroup
				var wg sync.WaitGroup
				start.Add(1)
				for i := range 12 {
					wg.Add(1)
					go func() {
						defer wg.Done()
						start.Wait()
						switch i % 3 {
						case 0:
							l.OnComplete("text")
						case 1:
							l.OnError(completion.ErrorDetails{Message: "e"}, errors.New("e"))
						default:
							l.OnCancelled("par")
						}
					}()
				}
				start.Done()
				wg.Wait()
				exec.RunAll()

				Expect(progress.Count()).To(Equal(1))
				Expect(sess.Done()).To(BeClosed())
				switch sess.Outcome().Kind {
				case completion.OutcomeComplete:
					Expect(sink.Applied()).To(HaveLen(1))
					Expect(notifier.Sent()).To(BeEmpty())
				case completion.OutcomeError:
					Expect(sink.Calls()).To(BeEmpty())
					Expect(notifier.Sent()).To(HaveLen(1))
				case completion.OutcomeCancelled:
					Expect(sink.Calls()).To(BeEmpty())
					Expect(notifier.Sent()).To(BeEmpty())
				default:
					Fail("session did not settle")
				}
			}
		})
	})
})

type loopSpySink struct {
	check  func() bool
	onLoop *bool
}

func (p *loopSpySink) ApplyGeneratedText(completion.Position, string) { *p.onLoop = p.check() }

func (p *loopSpySink) ClearPendingPreview(completion.Position) {}
