package completion_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Paranoid-AF/ghostline/completion"
)

var _ = Describe("Session", func() {
	var (
		sess *completion.Session
		exec *manualExecutor
		l    *completion.SessionListener
	)

	BeforeEach(func() {
		sess = completion.NewSession(completion.Position{URI: "file:///a.rs", Offset: 7}, nil)
		exec = &manualExecutor{}
		var err error
		l, err = completion.NewListener(sess, completion.ListenerConfig{Sink: &recordingSink{}, Executor: exec})
		Expect(err).NotTo(HaveOccurred())
	})

	It("starts pending with a unique id", func() {
		other := completion.NewSession(completion.Position{}, nil)
		Expect(sess.State()).To(Equal(completion.OutcomePending))
		Expect(sess.ID()).NotTo(BeEmpty())
		Expect(sess.ID()).NotTo(Equal(other.ID()))
		Expect(sess.Anchor().Offset).To(Equal(7))
		Expect(sess.Done()).NotTo(BeClosed())
	})

	It("accumulates fragments until settled", func() {
		Expect(sess.Append("let ")).To(Succeed())
		Expect(sess.Append("x = 1;")).To(Succeed())
		Expect(sess.Text()).To(Equal("let x = 1;"))

		l.OnCancelled(sess.Text())

		Expect(sess.Append("more")).To(MatchError(completion.ErrSessionClosed))
		Expect(sess.Text()).To(Equal("let x = 1;"))
		Expect(sess.Outcome().Kind).To(Equal(completion.OutcomeCancelled))
		Expect(sess.Outcome().Text).To(Equal("let x = 1;"))
		Expect(sess.Done()).To(BeClosed())
	})

	It("records error details in the outcome", func() {
		cause := errors.New("429 Too Many Requests")
		l.OnError(completion.ErrorDetails{Message: "rate limited", StatusCode: 429}, cause)

		o := sess.Outcome()
		Expect(o.Kind).To(Equal(completion.OutcomeError))
		Expect(o.Details.StatusCode).To(Equal(429))
		Expect(o.Cause).To(MatchError(cause))
	})
})

var _ = Describe("Progress", func() {
	It("releases once however often it is finished", func() {
		calls := 0
		p := completion.NewProgress(func() { calls++ })
		p.Finish()
		p.Finish()

		Expect(calls).To(Equal(1))
		Expect(p.Finished()).To(BeClosed())
	})

	It("accepts a nil release", func() {
		p := completion.NewProgress(nil)
		Expect(p.Finish).NotTo(Panic())
		Expect(p.Finished()).To(BeClosed())
	})

	It("provides a no-op handle", func() {
		Expect(completion.NoProgress().Finish).NotTo(Panic())
	})
})

var _ = Describe("Outcome", func() {
	It("names each kind", func() {
		Expect(completion.OutcomePending.String()).To(Equal("pending"))
		Expect(completion.OutcomeComplete.String()).To(Equal("complete"))
		Expect(completion.OutcomeError.String()).To(Equal("error"))
		Expect(completion.OutcomeCancelled.String()).To(Equal("cancelled"))
		Expect(completion.OutcomeKind(42).String()).To(Equal("outcome(42)"))
		Expect(completion.OutcomePending.Terminal()).To(BeFalse())
		Expect(completion.OutcomeCancelled.Terminal()).To(BeTrue())
	})

	It("describes failures from the message, the cause, or neither", func() {
		cause := errors.New("connection reset")
		Expect(completion.ErrorDetails{Message: "rate limited"}.Describe(cause)).To(Equal("rate limited"))
		Expect(completion.ErrorDetails{}.Describe(cause)).To(Equal("connection reset"))
		Expect(completion.ErrorDetails{}.Describe(nil)).To(Equal("unknown error"))
	})
})
