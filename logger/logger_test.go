package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/Paranoid-AF/ghostline/logger"
)

var _ = Describe("Logger", func() {
	Describe("New", func() {
		It("writes text records by default", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf))
			l.Info("session started", "session", "abc")

			Expect(buf.String()).To(ContainSubstring("session started"))
			Expect(buf.String()).To(ContainSubstring("session=abc"))
		})

		It("filters debug unless enabled", func() {
			var buf bytes.Buffer
			logger.New(logger.WithWriter(&buf)).Debug("hidden")
			Expect(buf.String()).To(BeEmpty())

			logger.New(logger.WithWriter(&buf), logger.WithDebug(true)).Debug("shown")
			Expect(buf.String()).To(ContainSubstring("shown"))
		})

		It("adds the source location when asked", func() {
			var buf bytes.Buffer
			logger.New(logger.WithWriter(&buf), logger.WithJSON(true), logger.WithSource(true)).Info("located")

			var parsed map[string]any
			Expect(json.Unmarshal(buf.Bytes(), &parsed)).To(Succeed())
			Expect(parsed).To(HaveKey(slog.SourceKey))

			buf.Reset()
			logger.New(logger.WithWriter(&buf), logger.WithJSON(true)).Info("plain")
			Expect(buf.String()).NotTo(ContainSubstring(`"source"`))
		})

		It("writes JSON records", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
			l.Error("generation failed", "status", 429)

			var parsed map[string]any
			Expect(json.Unmarshal(buf.Bytes(), &parsed)).To(Succeed())
			Expect(parsed["msg"]).To(Equal("generation failed"))
			Expect(parsed["level"]).To(Equal("ERROR"))
			Expect(parsed["status"]).To(BeNumerically("==", 429))
		})

		It("writes pretty records through charmbracelet/log", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithPretty(true))
			l.Warn("late callback ignored", "outcome", "complete")

			Expect(buf.String()).To(ContainSubstring("late callback ignored"))
			Expect(buf.String()).To(ContainSubstring("complete"))
		})

		It("prefers pretty over JSON", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithPretty(true), logger.WithJSON(true))
			l.Info("hello")

			var parsed map[string]any
			Expect(json.Unmarshal(buf.Bytes(), &parsed)).NotTo(Succeed())
		})

		It("fans out to multiple writers", func() {
			var a, b bytes.Buffer
			logger.New(logger.WithWriters(&a, &b)).Info("multi")

			Expect(a.String()).To(ContainSubstring("multi"))
			Expect(b.String()).To(ContainSubstring("multi"))
		})
	})

	Describe("Nop", func() {
		It("is disabled at every level", func() {
			l := logger.Nop()
			Expect(l.Handler().Enabled(context.Background(), slog.LevelError)).To(BeFalse())
			Expect(func() { l.With("k", "v").Error("msg") }).NotTo(Panic())
		})
	})
})
