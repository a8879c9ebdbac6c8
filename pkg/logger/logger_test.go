package logger_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/papercomputeco/callctx/pkg/logger"
)

func jsonLines(raw []byte) []map[string]any {
	var records []map[string]any
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec map[string]any
		ExpectWithOffset(1, json.Unmarshal([]byte(line), &rec)).To(Succeed())
		records = append(records, rec)
	}
	return records
}

var _ = Describe("Logger", func() {
	Describe("New", func() {
		It("writes key/value text by default", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf))
			l.Info("embedding generated", "backend", "cpu", "dimensions", 768)

			Expect(buf.String()).To(ContainSubstring("embedding generated"))
			Expect(buf.String()).To(ContainSubstring("backend=cpu"))
			Expect(buf.String()).To(ContainSubstring("dimensions=768"))
		})

		It("shows chain attempts only in debug mode", func() {
			var quiet, loud bytes.Buffer
			logger.New(logger.WithWriter(&quiet), logger.WithDebug(false)).
				Debug("backend unavailable", "backend", "remote")
			logger.New(logger.WithWriter(&loud), logger.WithDebug(true)).
				Debug("backend unavailable", "backend", "remote")

			Expect(quiet.String()).To(BeEmpty())
			Expect(loud.String()).To(ContainSubstring("backend unavailable"))
		})

		It("drops records under the configured level", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true), logger.WithLevel(slog.LevelWarn))
			l.Info("ingest job done", "owner_id", "cust-1")
			l.Warn("skipping fallback vector", "owner_id", "cust-1")

			records := jsonLines(buf.Bytes())
			Expect(records).To(HaveLen(1))
			Expect(records[0]["msg"]).To(Equal("skipping fallback vector"))
		})

		It("encodes durations and counts as JSON", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithJSON(true))
			l.Info("context retrieved", "owner_id", "cust-42", "items", 3, "latency", 15*time.Millisecond)

			records := jsonLines(buf.Bytes())
			Expect(records).To(HaveLen(1))
			Expect(records[0]["owner_id"]).To(Equal("cust-42"))
			Expect(records[0]["items"]).To(BeNumerically("==", 3))
			Expect(records[0]["latency"]).To(BeNumerically("==", 15*time.Millisecond))
		})

		It("renders through the pretty handler", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithPretty(true))
			l.Info("callctx ready", "api_addr", ":8080")

			Expect(buf.String()).To(ContainSubstring("callctx ready"))
			Expect(buf.String()).To(ContainSubstring(":8080"))
		})

		It("prefers the pretty handler when both formats are set", func() {
			var buf bytes.Buffer
			l := logger.New(logger.WithWriter(&buf), logger.WithPretty(true), logger.WithJSON(true))
			l.Info("callctx ready")

			Expect(json.Valid(bytes.TrimSpace(buf.Bytes()))).To(BeFalse())
		})

		It("copies output to every writer and ignores nil ones", func() {
			var buf1, buf2 bytes.Buffer
			l := logger.New(logger.WithWriters(&buf1, nil, &buf2))
			l.Info("cache cleared", "removed", 12)

			Expect(buf1.String()).To(ContainSubstring("removed=12"))
			Expect(buf2.String()).To(ContainSubstring("removed=12"))
		})
	})

	Describe("Nop", func() {
		It("is disabled at every level", func() {
			l := logger.Nop()
			for _, level := range []slog.Level{slog.LevelDebug, slog.LevelInfo, slog.LevelWarn, slog.LevelError} {
				Expect(l.Handler().Enabled(context.Background(), level)).To(BeFalse())
			}
			Expect(func() {
				l.With("backend", "cpu").WithGroup("chain").Error("all backends failed")
			}).NotTo(Panic())
		})
	})

	Describe("OpenFile", func() {
		It("appends JSON records and creates missing directories", func() {
			path := filepath.Join(GinkgoT().TempDir(), "logs", "callctx.log")

			l, closer, err := logger.OpenFile(path)
			Expect(err).NotTo(HaveOccurred())
			l.Info("starting API server", "listen", ":8080")
			Expect(closer.Close()).To(Succeed())

			l, closer, err = logger.OpenFile(path)
			Expect(err).NotTo(HaveOccurred())
			l.Info("received signal, shutting down", "signal", "interrupt")
			Expect(closer.Close()).To(Succeed())

			raw, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			records := jsonLines(raw)
			Expect(records).To(HaveLen(2))
			Expect(records[0]["listen"]).To(Equal(":8080"))
			Expect(records[1]["signal"]).To(Equal("interrupt"))
		})

		It("writes JSON even when asked for pretty output", func() {
			path := filepath.Join(GinkgoT().TempDir(), "callctx.log")

			l, closer, err := logger.OpenFile(path, logger.WithPretty(true))
			Expect(err).NotTo(HaveOccurred())
			l.Info("callctx ready")
			Expect(closer.Close()).To(Succeed())

			raw, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			Expect(jsonLines(raw)).To(HaveLen(1))
		})

		It("fails when the path is a directory", func() {
			_, _, err := logger.OpenFile(GinkgoT().TempDir())
			Expect(err).To(MatchError(ContainSubstring("opening log file")))
		})
	})

	Describe("Multi", func() {
		It("fans a serve log out to the terminal and a JSON file", func() {
			var terminal bytes.Buffer
			path := filepath.Join(GinkgoT().TempDir(), "serve.log")

			fileLog, closer, err := logger.OpenFile(path, logger.WithDebug(true))
			Expect(err).NotTo(HaveOccurred())
			l := logger.Multi(logger.New(logger.WithWriter(&terminal), logger.WithPretty(true)), fileLog)

			l.Debug("backend unavailable", "backend", "local_gpu")
			l.Info("embedding generated", "backend", "cpu", "latency", 2*time.Millisecond)
			Expect(closer.Close()).To(Succeed())

			Expect(terminal.String()).NotTo(ContainSubstring("backend unavailable"))
			Expect(terminal.String()).To(ContainSubstring("embedding generated"))

			raw, err := os.ReadFile(path)
			Expect(err).NotTo(HaveOccurred())
			records := jsonLines(raw)
			Expect(records).To(HaveLen(2))
			Expect(records[0]["backend"]).To(Equal("local_gpu"))
			Expect(records[1]["backend"]).To(Equal("cpu"))
		})

		It("carries bound attributes and groups to every handler", func() {
			var a, b bytes.Buffer
			l := logger.Multi(
				logger.New(logger.WithWriter(&a), logger.WithJSON(true)),
				logger.New(logger.WithWriter(&b), logger.WithJSON(true)),
			)

			l.With("owner_id", "cust-7").WithGroup("chain").Info("embedding generated", "backend", "remote")

			for _, buf := range []*bytes.Buffer{&a, &b} {
				records := jsonLines(buf.Bytes())
				Expect(records).To(HaveLen(1))
				Expect(records[0]["owner_id"]).To(Equal("cust-7"))
				Expect(records[0]["chain"]).To(HaveKeyWithValue("backend", "remote"))
			}
		})

		It("is disabled only when every handler is", func() {
			var buf bytes.Buffer
			l := logger.Multi(logger.Nop(), logger.New(logger.WithWriter(&buf), logger.WithLevel(slog.LevelWarn)))

			Expect(l.Handler().Enabled(context.Background(), slog.LevelInfo)).To(BeFalse())
			Expect(l.Handler().Enabled(context.Background(), slog.LevelWarn)).To(BeTrue())
		})
	})
})
