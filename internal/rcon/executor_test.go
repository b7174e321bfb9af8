package rcon_test

import (
	"context"
	"time"

	"github.com/kofuk/amcs/internal/rcon"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RconExecutor", func() {
	It("should give up connecting once the caller's context is done", func() {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		sut := rcon.NewRconExecutor("127.0.0.1:1", "secret")

		result := make(chan error, 1)
		go func() {
			_, err := sut.Exec(ctx, "list")
			result <- err
		}()

		var err error
		Eventually(result, time.Second).Should(Receive(&err))
		Expect(err).To(MatchError(context.Canceled))
	})
})
