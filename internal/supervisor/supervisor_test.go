package supervisor_test

import (
	"context"
	"errors"
	"os/exec"
	"runtime"
	"time"

	"github.com/kofuk/amcs/internal/env"
	"github.com/kofuk/amcs/internal/gameconfig"
	"github.com/kofuk/amcs/internal/supervisor"
	"github.com/kofuk/amcs/internal/system"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

var _ = Describe("Supervisor", func() {
	var (
		ctrl     *gomock.Controller
		executor *system.MockCommandExecutor
		stopper  *supervisor.MockStopper
		paths    *env.BaseDirProvider
		cfg      gameconfig.Config
	)

	javaArgs := []string{"-Xmx2048M", "-Xms2048M", "-jar", "server.jar", "nogui"}

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		executor = system.NewMockCommandExecutor(ctrl)
		stopper = supervisor.NewMockStopper(ctrl)
		paths = env.NewBaseDirProvider(GinkgoT().TempDir())
		cfg = gameconfig.Default()
	})

	// blockUntilCancelled simulates a server which runs until it is killed,
	// or until release is closed.
	blockUntilCancelled := func(release <-chan struct{}) func(ctx context.Context, path string, args []string, options ...system.CmdOption) error {
		return func(ctx context.Context, path string, args []string, options ...system.CmdOption) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-release:
				return nil
			}
		}
	}

	It("should run the server in the base directory", func() {
		executor.EXPECT().Run(gomock.Any(), "java", javaArgs, gomock.Any()).DoAndReturn(
			func(ctx context.Context, path string, args []string, options ...system.CmdOption) error {
				cmd := &system.Cmd{Cmd: exec.Command(path, args...)}
				for _, opt := range options {
					opt(cmd)
				}
				Expect(cmd.Dir).To(Equal(paths.GetBaseDir()))
				return nil
			},
		)

		sut := supervisor.New(executor, paths, supervisor.WithJavaPath("java"))
		h, err := sut.Start(context.Background(), &cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Wait()).To(Succeed())
		Expect(h.Err()).To(Succeed())
	})

	It("should not spawn anything for unsupported server files", func() {
		cfg.JarName = "server.sh"

		sut := supervisor.New(executor, paths, supervisor.WithJavaPath("java"))
		h, err := sut.Start(context.Background(), &cfg)
		Expect(h).To(BeNil())

		var uerr *supervisor.UnsupportedServerFileError
		Expect(errors.As(err, &uerr)).To(BeTrue())
	})

	It("should report the exit error", func() {
		cause := errors.New("exit status 1")
		executor.EXPECT().Run(gomock.Any(), "java", javaArgs, gomock.Any()).Return(cause)

		var exitErr error
		exited := make(chan struct{})
		sut := supervisor.New(executor, paths, supervisor.WithJavaPath("java"), supervisor.WithExitHandler(func(err error) {
			exitErr = err
			close(exited)
		}))
		h, err := sut.Start(context.Background(), &cfg)
		Expect(err).NotTo(HaveOccurred())

		Eventually(h.Done()).Should(BeClosed())
		Expect(h.Wait()).To(MatchError(cause))
		Eventually(exited).Should(BeClosed())
		Expect(exitErr).To(MatchError(cause))
	})

	It("should keep running after the start context is cancelled", func() {
		release := make(chan struct{})
		executor.EXPECT().Run(gomock.Any(), "java", javaArgs, gomock.Any()).DoAndReturn(blockUntilCancelled(release))

		ctx, cancel := context.WithCancel(context.Background())
		sut := supervisor.New(executor, paths, supervisor.WithJavaPath("java"))
		h, err := sut.Start(ctx, &cfg)
		Expect(err).NotTo(HaveOccurred())

		cancel()
		Consistently(h.Done(), 100*time.Millisecond).ShouldNot(BeClosed())
		Expect(h.Err()).To(Succeed())

		close(release)
		Eventually(h.Done()).Should(BeClosed())
	})

	It("should stop gracefully with the stopper", func() {
		release := make(chan struct{})
		executor.EXPECT().Run(gomock.Any(), "java", javaArgs, gomock.Any()).DoAndReturn(blockUntilCancelled(release))
		stopper.EXPECT().Stop(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
			close(release)
			return nil
		})

		sut := supervisor.New(executor, paths, supervisor.WithJavaPath("java"), supervisor.WithStopper(stopper))
		h, err := sut.Start(context.Background(), &cfg)
		Expect(err).NotTo(HaveOccurred())

		Expect(h.Stop(context.Background())).To(Succeed())
		Expect(h.Wait()).To(Succeed())
	})

	It("should hand the stop context to the stopper", func() {
		type ctxKey struct{}
		stopCtx := context.WithValue(context.Background(), ctxKey{}, "stop")

		release := make(chan struct{})
		executor.EXPECT().Run(gomock.Any(), "java", javaArgs, gomock.Any()).DoAndReturn(blockUntilCancelled(release))
		stopper.EXPECT().Stop(gomock.Any()).DoAndReturn(func(ctx context.Context) error {
			defer close(release)
			Expect(ctx.Value(ctxKey{})).To(Equal("stop"))
			return nil
		})

		sut := supervisor.New(executor, paths, supervisor.WithJavaPath("java"), supervisor.WithStopper(stopper))
		h, err := sut.Start(context.Background(), &cfg)
		Expect(err).NotTo(HaveOccurred())

		Expect(h.Stop(stopCtx)).To(Succeed())
		Expect(h.Wait()).To(Succeed())
	})

	It("should kill the server when the stopper fails", func() {
		executor.EXPECT().Run(gomock.Any(), "java", javaArgs, gomock.Any()).DoAndReturn(blockUntilCancelled(nil))
		stopper.EXPECT().Stop(gomock.Any()).Return(errors.New("connection refused"))

		sut := supervisor.New(executor, paths, supervisor.WithJavaPath("java"), supervisor.WithStopper(stopper))
		h, err := sut.Start(context.Background(), &cfg)
		Expect(err).NotTo(HaveOccurred())

		Expect(h.Stop(context.Background())).To(Succeed())
		Expect(h.Wait()).To(MatchError(context.Canceled))
	})

	It("should kill the server when it does not exit in time", func() {
		executor.EXPECT().Run(gomock.Any(), "java", javaArgs, gomock.Any()).DoAndReturn(blockUntilCancelled(nil))
		stopper.EXPECT().Stop(gomock.Any()).Return(nil)

		sut := supervisor.New(executor, paths,
			supervisor.WithJavaPath("java"),
			supervisor.WithStopper(stopper),
			supervisor.WithStopTimeout(50*time.Millisecond),
		)
		h, err := sut.Start(context.Background(), &cfg)
		Expect(err).NotTo(HaveOccurred())

		Expect(h.Stop(context.Background())).To(Succeed())
		Expect(h.Wait()).To(MatchError(context.Canceled))
	})

	It("should do nothing when stopping an exited server", func() {
		executor.EXPECT().Run(gomock.Any(), "java", javaArgs, gomock.Any()).Return(nil)

		sut := supervisor.New(executor, paths, supervisor.WithJavaPath("java"), supervisor.WithStopper(stopper))
		h, err := sut.Start(context.Background(), &cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Wait()).To(Succeed())

		Expect(h.Stop(context.Background())).To(Succeed())
	})

	It("should restart the server on failure when enabled", func() {
		gomock.InOrder(
			executor.EXPECT().Run(gomock.Any(), "java", javaArgs, gomock.Any()).Return(errors.New("crashed")),
			executor.EXPECT().Run(gomock.Any(), "java", javaArgs, gomock.Any()).Return(nil),
		)

		sut := supervisor.New(executor, paths, supervisor.WithJavaPath("java"), supervisor.WithRestartOnFailure())
		h, err := sut.Start(context.Background(), &cfg)
		Expect(err).NotTo(HaveOccurred())

		Eventually(h.Done(), 5*time.Second).Should(BeClosed())
		Expect(h.Err()).To(Succeed())
	})

	It("should launch the wrapper script without looking up java", func() {
		cfg.JarName = "start.bat"
		executor.EXPECT().Run(gomock.Any(), "cmd", []string{"/C", "run.bat"}, gomock.Any()).Return(nil)

		sut := supervisor.New(executor, paths)
		h, err := sut.Start(context.Background(), &cfg)
		Expect(err).NotTo(HaveOccurred())
		Expect(h.Wait()).To(Succeed())
	})

	It("should fall back to java in PATH", func() {
		if runtime.GOOS == "linux" {
			executor.EXPECT().Run(gomock.Any(), "update-alternatives", []string{"--query", "java"}, gomock.Any()).Return(errors.New("not found"))
		}
		Expect(supervisor.FindJavaPath(context.Background(), executor)).To(Equal("java"))
	})
})
