package ngrok_test

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/kofuk/amcs/internal/env"
	"github.com/kofuk/amcs/internal/system"
	"github.com/kofuk/amcs/internal/tunnel"
	"github.com/kofuk/amcs/internal/tunnel/ngrok"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/mock/gomock"
)

const tunnelsURL = "http://127.0.0.1:4040/api/tunnels"

func tunnelList(addr string) map[string]any {
	return map[string]any{
		"tunnels": []map[string]any{
			{
				"name":       "command_line",
				"public_url": "tcp://0.tcp.jp.ngrok.io:12345",
				"proto":      "tcp",
				"config": map[string]any{
					"addr":    addr,
					"inspect": false,
				},
			},
		},
		"uri": "/api/tunnels",
	}
}

func applyOptions(options []system.CmdOption) *system.Cmd {
	cmd := &system.Cmd{Cmd: &exec.Cmd{}}
	for _, opt := range options {
		opt(cmd)
	}
	return cmd
}

var _ = Describe("Open", func() {
	var (
		ctrl     *gomock.Controller
		executor *system.MockCommandExecutor
		client   *http.Client
		binPath  string
		paths    *env.BaseDirProvider
	)

	tcpArgs := []string{"tcp", "25565", "--log", "stdout", "--log-format", "json"}

	runUntilCancelled := func(ctx context.Context, path string, args []string, options ...system.CmdOption) error {
		cmd := applyOptions(options)
		cmd.Stdout.Write([]byte(`{"lvl":"info","msg":"no configuration paths supplied","t":"2024-01-01T00:00:00+09:00"}` + "\n"))
		<-ctx.Done()
		return ctx.Err()
	}

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		executor = system.NewMockCommandExecutor(ctrl)
		client = &http.Client{}
		httpmock.ActivateNonDefault(client)
		DeferCleanup(httpmock.DeactivateAndReset)

		dir := GinkgoT().TempDir()
		paths = env.NewBaseDirProvider(dir)
		binPath = filepath.Join(dir, "ngrok-custom")
		Expect(os.WriteFile(binPath, []byte("bin"), 0755)).To(Succeed())
	})

	newAgent := func(options ...ngrok.Option) *ngrok.Agent {
		return ngrok.New(executor, paths, append([]ngrok.Option{
			ngrok.WithBinaryPath(binPath),
			ngrok.WithHTTPClient(client),
			ngrok.WithPollTimeout(5 * time.Second),
		}, options...)...)
	}

	It("should return the public address", func() {
		executor.EXPECT().Run(gomock.Any(), binPath, tcpArgs, gomock.Any()).DoAndReturn(runUntilCancelled)
		httpmock.RegisterResponder(http.MethodGet, tunnelsURL, httpmock.NewJsonResponderOrPanic(http.StatusOK, tunnelList("localhost:25565")))

		t, err := newAgent().Open(context.Background(), 25565)
		Expect(err).NotTo(HaveOccurred())
		Expect(t.PublicURL).To(Equal("tcp://0.tcp.jp.ngrok.io:12345"))
		Expect(t.Address()).To(Equal("0.tcp.jp.ngrok.io:12345"))
		Consistently(t.Done(), 100*time.Millisecond).ShouldNot(BeClosed())

		Expect(t.Close()).To(Succeed())
		Expect(t.Done()).To(BeClosed())
	})

	It("should wait until the tunnel for the port shows up", func() {
		executor.EXPECT().Run(gomock.Any(), binPath, tcpArgs, gomock.Any()).DoAndReturn(runUntilCancelled)

		var calls atomic.Int32
		httpmock.RegisterResponder(http.MethodGet, tunnelsURL, func(req *http.Request) (*http.Response, error) {
			switch calls.Add(1) {
			case 1:
				return nil, errors.New("connection refused")
			case 2:
				return httpmock.NewJsonResponse(http.StatusOK, map[string]any{"tunnels": []any{}})
			case 3:
				return httpmock.NewJsonResponse(http.StatusOK, tunnelList("localhost:8080"))
			default:
				return httpmock.NewJsonResponse(http.StatusOK, tunnelList("localhost:25565"))
			}
		})

		t, err := newAgent().Open(context.Background(), 25565)
		Expect(err).NotTo(HaveOccurred())
		Expect(t.Address()).To(Equal("0.tcp.jp.ngrok.io:12345"))
		Expect(calls.Load()).To(BeEquivalentTo(4))
		Expect(t.Close()).To(Succeed())
	})

	It("should report the agent error when it exits early", func() {
		executor.EXPECT().Run(gomock.Any(), binPath, tcpArgs, gomock.Any()).DoAndReturn(
			func(ctx context.Context, path string, args []string, options ...system.CmdOption) error {
				cmd := applyOptions(options)
				cmd.Stdout.Write([]byte(`{"lvl":"eror","msg":"session closing","obj":"tunnels.session",`))
				cmd.Stdout.Write([]byte(`"err":"authentication failed: Usage of ngrok requires a verified account and authtoken.\n\nERR_NGROK_4018\n"}` + "\n"))
				return errors.New("exit status 1")
			},
		)
		httpmock.RegisterResponder(http.MethodGet, tunnelsURL, httpmock.NewErrorResponder(errors.New("connection refused")))

		t, err := newAgent().Open(context.Background(), 25565)
		Expect(t).To(BeNil())

		var terr *tunnel.Error
		Expect(errors.As(err, &terr)).To(BeTrue())
		Expect(terr.Op).To(Equal(tunnel.OpOpen))
		Expect(err.Error()).To(ContainSubstring("ERR_NGROK_4018"))
		Expect(err.Error()).To(ContainSubstring("exit status 1"))
	})

	It("should give up when the tunnel never appears", func() {
		executor.EXPECT().Run(gomock.Any(), binPath, tcpArgs, gomock.Any()).DoAndReturn(runUntilCancelled)
		httpmock.RegisterResponder(http.MethodGet, tunnelsURL, httpmock.NewJsonResponderOrPanic(http.StatusOK, map[string]any{"tunnels": []any{}}))

		t, err := newAgent(ngrok.WithPollTimeout(500*time.Millisecond)).Open(context.Background(), 25565)
		Expect(t).To(BeNil())

		var terr *tunnel.Error
		Expect(errors.As(err, &terr)).To(BeTrue())
		Expect(terr.Op).To(Equal(tunnel.OpOpen))
	})

	It("should give up when the agent API never answers", func() {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		Expect(err).NotTo(HaveOccurred())

		var (
			mu    sync.Mutex
			conns []net.Conn
		)
		DeferCleanup(func() {
			ln.Close()
			mu.Lock()
			defer mu.Unlock()
			for _, conn := range conns {
				conn.Close()
			}
		})

		// Accept connections but never write a response.
		go func() {
			for {
				conn, err := ln.Accept()
				if err != nil {
					return
				}
				mu.Lock()
				conns = append(conns, conn)
				mu.Unlock()
			}
		}()

		executor.EXPECT().Run(gomock.Any(), binPath, tcpArgs, gomock.Any()).DoAndReturn(runUntilCancelled)

		agent := ngrok.New(executor, paths,
			ngrok.WithBinaryPath(binPath),
			ngrok.WithAPIAddr(ln.Addr().String()),
			ngrok.WithPollTimeout(500*time.Millisecond),
		)

		result := make(chan error, 1)
		go func() {
			_, err := agent.Open(context.Background(), 25565)
			result <- err
		}()

		var openErr error
		Eventually(result, 3*time.Second).Should(Receive(&openErr))

		var terr *tunnel.Error
		Expect(errors.As(openErr, &terr)).To(BeTrue())
		Expect(terr.Op).To(Equal(tunnel.OpOpen))
	})

	It("should pass the authtoken to the agent", func() {
		executor.EXPECT().Run(gomock.Any(), binPath, tcpArgs, gomock.Any()).DoAndReturn(
			func(ctx context.Context, path string, args []string, options ...system.CmdOption) error {
				cmd := applyOptions(options)
				Expect(cmd.Env).To(ContainElement("NGROK_AUTHTOKEN=2abcSECRET"))
				<-ctx.Done()
				return ctx.Err()
			},
		)
		httpmock.RegisterResponder(http.MethodGet, tunnelsURL, httpmock.NewJsonResponderOrPanic(http.StatusOK, tunnelList("localhost:25565")))

		t, err := newAgent(ngrok.WithAuthtoken("2abcSECRET")).Open(context.Background(), 25565)
		Expect(err).NotTo(HaveOccurred())
		Expect(t.Close()).To(Succeed())
	})

	It("should use the configured API address", func() {
		executor.EXPECT().Run(gomock.Any(), binPath, tcpArgs, gomock.Any()).DoAndReturn(runUntilCancelled)
		httpmock.RegisterResponder(http.MethodGet, "http://127.0.0.1:4041/api/tunnels", httpmock.NewJsonResponderOrPanic(http.StatusOK, tunnelList("127.0.0.1:25565")))

		t, err := newAgent(ngrok.WithAPIAddr("127.0.0.1:4041")).Open(context.Background(), 25565)
		Expect(err).NotTo(HaveOccurred())
		Expect(t.Close()).To(Succeed())
	})

	It("should fail without an agent", func() {
		agent := ngrok.New(executor, paths, ngrok.WithBinaryPath(filepath.Join(paths.GetBaseDir(), "missing")))
		_, err := agent.Open(context.Background(), 25565)
		Expect(err).To(MatchError(ngrok.ErrNotInstalled))
	})
})
