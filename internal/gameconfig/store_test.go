package gameconfig_test

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/kofuk/amcs/internal/env"
	"github.com/kofuk/amcs/internal/gameconfig"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Store", func() {
	var (
		dir string
		sut *gameconfig.Store
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		sut = gameconfig.NewStore(env.NewBaseDirProvider(dir))
	})

	writeConfig := func(content string) {
		Expect(os.WriteFile(filepath.Join(dir, gameconfig.FileName), []byte(content), 0644)).To(Succeed())
	}

	It("should report absence of the config file", func() {
		Expect(sut.Exists()).To(BeFalse())
		Expect(sut.Path()).To(Equal(filepath.Join(dir, "auto-server-config.json")))
	})

	DescribeTable("should load what was saved", func(cfg gameconfig.Config) {
		Expect(sut.Save(&cfg)).To(Succeed())
		Expect(sut.Exists()).To(BeTrue())

		loaded, err := sut.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(*loaded).To(Equal(cfg))
	},
		Entry("defaults", gameconfig.Default()),
		Entry("custom", gameconfig.Config{IP: "192.168.1.20", Port: 25566, MaxMemMB: 4096, NoGUI: false, JarName: "forge.jar"}),
		Entry("wrapper script", gameconfig.Config{IP: "localhost", Port: 1, MaxMemMB: 1, NoGUI: true, JarName: "run.bat"}),
	)

	It("should overwrite the existing config", func() {
		first := gameconfig.Default()
		Expect(sut.Save(&first)).To(Succeed())

		second := gameconfig.Default()
		second.MaxMemMB = 8192
		Expect(sut.Save(&second)).To(Succeed())

		loaded, err := sut.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(loaded.MaxMemMB).To(Equal(8192))

		entries, err := os.ReadDir(dir)
		Expect(err).NotTo(HaveOccurred())
		Expect(entries).To(HaveLen(1))
	})

	It("should refuse to save an invalid config", func() {
		cfg := gameconfig.Default()
		cfg.Port = 0
		Expect(sut.Save(&cfg)).To(MatchError(gameconfig.ErrConfig))
		Expect(sut.Exists()).To(BeFalse())
	})

	It("should fail when the file is missing", func() {
		cfg, err := sut.Load()
		Expect(cfg).To(BeNil())
		Expect(errors.Is(err, gameconfig.ErrConfig)).To(BeTrue())
		Expect(errors.Is(err, fs.ErrNotExist)).To(BeTrue())
	})

	DescribeTable("should reject broken config files", func(content string) {
		writeConfig(content)

		cfg, err := sut.Load()
		Expect(cfg).To(BeNil())
		Expect(err).To(MatchError(gameconfig.ErrConfig))
	},
		Entry("non-integer port", `{"ip": "localhost", "port": "abc", "max_mem_mb": 2048, "nogui": true, "jar_name": "server.jar"}`),
		Entry("fractional port", `{"ip": "localhost", "port": 255.65, "max_mem_mb": 2048, "nogui": true, "jar_name": "server.jar"}`),
		Entry("out of range port", `{"ip": "localhost", "port": 0, "max_mem_mb": 2048, "nogui": true, "jar_name": "server.jar"}`),
		Entry("missing field", `{"ip": "localhost", "port": 25565, "nogui": true, "jar_name": "server.jar"}`),
		Entry("null field", `{"ip": null, "port": 25565, "max_mem_mb": 2048, "nogui": true, "jar_name": "server.jar"}`),
		Entry("unknown field", `{"ip": "localhost", "port": 25565, "max_mem_mb": 2048, "nogui": true, "jar_name": "server.jar", "token": "x"}`),
		Entry("unsupported server file", `{"ip": "localhost", "port": 25565, "max_mem_mb": 2048, "nogui": true, "jar_name": "server.zip"}`),
		Entry("not json", `ip=localhost`),
		Entry("truncated", `{"ip": "localhost", "port": 255`),
		Entry("trailing data", `{"ip": "localhost", "port": 25565, "max_mem_mb": 2048, "nogui": true, "jar_name": "server.jar"} {}`),
		Entry("empty", ``),
	)

	It("should list all missing fields", func() {
		writeConfig(`{}`)

		_, err := sut.Load()
		var verr *gameconfig.ValidationError
		Expect(errors.As(err, &verr)).To(BeTrue())
		Expect(verr.Fields).To(HaveLen(5))
	})

	It("should remove the config file", func() {
		cfg := gameconfig.Default()
		Expect(sut.Save(&cfg)).To(Succeed())

		Expect(sut.Remove()).To(Succeed())
		Expect(sut.Exists()).To(BeFalse())
		Expect(sut.Remove()).To(Succeed())
	})
})
