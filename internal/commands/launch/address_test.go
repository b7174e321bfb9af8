package launch

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = DescribeTable("rconAddress", func(ip string, port int, expected string) {
	Expect(rconAddress(ip, port)).To(Equal(expected))
},
	Entry("empty ip", "", 25575, "127.0.0.1:25575"),
	Entry("localhost", "localhost", 25575, "127.0.0.1:25575"),
	Entry("explicit ip", "192.168.1.10", 25576, "192.168.1.10:25576"),
	Entry("ipv6", "::1", 25575, "[::1]:25575"),
)
