// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package prometheus

import (
	"context"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/siemens/dockermon"
	"github.com/siemens/dockermon/internal/fakeengine"
	"github.com/siemens/dockermon/internal/fakeregistry"
	"github.com/siemens/dockermon/internal/test"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
	. "github.com/thediveo/success"
)

var _ = Describe("Prometheus collector", func() {

	BeforeEach(test.LogToGinkgo)

	BeforeEach(func() {
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).WithTimeout(goroutinesUnwindTimeout).WithPolling(goroutinesUnwindPolling).
				ShouldNot(HaveLeaked(goodgos))
		})
	})

	var reg *dockermon.Registry

	BeforeEach(func() {
		fake := fakeengine.New()
		fake.Add("web", "running").SetStats(fakeregistry.Stats(time.Now()))
		fake.Add("batch", "exited")
		fake.Add("sidecar", "running").SetStats(fakeregistry.Stats(time.Now()))
		reg = fakeregistry.Run(map[string]*fakeengine.Engine{"local": fake})
	})

	It("describes all metrics", func() {
		descs := make(chan *prometheus.Desc, 100)
		NewCollector(reg).Describe(descs)
		close(descs)
		Expect(descs).To(HaveLen(19))
		Expect(testutil.CollectAndCount(NewCollector(reg), "dockermon_host_up")).To(Equal(1))
	})

	It("publishes hosts and filtered containers", func() {
		c := NewCollector(reg, WithFilter(func(host, container string) (string, bool) {
			if container == "sidecar" {
				return "", false
			}
			if container == "web" {
				return "www", true
			}
			return container, true
		}))
		Eventually(func() error {
			return testutil.CollectAndCompare(c, strings.NewReader(`
# HELP dockermon_host_up Whether the container engine of a host is connected
# TYPE dockermon_host_up gauge
dockermon_host_up{host="local"} 1
# HELP dockermon_host_containers Number of containers of a host, regardless of their state
# TYPE dockermon_host_containers gauge
dockermon_host_containers{host="local"} 3
# HELP dockermon_host_containers_running Number of running containers of a host
# TYPE dockermon_host_containers_running gauge
dockermon_host_containers_running{host="local"} 2
# HELP dockermon_container_up Whether a container is running
# TYPE dockermon_container_up gauge
dockermon_container_up{container="batch",host="local"} 0
dockermon_container_up{container="www",host="local"} 1
# HELP dockermon_container_memory_mb Memory usage of a container without page cache in MiB
# TYPE dockermon_container_memory_mb gauge
dockermon_container_memory_mb{container="www",host="local"} 200
# HELP dockermon_container_memory_percent Memory usage of a container relative to its limit
# TYPE dockermon_container_memory_percent gauge
dockermon_container_memory_percent{container="www",host="local"} 50
`),
				"dockermon_host_up", "dockermon_host_containers", "dockermon_host_containers_running",
				"dockermon_container_up", "dockermon_container_memory_mb", "dockermon_container_memory_percent")
		}).Within(2 * time.Second).ProbeEvery(50 * time.Millisecond).Should(Succeed())
	})

	It("serves metrics until cancelled", func(ctx context.Context) {
		l := Successful(net.Listen("tcp", "127.0.0.1:0"))
		ctx, cancel := context.WithCancel(ctx)
		served := make(chan error, 1)
		go func() { served <- Serve(ctx, l, NewCollector(reg)) }()

		scrape := func() (string, error) {
			resp, err := http.Get("http://" + l.Addr().String() + "/metrics")
			if err != nil {
				return "", err
			}
			defer resp.Body.Close()
			raw, err := io.ReadAll(resp.Body)
			return string(raw), err
		}
		Eventually(scrape).Should(MatchRegexp(
			`dockermon_container_info\{[^}]*container="web"[^}]*state="running"[^}]*\} 1`))
		body := Successful(scrape())
		Expect(body).To(ContainSubstring(`dockermon_host_up{host="local"} 1`))
		Expect(body).To(ContainSubstring("go_goroutines"))
		Expect(body).NotTo(ContainSubstring(`status="`))

		cancel()
		Eventually(served).Should(Receive(BeNil()))
		http.DefaultClient.CloseIdleConnections()
	})

})
