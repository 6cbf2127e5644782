// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/siemens/dockermon/internal/test"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
	. "github.com/thediveo/success"
)

var _ = Describe("configuration files", func() {

	BeforeEach(test.LogToGinkgo)

	var path string

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "dockermon.yaml")
		Expect(os.WriteFile(path, []byte(fullConfig), 0o644)).To(Succeed())
	})

	It("loads a configuration file", func() {
		cfg := Successful(Load(NewViper(), path))
		Expect(cfg.Hosts).To(HaveLen(2))
		Expect(cfg.Publishers.Prometheus).To(Equal(":9323"))
	})

	It("reports missing configuration files", func() {
		Expect(Load(NewViper(), path+".missing")).Error().To(
			MatchError(ContainSubstring("cannot read configuration file")))
	})

	It("overrides publishers from the environment", func() {
		GinkgoT().Setenv(EnvPrefix+"_PUBLISHERS_PROMETHEUS", "127.0.0.1:9999")
		cfg := Successful(Load(NewViper(), path))
		Expect(cfg.Publishers.Prometheus).To(Equal("127.0.0.1:9999"))
	})

	It("defaults the publishers", func() {
		Expect(os.WriteFile(path, []byte("hosts:\n  - name: local\n"), 0o644)).To(Succeed())
		cfg := Successful(Load(NewViper(), path))
		Expect(cfg.Publishers).To(Equal(Publishers{Log: true}))
	})

	It("watches for changes", func(ctx context.Context) {
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).WithTimeout(goroutinesUnwindTimeout).WithPolling(goroutinesUnwindPolling).
				ShouldNot(HaveLeaked(goodgos))
		})

		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		var mu sync.Mutex
		var latest *Config
		Expect(Watch(ctx, NewViper(), path, func(cfg *Config) {
			mu.Lock()
			defer mu.Unlock()
			latest = cfg
		})).To(Succeed())
		latestHosts := func() []Host {
			mu.Lock()
			defer mu.Unlock()
			if latest == nil {
				return nil
			}
			return latest.Hosts
		}

		By("writing an invalid configuration")
		Expect(os.WriteFile(path, []byte("hosts:\n  - name: foo\n  - name: foo\n"), 0o644)).To(Succeed())
		Eventually(GinkgoWriter.(fmt.Stringer).String).Within(2 * time.Second).ProbeEvery(50 * time.Millisecond).
			Should(ContainSubstring("keeping previous configuration"))
		Expect(latestHosts()).NotTo(ContainElement(HaveField("Name", "foo")))

		By("writing a valid configuration")
		Expect(os.WriteFile(path, []byte("hosts:\n  - name: bar\n"), 0o644)).To(Succeed())
		Eventually(latestHosts).Within(2 * time.Second).ProbeEvery(50 * time.Millisecond).
			Should(ConsistOf(HaveField("Name", "bar")))
	})

})

var _ = Describe("configuration directories", func() {

	BeforeEach(test.LogToGinkgo)

	It("merges fragments", func() {
		dir := GinkgoT().TempDir()
		Expect(os.WriteFile(filepath.Join(dir, "local.yaml"),
			[]byte("hosts:\n  - name: local\n"), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "remote.yml"),
			[]byte("hosts:\n  - name: remote\n    url: tcp://10.0.0.1:2376\n"), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "publishers.yaml"),
			[]byte("publishers:\n  log: false\n  prometheus: \":9323\"\n"), 0o644)).To(Succeed())
		Expect(os.WriteFile(filepath.Join(dir, "README.md"), []byte("# hosts"), 0o644)).To(Succeed())

		cfg := Successful(Load(NewViper(), dir))
		Expect(cfg.Hosts).To(ConsistOf(
			HaveField("Name", "local"),
			HaveField("Name", "remote"),
		))
		Expect(cfg.Publishers).To(Equal(Publishers{Log: false, Prometheus: ":9323"}))
	})

	It("rejects duplicate hosts across fragments", func() {
		dir := GinkgoT().TempDir()
		for _, name := range []string{"a.yaml", "b.yaml"} {
			Expect(os.WriteFile(filepath.Join(dir, name),
				[]byte("hosts:\n  - name: local\n"), 0o644)).To(Succeed())
		}
		Expect(Load(NewViper(), dir)).Error().To(MatchError(ContainSubstring(`duplicate host name "local"`)))
	})

})
