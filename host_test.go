// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package dockermon

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/siemens/dockermon/engine"
	"github.com/siemens/dockermon/internal/fakeengine"
	"github.com/siemens/dockermon/internal/test"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
	. "github.com/thediveo/success"
)

const testInterval = 50 * time.Millisecond

var _ = Describe("host", func() {

	BeforeEach(test.LogToGinkgo)

	BeforeEach(func() {
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).WithTimeout(goroutinesUnwindTimeout).WithPolling(goroutinesUnwindPolling).
				ShouldNot(HaveLeaked(goodgos))
		})
	})

	var fake *fakeengine.Engine

	BeforeEach(func() {
		fake = fakeengine.New()
		for _, name := range []string{"zoo", "foo", "bar"} {
			c := fake.Add(name, "running")
			c.SetStats(runningStats(time.Now(), 100, 1000))
		}
	})

	connect := func(ctx context.Context, opts ...ConnectOption) *Host {
		GinkgoHelper()
		ctx, cancel := context.WithCancel(ctx)
		DeferCleanup(cancel)
		h := Successful(Connect(ctx, "testhost", fake,
			append([]ConnectOption{WithInterval(testInterval)}, opts...)...))
		DeferCleanup(h.Close)
		return h
	}

	It("connects and attaches to all containers", func(ctx context.Context) {
		ents := &entities{}
		h := connect(ctx, WithEntityObserver(ents), WithWorkers(1))
		Expect(h.Name()).To(Equal("testhost"))
		Expect(h.Containers()).To(Equal([]string{"bar", "foo", "zoo"}))
		for _, name := range h.Containers() {
			m, ok := h.Container(name)
			Expect(ok).To(BeTrue())
			Expect(m.Ready()).To(BeClosed())
			Expect(m.Info().State).To(Equal(StateRunning))
			Expect(m.Host()).To(Equal("testhost"))
		}
		Expect(ents.Added()).To(ConsistOf("testhost/"))

		Eventually(h.Info).Should(HaveField("Updated", Not(BeZero())))
		info := h.Info()
		Expect(info.Name).To(Equal("testhost"))
		Expect(info.Version).To(Equal("28.5.2"))
		Expect(info.APIVersion).To(Equal("1.51"))
		Expect(info.Containers).To(Equal(3))
		Expect(info.ContainersRunning).To(Equal(3))
		Expect(info.NCPU).To(Equal(4))
		Expect(info.KernelVersion).To(Equal("6.6.6"))
		Eventually(h.Info).Should(And(
			HaveField("MemoryMB", HaveValue(Equal(600.0))),
			HaveField("MemoryPercent", HaveValue(Equal(150.0)))))
	})

	It("isn't bothered by a missing version", func(ctx context.Context) {
		fake.FailVersion(errors.New("no version"))
		h := connect(ctx)
		Expect(h.Info().APIVersion).To(BeEmpty())
		Eventually(h.Info).Should(HaveField("Version", "28.5.2"))
	})

	It("fails to connect when it cannot list containers", func(ctx context.Context) {
		fake.FailList(errors.New("no list"))
		h, err := Connect(ctx, "testhost", fake)
		Expect(h).To(BeNil())
		Expect(err).To(MatchError(ErrConnect))
		Expect(err).To(MatchError(ContainSubstring("no list")))
		var cerr *ConnectError
		Expect(errors.As(err, &cerr)).To(BeTrue())
		Expect(cerr.Host).To(Equal("testhost"))
		Expect(fake.IsClosed()).To(BeTrue())
	})

	It("closes down", func(ctx context.Context) {
		h := Successful(Connect(ctx, "testhost", fake, WithInterval(testInterval)))
		m, _ := h.Container("foo")
		r := &recorder{}
		m.RegisterCallback(r)
		Expect(h.Done()).NotTo(BeClosed())
		h.Close()
		Expect(h.Done()).To(BeClosed())
		Expect(h.Err()).NotTo(HaveOccurred())
		Expect(m.Done()).To(BeClosed())
		Expect(r.Removed()).To(Equal(1))
		Expect(fake.IsClosed()).To(BeTrue())
		Eventually(fake.Subscribers).Should(BeZero())
		h.Close()
		Expect(h.Attach("baz")).To(BeFalse())
	})

	It("tears down when its context gets cancelled", func(ctx context.Context) {
		ctx, cancel := context.WithCancel(ctx)
		h := Successful(Connect(ctx, "testhost", fake, WithInterval(testInterval)))
		cancel()
		Eventually(h.Done()).Should(BeClosed())
		Expect(h.Err()).NotTo(HaveOccurred())
	})

	It("attaches and detaches containers on lifecycle events", func(ctx context.Context) {
		ents := &entities{}
		h := connect(ctx, WithEntityObserver(ents))

		fake.Create("baz")
		Eventually(h.Containers).Should(ContainElement("baz"))
		Eventually(ents.Added).Should(ConsistOf("testhost/", "testhost/baz"))
		m, ok := h.Container("baz")
		Expect(ok).To(BeTrue())
		r := &recorder{}
		m.RegisterCallback(r)
		Eventually(m.Info).Should(HaveField("State", StateCreated))

		By("ignoring unrelated events")
		fake.Emit(engine.Event{Type: "network", Action: engine.ActionCreate, Name: "baz2"})
		fake.Emit(engine.Event{Type: engine.ContainerEvent, Action: "start", Name: "baz3"})
		Consistently(h.Containers).WithTimeout(4 * testInterval).Should(HaveLen(4))

		By("detaching on destroy")
		fake.Destroy("baz")
		Eventually(h.Containers).ShouldNot(ContainElement("baz"))
		Expect(m.Done()).To(BeClosed())
		Expect(r.Removed()).To(Equal(1))
		_, ok = h.Container("baz")
		Expect(ok).To(BeFalse())
	})

	It("rejects duplicate attachments and unknown detachments", func(ctx context.Context) {
		h := connect(ctx)
		Expect(h.Attach("foo")).To(BeFalse())
		Expect(h.Detach("nada")).To(BeFalse())
		_, ok := h.Container("nada")
		Expect(ok).To(BeFalse())
		Expect(GinkgoWriter.(fmt.Stringer).String()).To(And(
			ContainSubstring("container foo already attached"),
			ContainSubstring("container nada not attached"),
			ContainSubstring("container nada not found")))
	})

	It("looks up containers quietly", func(ctx context.Context) {
		h := connect(ctx)
		m, ok := h.Lookup("foo")
		Expect(ok).To(BeTrue())
		Expect(m.Name()).To(Equal("foo"))
		_, ok = h.Lookup("nada")
		Expect(ok).To(BeFalse())
		Expect(GinkgoWriter.(fmt.Stringer).String()).NotTo(ContainSubstring("nada"))
	})

	It("attaches fresh monitors after detaching", func(ctx context.Context) {
		h := connect(ctx, WithInterval(time.Hour))
		m1, _ := h.Container("foo")
		cntr, _ := fake.Lookup("foo")
		cntr.SetStats(runningStats(time.Now().Add(time.Second), 200, 2000))
		Expect(m1.poll(ctx)).To(BeTrue())
		Expect(m1.Stats().CPUPercent).NotTo(BeNil())

		Expect(h.Detach("foo")).To(BeTrue())
		Expect(h.Attach("foo")).To(BeTrue())
		m2, _ := h.Container("foo")
		Expect(m2).NotTo(BeIdenticalTo(m1))
		Eventually(m2.Ready()).Should(BeClosed())
		Expect(m2.Info().Observed).To(BeTrue())
		Expect(m2.Stats().CPUPercent).To(BeNil())
		Expect(m2.Stats().NetworkSpeedUpKB).To(BeNil())
	})

	It("keeps aggregates unknown until a running container reports", func(ctx context.Context) {
		fake = fakeengine.New()
		cntr := fake.Add("foo", "exited")
		cntr.SetStats(runningStats(time.Now(), 100, 1000))
		h := connect(ctx)
		Eventually(h.Info).Should(HaveField("Updated", Not(BeZero())))
		Consistently(h.Info).WithTimeout(4 * testInterval).Should(And(
			HaveField("CPUPercent", BeNil()),
			HaveField("MemoryMB", BeNil()),
			HaveField("MemoryPercent", BeNil())))

		m, _ := h.Container("foo")
		Eventually(m.Start(ctx)).Should(Receive(BeNil()))
		Eventually(h.Info).Should(And(
			HaveField("MemoryMB", HaveValue(Equal(200.0))),
			HaveField("MemoryPercent", HaveValue(Equal(50.0)))))
		Eventually(h.Info).Should(HaveField("CPUPercent", HaveValue(BeZero())))
	})

	It("drops gone containers from the aggregates", func(ctx context.Context) {
		fake = fakeengine.New()
		cntr := fake.Add("foo", "running")
		cntr.SetStats(runningStats(time.Now(), 100, 1000))
		h := connect(ctx)
		Eventually(h.Info).Should(HaveField("MemoryMB", HaveValue(Equal(200.0))))

		fake.Remove("foo")
		m, _ := h.Container("foo")
		Eventually(m.Done()).Should(BeClosed())
		Expect(m.Info().State).To(Equal(StateUnknown))
		Eventually(h.Info).Should(And(
			HaveField("CPUPercent", BeNil()),
			HaveField("MemoryMB", BeNil()),
			HaveField("MemoryPercent", BeNil())))
	})

	It("terminates when the event stream ends", func(ctx context.Context) {
		h := connect(ctx)
		fake.EndStream(nil)
		Eventually(h.Done()).Should(BeClosed())
		Expect(h.Err()).To(MatchError(ErrStreamEnd))
		Expect(h.Containers()).NotTo(BeEmpty())
	})

	It("terminates when the event stream fails", func(ctx context.Context) {
		h := connect(ctx)
		fake.EndStream(errors.New("broken pipe"))
		Eventually(h.Done()).Should(BeClosed())
		Expect(h.Err()).To(And(
			MatchError(ErrStreamEnd),
			MatchError(ContainSubstring("broken pipe"))))
	})

	It("terminates when the engine information cannot be refreshed", func(ctx context.Context) {
		h := connect(ctx)
		fake.FailInfo(errors.New("no info"))
		Eventually(h.Done()).Should(BeClosed())
		Expect(h.Err()).To(MatchError(ContainSubstring("cannot refresh engine information: no info")))
	})

	It("waits only a limited time for monitors to come online", func(ctx context.Context) {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		m := &ContainerMonitor{ready: make(chan struct{})}
		start := time.Now()
		Expect(awaitOnline(ctx, "testhost", []*ContainerMonitor{m}, 100*time.Millisecond)).To(BeFalse())
		Expect(time.Since(start)).To(BeNumerically(">=", 100*time.Millisecond))
		Expect(GinkgoWriter.(fmt.Stringer).String()).To(ContainSubstring("not yet online"))

		m.markReady()
		Expect(awaitOnline(ctx, "testhost", []*ContainerMonitor{m}, time.Hour)).To(BeTrue())
		Expect(awaitOnline(ctx, "testhost", nil, time.Hour)).To(BeTrue())
	})

})
