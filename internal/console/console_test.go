// (c) Siemens AG 2026
//
// SPDX-License-Identifier: MIT

package console

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/siemens/dockermon"
	"github.com/siemens/dockermon/internal/fakeengine"
	"github.com/siemens/dockermon/internal/fakeregistry"
	"github.com/siemens/dockermon/internal/test"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	. "github.com/onsi/gomega/gleak"
)

func key(k string) tea.KeyMsg {
	switch k {
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
}

var _ = Describe("console", func() {

	BeforeEach(test.LogToGinkgo)

	BeforeEach(func() {
		goodgos := Goroutines()
		DeferCleanup(func() {
			Eventually(Goroutines).WithTimeout(goroutinesUnwindTimeout).WithPolling(goroutinesUnwindPolling).
				ShouldNot(HaveLeaked(goodgos))
		})
	})

	var fake *fakeengine.Engine
	var reg *dockermon.Registry

	BeforeEach(func() {
		fake = fakeengine.New()
		fake.Add("web", "running").SetStats(fakeregistry.Stats(time.Now()))
		fake.Add("batch", "exited")
		fake.Add("secret", "running").SetStats(fakeregistry.Stats(time.Now()))
		reg = fakeregistry.Run(map[string]*fakeengine.Engine{"local": fake})
	})

	filter := func(_, container string) (string, bool) {
		switch container {
		case "secret":
			return "", false
		case "web":
			return "frontend", true
		}
		return container, true
	}

	It("snapshots filtered and renamed containers", func() {
		Eventually(func() []HostSnapshot { return Snapshot(reg, filter) }).Should(ConsistOf(
			And(
				HaveField("Name", "local"),
				HaveField("Connected", true),
				HaveField("Containers", ConsistOf(
					And(HaveField("Name", "batch"), HaveField("Display", "batch"),
						HaveField("Info.State", dockermon.StateExited)),
					And(HaveField("Name", "web"), HaveField("Display", "frontend"),
						HaveField("Info.State", dockermon.StateRunning),
						HaveField("Stats.MemoryMB", HaveValue(BeEquivalentTo(200)))),
				)),
			)))
	})

	It("renders hosts and containers", func() {
		s := Render([]HostSnapshot{
			{Name: "gone"},
			{
				Name:      "local",
				Connected: true,
				Info: dockermon.HostInfo{
					Version: "28.5.2", Containers: 2, ContainersRunning: 1,
					NCPU: 4, MemTotal: 16 << 30,
				},
				Containers: []ContainerSnapshot{
					{Display: "frontend", Info: dockermon.ContainerInfo{
						Observed: true, State: dockermon.StateRunning, Status: "Up 6 days"}},
					{Display: "fresh"},
				},
			},
		}, 0)
		Expect(s).To(ContainSubstring("gone"))
		Expect(s).To(ContainSubstring("not connected"))
		Expect(s).To(ContainSubstring("local: engine 28.5.2, 1/2 containers running, 4 CPUs, 16 GiB"))
		Expect(s).To(ContainSubstring("frontend"))
		Expect(s).To(ContainSubstring("Up 6 days"))
		Expect(s).To(ContainSubstring("not yet observed"))
	})

	It("formats gauges", func() {
		v := 200.0
		Expect(mebibytes(&v)).To(Equal("200 MiB"))
		Expect(mebibytes(nil)).To(Equal("-"))
		kib := 2.0
		Expect(speed(&kib)).To(Equal("2.0 KiB/s"))
		pct := 12.34
		Expect(percent(&pct)).To(Equal("12.34%"))
	})

	It("moves the cursor and runs commands", func(ctx context.Context) {
		var model tea.Model = New(ctx, reg, filter)
		Expect(model.Init()).NotTo(BeNil())
		Eventually(func() int {
			model, _ = model.Update(tickMsg(time.Now()))
			return model.(Model).count()
		}).Should(Equal(2))

		model, _ = model.Update(key("up"))
		Expect(model.(Model).cursor).To(Equal(0))
		model, _ = model.Update(key("down"))
		model, _ = model.Update(key("down"))
		Expect(model.(Model).cursor).To(Equal(1))
		sel, ok := model.(Model).selected()
		Expect(ok).To(BeTrue())
		Expect(sel.Display).To(Equal("frontend"))

		By("stopping the selected container")
		model, cmd := model.Update(key("x"))
		Expect(cmd).NotTo(BeNil())
		model, _ = model.Update(cmd())
		Expect(model.View()).To(ContainSubstring("stop frontend: done"))
		c, _ := fake.Lookup("web")
		Expect(c.Stops()).To(Equal(int64(1)))

		By("failing to start the selected container")
		c.FailCommands(errors.New("no power"))
		model, cmd = model.Update(key("s"))
		model, _ = model.Update(cmd())
		Expect(model.View()).To(ContainSubstring("no power"))

		By("quitting")
		_, cmd = model.Update(key("q"))
		Expect(cmd()).To(Equal(tea.Quit()))
	})

})
