package coordinator_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/dyncouple/internal/checkpoint"
	"github.com/san-kum/dyncouple/internal/config"
	"github.com/san-kum/dyncouple/internal/coordinator"
	"github.com/san-kum/dyncouple/internal/dynamo"
	"github.com/san-kum/dyncouple/internal/engine"
)

const coupledDoc = `
time: {start: 0, stop: 8}
engines:
  waves: {engine: spring_mass, configfile: waves.yaml}
  dunes: {engine: relaxation, configfile: dunes.yaml}
exchange:
  - {from: waves.pos, to: dunes.target}
  - {from: dunes.x, to: waves.force}
regimes:
  calm: {waves: {stiffness: 4, damping: 0.2}}
  storm: {waves: {stiffness: 16, damping: 0.05}, dunes: {tau: 2}}
scenario:
  - [0, calm]
  - [3, storm]
restart:
  checkpoint_times: [4]
  variables: [waves.pos, waves.vel, dunes.x]
output:
  variables: [waves.pos, waves.vel, dunes.x]
`

var _ = Describe("Coupled run", func() {
	var (
		ctx   context.Context
		cfg   *config.Config
		store *checkpoint.BlobStore
	)

	newRun := func(sink *memSink) *coordinator.Coordinator {
		m := checkpoint.NewManager("run-1", cfg.Restart.CheckpointTimes, cfg.Restart.Resolved, store)
		c, err := coordinator.New(cfg, engine.NewRegistry(),
			coordinator.WithSink(sink), coordinator.WithCheckpoints(m))
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(c.Close)
		return c
	}

	BeforeEach(func() {
		ctx = context.Background()
		dir := GinkgoT().TempDir()
		files := map[string]string{
			"coupling.yaml": coupledDoc,
			"waves.yaml":    "dt: 0.05\nstate: {pos: 1.0}\n",
			"dunes.yaml":    "dt: 0.3\nintegrator: euler\nparams: {tau: 20}\n",
		}
		for name, body := range files {
			Expect(os.WriteFile(filepath.Join(dir, name), []byte(body), 0644)).To(Succeed())
		}

		var err error
		cfg, err = config.Load(filepath.Join(dir, "coupling.yaml"))
		Expect(err).NotTo(HaveOccurred())

		store, err = checkpoint.OpenStore(ctx, "mem://", "", "")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(store.Close)
	})

	It("reaches the stop time with every engine in step", func() {
		sink := &memSink{}
		c := newRun(sink)
		Expect(c.Run(ctx)).To(Succeed())

		Expect(c.Time()).To(BeNumerically(">=", 8))
		for _, h := range c.Handles() {
			Expect(h.Time()).To(BeNumerically(">=", 8-0.3))
			Expect(h.Failures()).To(BeZero())
		}
		Expect(len(sink.rows)).To(Equal(c.Iteration() + 1))
	})

	It("writes exactly one checkpoint when crossing its boundary", func() {
		c := newRun(&memSink{})
		Expect(c.Run(ctx)).To(Succeed())

		times, err := store.List(ctx, "run-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(times).To(HaveLen(1))
		Expect(times[0]).To(BeNumerically(">=", 4))
	})

	It("resumes from a checkpoint onto the uninterrupted trajectory", func() {
		full := &memSink{}
		Expect(newRun(full).Run(ctx)).To(Succeed())

		rec, err := store.Latest(ctx, "run-1")
		Expect(err).NotTo(HaveOccurred())
		Expect(rec.Boundary).To(Equal(4.0))

		resumed := &memSink{}
		c := newRun(resumed)
		Expect(c.Start()).To(Succeed())
		Expect(c.Resume(rec)).To(Succeed())
		Expect(c.Time()).To(Equal(rec.Time))
		Expect(c.Iteration()).To(Equal(rec.Iteration))
		Expect(c.Run(ctx)).To(Succeed())

		Expect(resumed.index[0]).To(Equal(rec.OutputIndex))
		Expect(len(resumed.rows)).To(Equal(len(full.rows) - rec.OutputIndex))
		for i, row := range resumed.rows {
			want := full.rows[rec.OutputIndex+i]
			Expect(row.Time).To(Equal(want.Time))
			for q, v := range want.Values {
				Expect(row.Values[q]).To(Equal(v), "%s at t=%g", q, row.Time)
			}
		}
	})

	It("restores restart variables exactly", func() {
		c := newRun(&memSink{})
		Expect(c.Run(ctx)).To(Succeed())
		rec, err := store.Latest(ctx, "run-1")
		Expect(err).NotTo(HaveOccurred())

		again := newRun(&memSink{})
		Expect(again.Start()).To(Succeed())
		Expect(again.Resume(rec)).To(Succeed())

		for _, q := range cfg.Restart.Resolved {
			h, ok := again.Handle(q.Engine)
			Expect(ok).To(BeTrue())
			got, err := h.GetVar(q.Var)
			Expect(err).NotTo(HaveOccurred())
			want, _ := rec.Value(q)
			Expect(got).To(Equal(want))
			Expect(h.Time()).To(Equal(rec.EngineTimes[q.Engine]))
		}
	})
})

var _ = Describe("Supervise", func() {
	It("reports a clean finish and finalizes engines", func() {
		set := stubs("a", 1.0)
		cfg := set.config(0, 3)
		Expect(cfg.Validate()).To(Succeed())
		c, err := coordinator.New(cfg, set.registry())
		Expect(err).NotTo(HaveOccurred())

		var st coordinator.Status
		Eventually(coordinator.Supervise(context.Background(), c)).Should(Receive(&st))
		Expect(st.Err).NotTo(HaveOccurred())
		Expect(st.Panicked).To(BeFalse())
		Expect(st.Time).To(Equal(3.0))
		Expect(set.engines["a"].finalized).To(Equal(1))
	})

	It("contains a panic in an observer", func() {
		set := stubs("a", 1.0)
		cfg := set.config(0, 3)
		Expect(cfg.Validate()).To(Succeed())
		c, err := coordinator.New(cfg, set.registry(),
			coordinator.WithObserver(coordinator.ObserverFunc(func(r coordinator.RoundReport) {
				if r.Iteration == 2 {
					panic("observer exploded")
				}
			})))
		Expect(err).NotTo(HaveOccurred())

		var st coordinator.Status
		Eventually(coordinator.Supervise(context.Background(), c)).Should(Receive(&st))
		Expect(st.Panicked).To(BeTrue())
		Expect(st.Err).To(MatchError(ContainSubstring("observer exploded")))
		Expect(st.Iteration).To(Equal(2))
		Expect(set.engines["a"].finalized).To(Equal(1))
	})

	It("isolates a panicking engine step as a step error", func() {
		set := stubs("a", 1.0, "b", 1.0)
		set.engines["b"].failStep = func(n int) bool {
			if n == 1 {
				panic("engine exploded")
			}
			return false
		}
		cfg := set.config(0, 2)
		Expect(cfg.Validate()).To(Succeed())
		var errs []error
		c, err := coordinator.New(cfg, set.registry(),
			coordinator.WithObserver(coordinator.ObserverFunc(func(r coordinator.RoundReport) {
				errs = append(errs, r.Errors...)
			})))
		Expect(err).NotTo(HaveOccurred())

		var st coordinator.Status
		Eventually(coordinator.Supervise(context.Background(), c)).Should(Receive(&st))
		Expect(st.Panicked).To(BeFalse())
		Expect(st.Err).NotTo(HaveOccurred())
		Expect(errs).NotTo(BeEmpty())
		Expect(dynamo.KindOf(errs[0])).To(Equal(dynamo.KindStep))
	})
})
