package search_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/zoosearch/internal/fly"
	"github.com/san-kum/zoosearch/internal/hologram"
	"github.com/san-kum/zoosearch/internal/search"
)

func shortFly() fly.Config {
	return fly.Config{SampleRate: 50, Duration: 1, Policy: fly.DefaultPolicy()}
}

var _ = Describe("Product", func() {
	pool := []string{"x", "y", "z"}
	prod := search.NewProduct(pool)

	It("has pool size cubed candidates", func() {
		Expect(prod.Len()).To(Equal(27))
		Expect(search.NewProduct(nil).Len()).To(Equal(0))
	})

	It("varies vz fastest and vx slowest", func() {
		Expect(prod.At(0)).To(Equal(search.Triple{"x", "x", "x"}))
		Expect(prod.At(1)).To(Equal(search.Triple{"x", "x", "y"}))
		Expect(prod.At(3)).To(Equal(search.Triple{"x", "y", "x"}))
		Expect(prod.At(11)).To(Equal(search.Triple{"y", "x", "z"}))
		Expect(prod.At(26)).To(Equal(search.Triple{"z", "z", "z"}))
	})

	It("inverts At", func() {
		for i := 0; i < prod.Len(); i++ {
			Expect(prod.IndexOf(prod.At(i))).To(Equal(i))
		}
		Expect(prod.IndexOf(search.Triple{"x", "q", "x"})).To(Equal(-1))
	})

	It("does not share the caller's pool", func() {
		p := []string{"a", "b"}
		pr := search.NewProduct(p)
		p[0] = "changed"
		Expect(pr.At(0)).To(Equal(search.Triple{"a", "a", "a"}))
	})
})

var _ = Describe("Orchestrator", func() {
	var (
		ctx  context.Context
		pool []string
		cfg  search.Config
	)

	BeforeEach(func() {
		ctx = context.Background()
		pool = []string{"x", "y", "z"}
		cfg = search.Config{Fly: shortFly(), StopOnFault: true, Workers: 1}
	})

	Context("when every candidate diverges", func() {
		It("exhausts the product and succeeds without a hit", func() {
			var out bytes.Buffer
			o := search.New(cfg, factory(divergeUnless(nil)), search.WithProgress(&out))

			sum, err := o.Run(ctx, pool)
			Expect(err).NotTo(HaveOccurred())
			Expect(sum.Hit).To(BeNil())
			Expect(sum.Total).To(Equal(27))
			Expect(sum.Evaluated).To(Equal(27))
			Expect(sum.Counts[fly.Diverge]).To(Equal(27))

			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			Expect(lines).To(HaveLen(27))
			Expect(lines[0]).To(Equal("1/27 vx=[x] vy=[x] vz=[x] -> diverge"))
			Expect(lines[26]).To(ContainSubstring("vx=[z] vy=[z] vz=[z]"))
		})

		It("succeeds on an empty pool", func() {
			sum, err := search.New(cfg, factory(divergeUnless(nil))).Run(ctx, nil)
			Expect(err).NotTo(HaveOccurred())
			Expect(sum.Total).To(BeZero())
			Expect(sum.Hit).To(BeNil())
		})
	})

	DescribeTable("stops at the first non-divergent candidate",
		func(b fly.Behavior) {
			rule := divergeUnless(map[search.Triple]fly.Behavior{
				{"y", "x", "z"}: b,
				{"z", "z", "z"}: fly.Stable,
			})
			sum, err := search.New(cfg, factory(rule)).Run(ctx, pool)
			Expect(err).NotTo(HaveOccurred())
			Expect(sum.Hit).NotTo(BeNil())
			Expect(sum.Hit.Index).To(Equal(11))
			Expect(sum.Hit.Triple).To(Equal(search.Triple{"y", "x", "z"}))
			Expect(sum.Hit.Result.Behavior).To(Equal(b))
			Expect(sum.Hit.Program).To(Equal("vx=[y] vy=[x] vz=[z]"))
			Expect(sum.Evaluated).To(Equal(12))
		},
		Entry("stable", fly.Stable),
		Entry("fixed point", fly.FixedPoint),
		Entry("fault", fly.Fault),
	)

	It("skips faults when configured not to stop on them", func() {
		cfg.StopOnFault = false
		rule := divergeUnless(map[search.Triple]fly.Behavior{
			{"x", "x", "z"}: fly.Fault,
			{"x", "z", "z"}: fly.Fault,
			{"y", "y", "y"}: fly.Stable,
		})
		sum, err := search.New(cfg, factory(rule)).Run(ctx, pool)
		Expect(err).NotTo(HaveOccurred())
		Expect(sum.Hit.Index).To(Equal(13))
		Expect(sum.Faults).To(HaveLen(2))
		Expect(sum.Faults[0].Index).To(Equal(2))
		Expect(sum.Faults[1].Index).To(Equal(8))
		Expect(sum.Faults[0].Result.Err).To(MatchError(ContainSubstring("division by zero")))
	})

	It("aborts the whole search on a compile error", func() {
		pool = []string{"x", "bad"}
		sum, err := search.New(cfg, factory(divergeUnless(nil))).Run(ctx, pool)
		Expect(sum).To(BeNil())
		Expect(errors.Is(err, errBadExpr)).To(BeTrue())
		Expect(err.Error()).To(ContainSubstring("candidate 1"))
	})

	It("honours cancellation between candidates", func() {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := search.New(cfg, factory(divergeUnless(nil))).Run(cctx, pool)
		Expect(err).To(MatchError(context.Canceled))
	})

	DescribeTable("abandons the candidate in flight when cancelled",
		func(workers int) {
			cctx, cancel := context.WithCancel(ctx)
			defer cancel()
			cfg.Workers = workers
			cfg.Fly = fly.Config{SampleRate: 100000, Duration: 1, Policy: fly.DefaultPolicy()}
			led := newMemLedger()
			stable := func(search.Triple) fly.Behavior { return fly.Stable }
			newEngine := func() (search.Engine, error) {
				e := &fakeEngine{rule: stable}
				e.ResetProgram()
				return cancelOnUpdate{fakeEngine: e, cancel: cancel}, nil
			}

			sum, err := search.New(cfg, newEngine, search.WithLedger(led)).Run(cctx, pool)
			Expect(err).To(MatchError(context.Canceled))
			Expect(sum).To(BeNil())
			Expect(led.records).To(BeZero())
		},
		Entry("sequential", 1),
		Entry("parallel", 3),
	)

	It("rejects an invalid trajectory config", func() {
		cfg.Fly.SampleRate = 0
		_, err := search.New(cfg, factory(divergeUnless(nil))).Run(ctx, pool)
		Expect(err).To(HaveOccurred())
	})

	It("reports every candidate to observers", func() {
		var seen []search.Progress
		o := search.New(cfg, factory(divergeUnless(map[search.Triple]fly.Behavior{{"x", "y", "x"}: fly.Stable})),
			search.WithObserver(search.ObserverFunc(func(p search.Progress) { seen = append(seen, p) })))

		_, err := o.Run(ctx, pool)
		Expect(err).NotTo(HaveOccurred())
		Expect(seen).To(HaveLen(4))
		Expect(seen[3].Behavior).To(Equal(fly.Stable))
		Expect(seen[3].Evaluated).To(Equal(4))
		Expect(seen[3].Total).To(Equal(27))
	})

	It("hands the hit its occupancy grid", func() {
		o := search.New(cfg, factory(divergeUnless(map[search.Triple]fly.Behavior{{"x", "x", "y"}: fly.Stable})),
			search.WithGrid(func() (*hologram.Grid, error) { return hologram.New(2, 8, 8, 8) }))

		sum, err := o.Run(ctx, pool)
		Expect(err).NotTo(HaveOccurred())
		Expect(sum.Hit.Grid).NotTo(BeNil())
		Expect(sum.Hit.Grid.Total()).To(Equal(uint64(50)))
	})

	Describe("with a ledger", func() {
		It("replays recorded candidates instead of flying them again", func() {
			led := newMemLedger()
			rule := divergeUnless(map[search.Triple]fly.Behavior{{"x", "y", "z"}: fly.Stable})

			first, err := search.New(cfg, factory(rule), search.WithLedger(led)).Run(ctx, pool)
			Expect(err).NotTo(HaveOccurred())
			Expect(first.Hit.Index).To(Equal(5))
			Expect(first.Cached).To(BeZero())
			Expect(led.records).To(Equal(6))

			second, err := search.New(cfg, factory(rule), search.WithLedger(led)).Run(ctx, pool)
			Expect(err).NotTo(HaveOccurred())
			Expect(second.Hit.Index).To(Equal(5))
			Expect(second.Hit.Cached).To(BeTrue())
			Expect(second.Hit.Grid).To(BeNil())
			Expect(second.Cached).To(Equal(6))
			Expect(led.records).To(Equal(6))
		})
	})

	DescribeTable("returns the same hit for any worker count",
		func(workers int) {
			cfg.Workers = workers
			cfg.StopOnFault = false
			rule := divergeUnless(map[search.Triple]fly.Behavior{
				{"x", "y", "y"}: fly.Fault,
				{"y", "x", "z"}: fly.FixedPoint,
				{"y", "y", "x"}: fly.Stable,
				{"z", "x", "x"}: fly.Fault,
				{"z", "z", "x"}: fly.Stable,
			})
			var out bytes.Buffer
			sum, err := search.New(cfg, factory(rule), search.WithProgress(&out)).Run(ctx, pool)
			Expect(err).NotTo(HaveOccurred())
			Expect(sum.Hit).NotTo(BeNil())
			Expect(sum.Hit.Index).To(Equal(11))
			Expect(sum.Hit.Result.Behavior).To(Equal(fly.FixedPoint))
			Expect(sum.Faults).To(HaveLen(1))
			Expect(sum.Faults[0].Index).To(Equal(4))
			Expect(sum.Evaluated).To(Equal(12))
			Expect(sum.Counts[fly.Diverge]).To(Equal(10))
			Expect(sum.Counts[fly.Fault]).To(Equal(1))
			Expect(sum.Counts[fly.FixedPoint]).To(Equal(1))
			Expect(sum.Counts[fly.Stable]).To(BeZero())

			lines := strings.Split(strings.TrimSpace(out.String()), "\n")
			Expect(lines).To(HaveLen(12))
			for i, line := range lines {
				Expect(line).To(HavePrefix(fmt.Sprintf("%d/27 ", i+1)))
			}
		},
		Entry("sequential", 1),
		Entry("two workers", 2),
		Entry("four workers", 4),
		Entry("more workers than candidates", 64),
	)

	It("prefers an earlier hit over a later compile error when parallel", func() {
		cfg.Workers = 4
		pool = []string{"x", "y", "bad"}
		rule := divergeUnless(map[search.Triple]fly.Behavior{{"x", "x", "x"}: fly.Stable})

		sum, err := search.New(cfg, factory(rule)).Run(ctx, pool)
		Expect(err).NotTo(HaveOccurred())
		Expect(sum.Hit.Index).To(Equal(0))
	})

	It("reports a compile error that precedes every hit when parallel", func() {
		cfg.Workers = 3
		pool = []string{"x", "bad", "y"}
		rule := divergeUnless(map[search.Triple]fly.Behavior{{"y", "y", "y"}: fly.Stable})

		_, err := search.New(cfg, factory(rule)).Run(ctx, pool)
		Expect(errors.Is(err, errBadExpr)).To(BeTrue())
	})
})
