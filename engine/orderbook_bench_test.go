package engine

import (
	"fmt"
	"math/rand"
	"testing"
)

func BenchmarkMatchThroughput(b *testing.B) {
	ob := NewOrderbook()
	defer ob.Stop()

	randGen := rand.New(rand.NewSource(42))

	orders := make([]*Order, b.N)
	for i := 0; i < b.N; i++ {
		orders[i] = randomBenchmarkOrder(randGen, i)
	}

	var matched int64

	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		matched += int64(len(ob.AddOrder(orders[i])))
	}

	b.StopTimer()
	if elapsed := b.Elapsed(); elapsed > 0 {
		b.ReportMetric(float64(matched)/elapsed.Seconds(), "trades/sec")
	}
}

func randomBenchmarkOrder(rng *rand.Rand, idx int) *Order {
	side := Side(rng.Intn(2))
	var price int64
	base := int64(10_000)
	width := int64(100)
	if side == Buy {
		price = base + rng.Int63n(width)
	} else {
		price = base - rng.Int63n(width)
		if price <= 0 {
			price = 1
		}
	}

	otype := GoodTillCancel
	if rng.Intn(5) == 0 {
		otype = Market
	}

	return NewOrder(fmt.Sprintf("bench-%d", idx), side, otype, price, rng.Int63n(5)+1)
}
