package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"runtime/pprof"
	"strconv"
	"time"

	"limitless/engine"
)

func main() {
	totalOrders := flag.Int("orders", 500000, "number of orders to submit")
	priceLevels := flag.Int64("price-levels", 200, "unique price levels around the mid")
	tick := flag.Int64("tick", 1, "tick size for limit prices")
	basePrice := flag.Int64("base-price", 10000, "mid price used for randomization")
	cancelEvery := flag.Int("cancel-every", 0, "cancel a random resting order every N submissions")
	seed := flag.Int64("seed", time.Now().UnixNano(), "seed for deterministic random streams")
	cpuProfile := flag.String("cpuprofile", "", "write cpu profile to file")
	memProfile := flag.String("memprofile", "", "write heap profile to file")
	marketRatio := flag.Int("market-ratio", 5, "1 in N orders will be market instead of limit")
	fakRatio := flag.Int("fak-ratio", 10, "1 in N limit orders will be fill-and-kill instead of good-till-cancel")
	flag.Parse()

	rng := rand.New(rand.NewSource(*seed))

	if *cpuProfile != "" {
		f, err := os.Create(*cpuProfile)
		if err != nil {
			panic(err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			panic(err)
		}
		defer pprof.StopCPUProfile()
	}

	book := engine.NewOrderbook()
	defer book.Stop()

	var matches int64

	start := time.Now()
	for i := 0; i < *totalOrders; i++ {
		order := nextRandomOrder(rng, i, *basePrice, *priceLevels, *tick, *marketRatio, *fakRatio)
		trades := book.AddOrder(order)
		matches += int64(len(trades))

		if *cancelEvery > 0 && i > 0 && i%*cancelEvery == 0 {
			target := rng.Intn(i)
			book.CancelOrder("lg-" + strconv.Itoa(target))
		}
	}
	elapsed := time.Since(start)

	if *memProfile != "" {
		f, err := os.Create(*memProfile)
		if err == nil {
			defer f.Close()
			_ = pprof.WriteHeapProfile(f)
		}
	}

	ordersPerSec := float64(*totalOrders) / elapsed.Seconds()
	tradesPerSec := float64(matches) / elapsed.Seconds()

	fmt.Printf("submitted %d orders in %s (%.0f orders/s)\n", *totalOrders, elapsed.Truncate(time.Millisecond), ordersPerSec)
	fmt.Printf("matched %d trades (%.0f trades/s)\n", matches, tradesPerSec)
	fmt.Printf("config: tick=%d market-ratio=1/%d fak-ratio=1/%d\n", *tick, *marketRatio, *fakRatio)
}

func nextRandomOrder(rng *rand.Rand, id int, mid int64, width int64, tick int64, marketRatio, fakRatio int) *engine.Order {
	side := engine.Side(rng.Intn(2))
	var price int64
	if side == engine.Buy {
		price = mid + rng.Int63n(width)
	} else {
		offset := rng.Int63n(width)
		if mid > offset {
			price = mid - offset
		} else {
			price = tick
		}
	}
	price = (price / tick) * tick

	otype := engine.GoodTillCancel
	switch {
	case marketRatio > 0 && rng.Intn(marketRatio) == 0:
		otype = engine.Market
	case fakRatio > 0 && rng.Intn(fakRatio) == 0:
		otype = engine.FillAndKill
	}

	qty := rng.Int63n(5) + 1

	return engine.NewOrder("lg-"+strconv.Itoa(id), side, otype, price, qty)
}
