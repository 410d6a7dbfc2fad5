package bots

import "limitless/engine"

func midPrice(infos engine.OrderbookLevelInfos) int64 {
	bid := int64(0)
	ask := int64(0)
	if len(infos.Bids) > 0 {
		bid = infos.Bids[0].Price
	}
	if len(infos.Asks) > 0 {
		ask = infos.Asks[0].Price
	}

	switch {
	case bid > 0 && ask > 0:
		return (bid + ask) / 2
	case bid > 0:
		return bid
	case ask > 0:
		return ask
	default:
		return 0
	}
}
