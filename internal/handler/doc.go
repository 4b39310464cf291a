// Package handler implements the client command table.
//
// Commands and their responses:
//
//	get.markets                                        → data.markets
//	get.candles  exchange symbol tf start end [meta]   → data.candles
//	get.trades   exchange symbol start end [meta]      → data.trades
//	exec.bt      exchange start end symbol tf
//	             includeCandles includeTrades [meta]   → bt.start, bt.candle*, bt.trade*, bt.end
//	submit.bt    backtest                              → data.bt
//	get.bts                                            → data.bts
//	bfx          payload                               → forwarded to the session's upstream proxy
package handler
