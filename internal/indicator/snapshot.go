package indicator

import (
	"math"
	"time"

	"github.com/zzhtl/biga/internal/market"
)

// ============================================================================
// SNAPSHOT ASSEMBLY
// ============================================================================

// Params configures the indicator windows used for a snapshot run.
type Params struct {
	MACDFast   int     `json:"macd_fast"`
	MACDSlow   int     `json:"macd_slow"`
	MACDSignal int     `json:"macd_signal"`
	KDJPeriod  int     `json:"kdj_period"`
	RSIPeriod  int     `json:"rsi_period"`
	BollPeriod int     `json:"boll_period"`
	BollK      float64 `json:"boll_k"`
	ATRPeriod  int     `json:"atr_period"`
	DMIPeriod  int     `json:"dmi_period"`
	WRPeriod   int     `json:"wr_period"`
	ROCPeriod  int     `json:"roc_period"`
	CCIPeriod  int     `json:"cci_period"`
}

// DefaultParams returns the standard parameter set.
func DefaultParams() Params {
	return Params{
		MACDFast:   12,
		MACDSlow:   26,
		MACDSignal: 9,
		KDJPeriod:  9,
		RSIPeriod:  14,
		BollPeriod: 20,
		BollK:      2.0,
		ATRPeriod:  14,
		DMIPeriod:  14,
		WRPeriod:   14,
		ROCPeriod:  12,
		CCIPeriod:  20,
	}
}

// Snapshot holds every per-bar indicator value for one timeframe, plus
// derived boolean state. Values inside the warm-up window are NaN and the
// snapshot is flagged Incomplete.
type Snapshot struct {
	Date time.Time `json:"date"`

	MACDDif  float64 `json:"macd_dif"`
	MACDDea  float64 `json:"macd_dea"`
	MACDHist float64 `json:"macd_hist"`

	K float64 `json:"kdj_k"`
	D float64 `json:"kdj_d"`
	J float64 `json:"kdj_j"`

	RSI float64 `json:"rsi"`
	ATR float64 `json:"atr"`

	BollUpper  float64 `json:"boll_upper"`
	BollMiddle float64 `json:"boll_middle"`
	BollLower  float64 `json:"boll_lower"`

	PlusDI  float64 `json:"plus_di"`
	MinusDI float64 `json:"minus_di"`
	ADX     float64 `json:"adx"`

	WilliamsR float64 `json:"williams_r"`
	ROC       float64 `json:"roc"`
	OBV       float64 `json:"obv"`
	CCI       float64 `json:"cci"`

	MACDGoldenCross bool `json:"macd_golden_cross"`
	MACDDeathCross  bool `json:"macd_death_cross"`
	MACDAboveZero   bool `json:"macd_above_zero"`
	KDJGoldenCross  bool `json:"kdj_golden_cross"`
	KDJDeathCross   bool `json:"kdj_death_cross"`
	RSIOverbought   bool `json:"rsi_overbought"`
	RSIOversold     bool `json:"rsi_oversold"`

	Incomplete bool `json:"incomplete"`
}

// Compute assembles one Snapshot per input bar. Indicators whose minimum
// window exceeds the series length are skipped with a warning and their
// fields stay NaN; computation never aborts for short history. Identical
// input always yields identical output.
func Compute(bars []market.Bar, p Params) ([]Snapshot, []string) {
	n := len(bars)
	snaps := make([]Snapshot, n)
	var warnings []string

	highs := market.Highs(bars)
	lows := market.Lows(bars)
	closes := market.Closes(bars)
	volumes := market.Volumes(bars)

	for i := range snaps {
		snaps[i].Date = bars[i].Date
	}
	nanFill := func(set func(s *Snapshot)) {
		for i := range snaps {
			set(&snaps[i])
		}
	}

	macd, err := MACD(closes, p.MACDFast, p.MACDSlow, p.MACDSignal)
	if err != nil {
		warnings = append(warnings, "macd: "+err.Error())
		nanFill(func(s *Snapshot) { s.MACDDif, s.MACDDea, s.MACDHist = math.NaN(), math.NaN(), math.NaN() })
	} else {
		for i := range snaps {
			snaps[i].MACDDif = macd.DIF[i]
			snaps[i].MACDDea = macd.DEA[i]
			snaps[i].MACDHist = macd.Hist[i]
			snaps[i].MACDGoldenCross = macd.GoldenCrossAt(i)
			snaps[i].MACDDeathCross = macd.DeathCrossAt(i)
			snaps[i].MACDAboveZero = macd.AboveZeroAt(i)
		}
	}

	kdj, err := KDJ(highs, lows, closes, p.KDJPeriod)
	if err != nil {
		warnings = append(warnings, "kdj: "+err.Error())
		nanFill(func(s *Snapshot) { s.K, s.D, s.J = math.NaN(), math.NaN(), math.NaN() })
	} else {
		for i := range snaps {
			snaps[i].K = kdj.K[i]
			snaps[i].D = kdj.D[i]
			snaps[i].J = kdj.J[i]
			snaps[i].KDJGoldenCross = kdj.GoldenCrossAt(i)
			snaps[i].KDJDeathCross = kdj.DeathCrossAt(i)
		}
	}

	rsi, err := RSI(closes, p.RSIPeriod)
	if err != nil {
		warnings = append(warnings, "rsi: "+err.Error())
		nanFill(func(s *Snapshot) { s.RSI = math.NaN() })
	} else {
		for i := range snaps {
			snaps[i].RSI = rsi[i]
			snaps[i].RSIOverbought = valid(rsi[i]) && rsi[i] >= 70
			snaps[i].RSIOversold = valid(rsi[i]) && rsi[i] <= 30
		}
	}

	boll, err := Bollinger(closes, p.BollPeriod, p.BollK)
	if err != nil {
		warnings = append(warnings, "bollinger: "+err.Error())
		nanFill(func(s *Snapshot) { s.BollUpper, s.BollMiddle, s.BollLower = math.NaN(), math.NaN(), math.NaN() })
	} else {
		for i := range snaps {
			snaps[i].BollUpper = boll.Upper[i]
			snaps[i].BollMiddle = boll.Middle[i]
			snaps[i].BollLower = boll.Lower[i]
		}
	}

	atr, err := ATR(highs, lows, closes, p.ATRPeriod)
	if err != nil {
		warnings = append(warnings, "atr: "+err.Error())
		nanFill(func(s *Snapshot) { s.ATR = math.NaN() })
	} else {
		for i := range snaps {
			snaps[i].ATR = atr[i]
		}
	}

	dmi, err := DMIADX(highs, lows, closes, p.DMIPeriod)
	if err != nil {
		warnings = append(warnings, "dmi: "+err.Error())
		nanFill(func(s *Snapshot) { s.PlusDI, s.MinusDI, s.ADX = math.NaN(), math.NaN(), math.NaN() })
	} else {
		for i := range snaps {
			snaps[i].PlusDI = dmi.PlusDI[i]
			snaps[i].MinusDI = dmi.MinusDI[i]
			snaps[i].ADX = dmi.ADX[i]
		}
	}

	wr, err := WilliamsR(highs, lows, closes, p.WRPeriod)
	if err != nil {
		warnings = append(warnings, "williams_r: "+err.Error())
		nanFill(func(s *Snapshot) { s.WilliamsR = math.NaN() })
	} else {
		for i := range snaps {
			snaps[i].WilliamsR = wr[i]
		}
	}

	roc, err := ROC(closes, p.ROCPeriod)
	if err != nil {
		warnings = append(warnings, "roc: "+err.Error())
		nanFill(func(s *Snapshot) { s.ROC = math.NaN() })
	} else {
		for i := range snaps {
			snaps[i].ROC = roc[i]
		}
	}

	obv := OBV(closes, volumes)
	for i := range snaps {
		snaps[i].OBV = obv[i]
	}

	cci, err := CCI(highs, lows, closes, p.CCIPeriod)
	if err != nil {
		warnings = append(warnings, "cci: "+err.Error())
		nanFill(func(s *Snapshot) { s.CCI = math.NaN() })
	} else {
		for i := range snaps {
			snaps[i].CCI = cci[i]
		}
	}

	for i := range snaps {
		snaps[i].Incomplete = snapshotIncomplete(&snaps[i])
	}

	return snaps, warnings
}

func snapshotIncomplete(s *Snapshot) bool {
	for _, v := range []float64{
		s.MACDDif, s.MACDDea, s.MACDHist,
		s.K, s.D, s.J,
		s.RSI, s.ATR,
		s.BollUpper, s.BollMiddle, s.BollLower,
		s.PlusDI, s.MinusDI, s.ADX,
		s.WilliamsR, s.ROC, s.CCI,
	} {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
