package strategy

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/eddiefleurent/utica_condor/internal/market"
)

// fakeProvider serves scripted marks and deltas keyed by contract. Anything
// not scripted is unavailable, the same shape real chain gaps take.
type fakeProvider struct {
	today time.Time
	spot  float64

	marks  map[string]float64 // option mark by contract key
	deltas map[string]float64 // delta by contract key

	puts, calls []float64
	cash        float64
	pv          float64

	priceCalls  int
	greeksCalls int
}

var _ market.Provider = (*fakeProvider)(nil)

func newFakeProvider(spot float64) *fakeProvider {
	return &fakeProvider{
		today:  time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		spot:   spot,
		marks:  make(map[string]float64),
		deltas: make(map[string]float64),
		cash:   10000,
		pv:     10000,
	}
}

func contractKey(inst market.Instrument) string {
	return fmt.Sprintf("%s|%s|%.2f|%s",
		inst.Symbol, inst.Expiration.Format("2006-01-02"), inst.Strike, inst.Right)
}

func (f *fakeProvider) setMark(inst market.Instrument, mark float64) {
	f.marks[contractKey(inst)] = mark
}

func (f *fakeProvider) setDelta(inst market.Instrument, delta float64) {
	f.deltas[contractKey(inst)] = delta
}

func (f *fakeProvider) LastPrice(inst market.Instrument) (float64, error) {
	if !inst.IsOption() {
		return f.spot, nil
	}
	f.priceCalls++
	mark, ok := f.marks[contractKey(inst)]
	if !ok {
		return 0, fmt.Errorf("no mark for %s: %w", contractKey(inst), market.ErrUnavailable)
	}
	return mark, nil
}

func (f *fakeProvider) Greeks(inst market.Instrument) (*market.GreeksItem, error) {
	f.greeksCalls++
	delta, ok := f.deltas[contractKey(inst)]
	if !ok {
		return nil, fmt.Errorf("no greeks for %s: %w", contractKey(inst), market.ErrUnavailable)
	}
	return &market.GreeksItem{Delta: delta}, nil
}

func (f *fakeProvider) ChainStrikes(string, time.Time, int, float64) ([]float64, []float64, error) {
	return f.puts, f.calls, nil
}

func (f *fakeProvider) Positions() ([]market.PositionItem, error) { return nil, nil }

func (f *fakeProvider) Cash() (float64, error) { return f.cash, nil }

func (f *fakeProvider) PortfolioValue() (float64, error) { return f.pv, nil }

func (f *fakeProvider) Submit(market.Order) error { return nil }

func (f *fakeProvider) LiquidateAll() error { return nil }

func (f *fakeProvider) LiquidateSide(market.Right) error { return nil }

func (f *fakeProvider) Today() time.Time { return f.today }

func (f *fakeProvider) CycleDateAfter(t time.Time) time.Time { return t }

func (f *fakeProvider) AddMarker(market.Marker) {}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)
	return logger
}
