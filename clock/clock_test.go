package clock_test

import (
	"testing"
	"time"

	"github.com/xraph/goalpace/clock"
)

func TestFixed(t *testing.T) {
	at := time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)
	c := clock.Fixed(at)
	if !c.Now().Equal(at) {
		t.Errorf("Now() = %v, want %v", c.Now(), at)
	}
}

func TestManual(t *testing.T) {
	at := time.Date(2024, time.June, 1, 10, 0, 0, 0, time.UTC)
	m := clock.NewManual(at)

	m.Advance(90 * time.Minute)
	if want := at.Add(90 * time.Minute); !m.Now().Equal(want) {
		t.Errorf("after Advance, Now() = %v, want %v", m.Now(), want)
	}

	m.Set(at)
	if !m.Now().Equal(at) {
		t.Errorf("after Set, Now() = %v, want %v", m.Now(), at)
	}
}

func TestOrReal(t *testing.T) {
	before := time.Now()
	got := clock.OrReal(nil).Now()
	if got.Before(before) {
		t.Errorf("OrReal(nil).Now() = %v, before %v", got, before)
	}

	at := time.Unix(0, 0)
	if got := clock.OrReal(clock.Fixed(at)).Now(); !got.Equal(at) {
		t.Errorf("OrReal(fixed).Now() = %v, want %v", got, at)
	}
}
