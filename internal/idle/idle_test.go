package idle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTimerFiresAfterQuietPeriod(t *testing.T) {
	src := NewTimer(20 * time.Millisecond)
	defer src.Stop()

	select {
	case <-src.Idle():
	case <-time.After(2 * time.Second):
		t.Fatal("idle signal never fired")
	}
}

func TestTimerKeepsFiringWhileQuiet(t *testing.T) {
	src := NewTimer(20 * time.Millisecond)
	defer src.Stop()

	for i := 0; i < 3; i++ {
		select {
		case <-src.Idle():
		case <-time.After(2 * time.Second):
			t.Fatalf("idle signal %d never fired", i+1)
		}
	}
}

func TestTouchDelaysSignal(t *testing.T) {
	src := NewTimer(60 * time.Millisecond)
	defer src.Stop()

	deadline := time.After(40 * time.Millisecond)
	for {
		select {
		case <-src.Idle():
			t.Fatal("fired despite activity")
		case <-deadline:
			return
		default:
			src.Touch()
			time.Sleep(5 * time.Millisecond)
		}
	}
}

func TestStopSilencesTimer(t *testing.T) {
	src := NewTimer(10 * time.Millisecond)
	src.Stop()

	select {
	case <-src.Idle():
		t.Fatal("fired after Stop")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestManualFire(t *testing.T) {
	src := NewManual()
	src.Fire()

	select {
	case <-src.Idle():
	default:
		t.Fatal("manual signal not delivered")
	}
	assert.NotPanics(t, func() { src.Touch(); src.Stop() })
}
