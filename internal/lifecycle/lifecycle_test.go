package lifecycle

import (
	"testing"
	"time"

	"github.com/personacore/persona-memory/internal/model"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func mem(salience float64, activations int) model.Memory {
	return model.Memory{
		Salience:        salience,
		ActivationCount: activations,
		CreatedAt:       testNow.Add(-48 * time.Hour),
	}
}

func TestRescore_PullsTowardOne(t *testing.T) {
	m := mem(0.5, 1)
	s := Rescore(m, testNow)
	if s <= 0.5 || s > 1 {
		t.Fatalf("rescore 0.5 -> %f", s)
	}
}

func TestRescore_DiminishingGain(t *testing.T) {
	fresh := Rescore(mem(0.5, 1), testNow) - 0.5
	worn := Rescore(mem(0.5, 150), testNow) - 0.5
	if worn >= fresh {
		t.Fatalf("gain should shrink with activations: fresh=%f worn=%f", fresh, worn)
	}
	if worn <= 0 {
		t.Fatalf("gain must stay positive, got %f", worn)
	}
}

func TestRescore_Floor(t *testing.T) {
	m := mem(0, 1)
	m.Salience = 0
	if s := Rescore(m, testNow); s < 0.05 {
		t.Fatalf("rescore below floor: %f", s)
	}
}

func TestRescore_Clamped(t *testing.T) {
	m := mem(0.999, 1)
	m.EmotionScore = 1
	m.NarrativeScore = 1
	if s := Rescore(m, testNow); s > 1 {
		t.Fatalf("rescore above 1: %f", s)
	}
}

func TestRescore_EmotionAnchorLifts(t *testing.T) {
	plain := Rescore(mem(0.1, 1), testNow)
	emotional := mem(0.1, 1)
	emotional.EmotionScore = 0.9
	emotional.NarrativeScore = 0.8
	if lifted := Rescore(emotional, testNow); lifted <= plain {
		t.Fatalf("emotional anchor should lift salience: %f vs %f", lifted, plain)
	}
}

func TestClassify_ScarIsPermanent(t *testing.T) {
	m := mem(0.01, 1)
	m.State = "scar"
	m.CreatedAt = testNow.Add(-365 * 24 * time.Hour)
	if got := Classify(m, 0.01, testNow); got != "scar" {
		t.Fatalf("scar reclassified to %q", got)
	}
}

func TestClassify_States(t *testing.T) {
	recent := testNow.Add(-24 * time.Hour)
	old := testNow.Add(-90 * 24 * time.Hour)

	cases := []struct {
		name      string
		salience  float64
		created   time.Time
		activated *time.Time
		want      string
	}{
		{"hot when salient and recently active", 0.8, recent, &recent, "hot"},
		{"warm when salient but idle", 0.8, old, &old, "warm"},
		{"warm at mid salience", 0.5, recent, nil, "warm"},
		{"cold at low salience", 0.3, old, nil, "cold"},
		{"cold when young regardless of salience", 0.05, recent, nil, "cold"},
		{"archive when old and faded", 0.05, old, nil, "archive"},
	}
	for _, tc := range cases {
		m := model.Memory{State: "warm", CreatedAt: tc.created, LastActivatedAt: tc.activated}
		if got := Classify(m, tc.salience, testNow); got != tc.want {
			t.Fatalf("%s: got %q, want %q", tc.name, got, tc.want)
		}
	}
}
