// Command analyze-kernel prints the filter geometry and measured frequency
// response for each quality tier. It exists to sanity-check kernel design
// changes: per-phase DC gain must sit at unity and the measured stopband
// must reach each tier's design attenuation.
package main

import (
	"fmt"

	"github.com/tphakala/go-audio-converter/internal/filter"
)

const (
	// Representative ratio for response measurement. Upsampling leaves the
	// cutoff at the design point, so it isolates the window's behavior.
	analyzeRatio = 48000.0 / 44100.0

	// Phases shown in per-phase detail before eliding the rest.
	maxPhasesToShow = 8
)

var tiers = []struct {
	name string
	tier filter.Tier
}{
	{"poor", filter.TierPoor},
	{"good", filter.TierGood},
	{"great", filter.TierGreat},
}

func main() {
	for _, tc := range tiers {
		k := filter.Resolve(tc.tier, analyzeRatio)
		fmt.Printf("=== Tier %s ===\n", tc.name)
		fmt.Printf("  TapsPerPhase: %d\n", k.TapsPerPhase)
		fmt.Printf("  Phases:       %d\n", k.Phases)
		fmt.Printf("  TotalTaps:    %d\n", k.TotalTaps)
		fmt.Printf("  Cutoff:       %.4f of Nyquist\n", 2*k.Cutoff)
		fmt.Printf("  Group delay:  %.2f source frames\n", k.GroupDelayFrames())

		analyzePhaseGains(k)

		measured := filter.MeasuredStopbandDB(k)
		fmt.Printf("  Stopband: designed %.0f dB, measured %.1f dB\n\n",
			k.Attenuation, measured)
	}

	analyzeDownsamplingCutoffs()
}

// analyzePhaseGains sums each polyphase row of the prototype. The design
// normalizes the prototype to a total gain of Phases, so every row must
// come out at unity.
func analyzePhaseGains(k filter.Kernel) {
	proto := k.Prototype()

	var minGain, maxGain, total float64
	for phase := range k.Phases {
		var gain float64
		for tap := range k.TapsPerPhase {
			gain += proto[tap*k.Phases+phase]
		}
		if phase == 0 || gain < minGain {
			minGain = gain
		}
		if phase == 0 || gain > maxGain {
			maxGain = gain
		}
		total += gain
		if phase < maxPhasesToShow {
			fmt.Printf("  Phase %3d DC gain: %.10f\n", phase, gain)
		}
	}
	if k.Phases > maxPhasesToShow {
		fmt.Printf("  ... (%d more phases)\n", k.Phases-maxPhasesToShow)
	}
	fmt.Printf("  DC gain: min %.6f, max %.6f, mean %.6f\n",
		minGain, maxGain, total/float64(k.Phases))
}

// analyzeDownsamplingCutoffs shows how the cutoff scales with the
// conversion ratio when decimating.
func analyzeDownsamplingCutoffs() {
	ratios := []struct {
		name  string
		ratio float64
	}{
		{"44100 -> 48000", 48000.0 / 44100.0},
		{"48000 -> 44100", 44100.0 / 48000.0},
		{"96000 -> 48000", 0.5},
		{"192000 -> 8000", 8000.0 / 192000.0},
	}

	fmt.Println("=== Cutoff by conversion ratio (tier good) ===")
	for _, tc := range ratios {
		k := filter.Resolve(filter.TierGood, tc.ratio)
		fmt.Printf("  %-16s cutoff %.4f of source Nyquist\n", tc.name, 2*k.Cutoff)
	}
}
