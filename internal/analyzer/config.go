package analyzer

import (
	"fmt"
	"strings"
)

// Default tuning values.
const (
	DefaultWindowLengthSeconds = 30
	DefaultWindowRetention     = 200
	DefaultSummaryTail         = 50
)

// Config tunes the engine. WindowLengthSeconds and both retention caps are
// latched by each stream when it is created; the rest is read on every ingest.
type Config struct {
	WindowLengthSeconds    int      `json:"window_length_seconds"`
	ZThreshold             float64  `json:"z_threshold"`
	LagSize                int      `json:"lag_size"`
	Keywords               []string `json:"keywords"`
	WindowRetention        int      `json:"window_retention"`
	KeywordWindowRetention int      `json:"keyword_window_retention"`
	SpikeHistoryLimit      int      `json:"spike_history_limit"`
	SummaryTail            int      `json:"summary_tail"`
}

// DefaultConfig returns the stock configuration: 30 second windows, a
// ten-window baseline and a 3.0 threshold.
func DefaultConfig() Config {
	return Config{
		WindowLengthSeconds:    DefaultWindowLengthSeconds,
		ZThreshold:             DefaultZThreshold,
		LagSize:                DefaultLagSize,
		WindowRetention:        DefaultWindowRetention,
		KeywordWindowRetention: 2 * DefaultLagSize,
		SummaryTail:            DefaultSummaryTail,
	}
}

// Validate reports the first invalid field.
func (c Config) Validate() error {
	if c.WindowLengthSeconds <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWindowLength, c.WindowLengthSeconds)
	}
	if c.ZThreshold <= 0 {
		return fmt.Errorf("%w: %v", ErrInvalidThreshold, c.ZThreshold)
	}
	if c.LagSize <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidLagSize, c.LagSize)
	}
	if c.WindowRetention <= c.LagSize {
		return fmt.Errorf("%w: primary %d, lag %d", ErrInvalidRetention, c.WindowRetention, c.LagSize)
	}
	if c.KeywordWindowRetention <= c.LagSize {
		return fmt.Errorf("%w: keyword %d, lag %d", ErrInvalidRetention, c.KeywordWindowRetention, c.LagSize)
	}
	return nil
}

// normalized drops empty and duplicate keywords, preserving order.
func (c Config) normalized() Config {
	seen := make(map[string]bool, len(c.Keywords))
	kws := make([]string, 0, len(c.Keywords))
	for _, kw := range c.Keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" || seen[kw] {
			continue
		}
		seen[kw] = true
		kws = append(kws, kw)
	}
	c.Keywords = kws
	if c.SpikeHistoryLimit < 0 {
		c.SpikeHistoryLimit = 0
	}
	if c.SummaryTail <= 0 {
		c.SummaryTail = DefaultSummaryTail
	}
	return c
}

func (c Config) detection() detection {
	return detection{threshold: c.ZThreshold, lagSize: c.LagSize, spikeLimit: c.SpikeHistoryLimit}
}
