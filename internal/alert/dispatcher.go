package alert

import (
	"log"
	"sync"
)

// Dispatcher fans out error summaries to every configured channel. One
// channel failing must never block or fail the others, so each dispatch is
// isolated and failures are only logged.
type Dispatcher struct {
	channels []ChannelConfig
}

// NewDispatcher creates a Dispatcher from channel configurations.
// Returns nil if channels is empty (callers should nil-check).
func NewDispatcher(channels []ChannelConfig) *Dispatcher {
	if len(channels) == 0 {
		return nil
	}
	return &Dispatcher{channels: channels}
}

// Dispatch sends the summary to all channels, waiting for every attempt to
// finish. Returns the number of channels that accepted it.
func (d *Dispatcher) Dispatch(summary ErrorSummary) int {
	var wg sync.WaitGroup
	var mu sync.Mutex
	delivered := 0

	for _, ch := range d.channels {
		wg.Add(1)
		go func(ch ChannelConfig) {
			defer wg.Done()
			if err := Send(ch, summary); err != nil {
				log.Printf("[alert] channel %s: %v", channelName(ch), err)
				return
			}
			mu.Lock()
			delivered++
			mu.Unlock()
		}(ch)
	}

	wg.Wait()
	return delivered
}

func channelName(ch ChannelConfig) string {
	if ch.Name != "" {
		return ch.Name
	}
	return ch.URL
}
