package config

import "github.com/nalix-systems/nalixcore/queue"

// ParseDropPolicy maps the config.yaml drop_policy string onto
// queue.DropPolicy, defaulting to DropNewest for any unrecognized value
// (the safest choice: it never blocks a producer or silently coalesces).
func ParseDropPolicy(s string) queue.DropPolicy {
	switch s {
	case "DropOldest":
		return queue.DropOldest
	case "Block":
		return queue.Block
	case "Coalesce":
		return queue.Coalesce
	default:
		return queue.DropNewest
	}
}

// ChannelConfig projects Config onto the queue.Config the priority
// channel needs.
func (c Config) ChannelConfig() queue.Config {
	var capacity [5]int
	for i, v := range c.ChannelCapacityPerLane {
		capacity[i] = int(v)
	}
	return queue.Config{
		CapacityPerLane: capacity,
		DropPolicy:      ParseDropPolicy(c.DropPolicy),
	}
}
