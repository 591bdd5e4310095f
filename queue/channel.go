package queue

import (
	"container/list"
	"context"
	"sync"
	"time"

	"github.com/nalix-systems/nalixcore/packet"
)

// Item is what the priority channel actually stores: a packet plus the
// connection id it arrived on, since the coalescing key (opcode +
// connection id) needs the latter and Packet itself carries no connection
// identity.
type Item struct {
	Packet *packet.Packet
	ConnID uint64
}

func (it Item) coalesceKey() uint64 {
	return it.ConnID<<16 | uint64(it.Packet.Opcode)
}

type entry struct {
	item     Item
	enqueued time.Time
}

type lane struct {
	items    list.List // of *entry, front = oldest
	byKey    map[uint64]*list.Element
	capacity int
	metrics  LaneMetrics
}

func newLane(capacity int) *lane {
	l := &lane{capacity: capacity, byKey: make(map[uint64]*list.Element)}
	l.items.Init()
	return l
}

// Config configures a Channel's capacity per lane, drop policy, and
// optional fairness knob.
type Config struct {
	// CapacityPerLane[p] bounds packet.Priority p's lane. Zero means
	// unbounded.
	CapacityPerLane [packet.NumPriorities]int
	DropPolicy      DropPolicy
	// MaxConsecutiveSameLane caps how many packets Dequeue will pull
	// in a row from one lane before considering lower ones, even though
	// a higher lane still has entries; 0 disables the fairness knob
	// (strict priority, the default behavior).
	MaxConsecutiveSameLane int
}

// Channel is a five-lane bounded priority queue.
type Channel struct {
	mu      sync.Mutex
	notEmpty *sync.Cond
	notFull  *sync.Cond
	lanes   [packet.NumPriorities]*lane
	policy  DropPolicy
	fairCap int
	closed  bool

	consecutiveLane int
	consecutiveRun  int
}

// NewChannel builds a Channel from cfg.
func NewChannel(cfg Config) *Channel {
	c := &Channel{policy: cfg.DropPolicy, fairCap: cfg.MaxConsecutiveSameLane}
	for i := range c.lanes {
		c.lanes[i] = newLane(cfg.CapacityPerLane[i])
	}
	c.notEmpty = sync.NewCond(&c.mu)
	c.notFull = sync.NewCond(&c.mu)
	return c
}

func (l *lane) full() bool { return l.capacity > 0 && l.items.Len() >= l.capacity }

// pushBack appends e and updates depth/coalesce index. Callers must hold
// Channel.mu.
func (l *lane) pushBack(e *entry) *list.Element {
	el := l.items.PushBack(e)
	l.byKey[e.item.coalesceKey()] = el
	l.metrics.depth++
	return el
}

func (l *lane) removeOldest() *entry {
	front := l.items.Front()
	if front == nil {
		return nil
	}
	return l.removeElement(front)
}

func (l *lane) removeElement(el *list.Element) *entry {
	e := l.items.Remove(el).(*entry)
	if cur, ok := l.byKey[e.item.coalesceKey()]; ok && cur == el {
		delete(l.byKey, e.item.coalesceKey())
	}
	l.metrics.depth--
	return e
}

// Enqueue places item into the lane for its priority, applying the
// channel's configured DropPolicy if the lane is full. ctx governs Block:
// if ctx is canceled while waiting, Enqueue returns ctx.Err().
func (c *Channel) Enqueue(ctx context.Context, item Item) (EnqueueResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	l := c.lanes[item.Packet.Priority]
	result := Enqueued

	for l.full() {
		switch c.policy {
		case DropNewest:
			l.metrics.dropped++
			return Rejected, nil
		case DropOldest:
			if disposed := l.removeOldest(); disposed != nil {
				disposed.item.Packet.Release()
			}
			l.metrics.dropped++
			result = EvictedOldest
			goto insert
		case Coalesce:
			if el, ok := l.byKey[item.coalesceKey()]; ok {
				displaced := l.removeElement(el)
				displaced.item.Packet.Release()
				l.pushBack(&entry{item: item, enqueued: time.Now()})
				l.metrics.enqueued++
				c.notEmpty.Signal()
				return ReplacedCoalesced, nil
			}
			if disposed := l.removeOldest(); disposed != nil {
				disposed.item.Packet.Release()
			}
			l.metrics.dropped++
			result = EvictedOldest
			goto insert
		case Block:
			if err := ctx.Err(); err != nil {
				return Rejected, err
			}
			done := ctx.Done()
			if done == nil {
				c.notFull.Wait()
				continue
			}
			waitCh := make(chan struct{})
			go func() {
				select {
				case <-done:
					c.mu.Lock()
					c.notFull.Broadcast()
					c.mu.Unlock()
				case <-waitCh:
				}
			}()
			c.notFull.Wait()
			close(waitCh)
			if err := ctx.Err(); err != nil {
				return Rejected, err
			}
			continue
		}
	}

insert:
	l.pushBack(&entry{item: item, enqueued: time.Now()})
	l.metrics.enqueued++
	c.notEmpty.Signal()
	return result, nil
}

// nextLane picks which lane Dequeue should pull from: the highest-priority
// non-empty lane, unless the fairness knob has exhausted its consecutive
// budget on that lane while a lower one is also non-empty.
func (c *Channel) nextLane() int {
	highest := -1
	for p := packet.NumPriorities - 1; p >= 0; p-- {
		if c.lanes[p].items.Len() > 0 {
			highest = p
			break
		}
	}
	if highest < 0 {
		return -1
	}
	if c.fairCap <= 0 || highest != c.consecutiveLane || c.consecutiveRun < c.fairCap {
		return highest
	}
	// fairness budget exhausted on this lane: look for the next
	// non-empty lane below it.
	for p := highest - 1; p >= 0; p-- {
		if c.lanes[p].items.Len() > 0 {
			return p
		}
	}
	return highest
}

// Dequeue pulls the next item in strict-priority, FIFO-within-lane order,
// blocking until one is available or ctx is canceled.
func (c *Channel) Dequeue(ctx context.Context) (Item, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		if p := c.nextLane(); p >= 0 {
			l := c.lanes[p]
			e := l.removeOldest()
			l.metrics.dequeued++
			if p == c.consecutiveLane {
				c.consecutiveRun++
			} else {
				c.consecutiveLane = p
				c.consecutiveRun = 1
			}
			c.notFull.Signal()
			return e.item, nil
		}
		if c.closed {
			return Item{}, ErrClosed
		}
		if err := ctx.Err(); err != nil {
			return Item{}, err
		}
		done := ctx.Done()
		if done == nil {
			c.notEmpty.Wait()
			continue
		}
		waitCh := make(chan struct{})
		go func() {
			select {
			case <-done:
				c.mu.Lock()
				c.notEmpty.Broadcast()
				c.mu.Unlock()
			case <-waitCh:
			}
		}()
		c.notEmpty.Wait()
		close(waitCh)
		if err := ctx.Err(); err != nil {
			return Item{}, err
		}
	}
}

// SweepExpired walks every lane, removing entries whose packet IsExpired
// per timeout, preserving order of survivors. It is safe to call
// concurrently with Enqueue/Dequeue and returns the number removed.
func (c *Channel) SweepExpired(timeout time.Duration) uint32 {
	c.mu.Lock()
	defer c.mu.Unlock()

	var removed uint32
	for _, l := range c.lanes {
		var next *list.Element
		for el := l.items.Front(); el != nil; el = next {
			next = el.Next()
			e := el.Value.(*entry)
			if e.item.Packet.IsExpired(timeout) {
				removedEntry := l.removeElement(el)
				removedEntry.item.Packet.Release()
				l.metrics.expired++
				removed++
			}
		}
	}
	if removed > 0 {
		c.notFull.Broadcast()
	}
	return removed
}

// Flush drops and disposes every entry in lane. If lane is negative, all
// lanes are flushed.
func (c *Channel) Flush(lanePriority int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	flushOne := func(l *lane) {
		n := l.items.Len()
		for el := l.items.Front(); el != nil; el = el.Next() {
			el.Value.(*entry).item.Packet.Release()
		}
		l.items.Init()
		for k := range l.byKey {
			delete(l.byKey, k)
		}
		l.metrics.dropped += uint64(n)
		l.metrics.depth = 0
	}
	if lanePriority < 0 {
		for _, l := range c.lanes {
			flushOne(l)
		}
	} else if lanePriority < len(c.lanes) {
		flushOne(c.lanes[lanePriority])
	}
	c.notFull.Broadcast()
}

// Close marks the channel closed; blocked Dequeue callers wake with
// ErrClosed once their lanes drain.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	c.notEmpty.Broadcast()
}

// Metrics returns a point-in-time snapshot for lanePriority.
func (c *Channel) Metrics(lanePriority int) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lanes[lanePriority].metrics.snapshot()
}
