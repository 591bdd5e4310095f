package queue

import (
	"context"
	"testing"
	"time"

	"github.com/nalix-systems/nalixcore/packet"
)

func mustPacket(t *testing.T, opcode uint16, pri packet.Priority) *packet.Packet {
	t.Helper()
	p, err := packet.New(packet.AppMagicFloor+1, opcode, 0, pri, packet.TransportTCP, []byte("x"), nil)
	if err != nil {
		t.Fatalf("packet.New: %v", err)
	}
	return p
}

func TestStrictPriorityOrdering(t *testing.T) {
	c := NewChannel(Config{DropPolicy: DropNewest})
	ctx := context.Background()

	low := mustPacket(t, 1, packet.PriorityLow)
	high := mustPacket(t, 2, packet.PriorityHigh)
	crit := mustPacket(t, 3, packet.PriorityCritical)

	for _, p := range []*packet.Packet{low, high, crit} {
		if _, err := c.Enqueue(ctx, Item{Packet: p, ConnID: 1}); err != nil {
			t.Fatalf("Enqueue: %v", err)
		}
	}

	order := []packet.Priority{packet.PriorityCritical, packet.PriorityHigh, packet.PriorityLow}
	for _, want := range order {
		item, err := c.Dequeue(ctx)
		if err != nil {
			t.Fatalf("Dequeue: %v", err)
		}
		if item.Packet.Priority != want {
			t.Fatalf("got priority %v, want %v", item.Packet.Priority, want)
		}
	}
}

func TestFIFOWithinLane(t *testing.T) {
	c := NewChannel(Config{DropPolicy: DropNewest})
	ctx := context.Background()

	first := mustPacket(t, 1, packet.PriorityNormal)
	second := mustPacket(t, 2, packet.PriorityNormal)

	c.Enqueue(ctx, Item{Packet: first, ConnID: 1})
	c.Enqueue(ctx, Item{Packet: second, ConnID: 2})

	got1, _ := c.Dequeue(ctx)
	got2, _ := c.Dequeue(ctx)
	if got1.Packet.Opcode != 1 || got2.Packet.Opcode != 2 {
		t.Fatalf("FIFO violated: got opcodes %d, %d", got1.Packet.Opcode, got2.Packet.Opcode)
	}
}

func TestDropNewestRejectsWhenFull(t *testing.T) {
	var cap [packet.NumPriorities]int
	cap[packet.PriorityNormal] = 1
	c := NewChannel(Config{CapacityPerLane: cap, DropPolicy: DropNewest})
	ctx := context.Background()

	c.Enqueue(ctx, Item{Packet: mustPacket(t, 1, packet.PriorityNormal), ConnID: 1})
	res, err := c.Enqueue(ctx, Item{Packet: mustPacket(t, 2, packet.PriorityNormal), ConnID: 1})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if res != Rejected {
		t.Fatalf("got %v, want Rejected", res)
	}
}

func TestDropOldestEvicts(t *testing.T) {
	var cap [packet.NumPriorities]int
	cap[packet.PriorityNormal] = 1
	c := NewChannel(Config{CapacityPerLane: cap, DropPolicy: DropOldest})
	ctx := context.Background()

	c.Enqueue(ctx, Item{Packet: mustPacket(t, 1, packet.PriorityNormal), ConnID: 1})
	res, err := c.Enqueue(ctx, Item{Packet: mustPacket(t, 2, packet.PriorityNormal), ConnID: 1})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if res != EvictedOldest && res != Enqueued {
		t.Fatalf("got %v", res)
	}
	item, err := c.Dequeue(ctx)
	if err != nil {
		t.Fatalf("Dequeue: %v", err)
	}
	if item.Packet.Opcode != 2 {
		t.Fatalf("got opcode %d, want 2 (oldest evicted)", item.Packet.Opcode)
	}
}

func TestCoalesceReplacesSameKey(t *testing.T) {
	var cap [packet.NumPriorities]int
	cap[packet.PriorityNormal] = 2
	c := NewChannel(Config{CapacityPerLane: cap, DropPolicy: Coalesce})
	ctx := context.Background()

	c.Enqueue(ctx, Item{Packet: mustPacket(t, 5, packet.PriorityNormal), ConnID: 7})
	c.Enqueue(ctx, Item{Packet: mustPacket(t, 6, packet.PriorityNormal), ConnID: 7})

	stale := mustPacket(t, 5, packet.PriorityNormal)
	stale.UpdatePayload([]byte("stale"))
	fresh := mustPacket(t, 5, packet.PriorityNormal)
	fresh.UpdatePayload([]byte("fresh"))

	res, err := c.Enqueue(ctx, Item{Packet: fresh, ConnID: 7})
	if err != nil {
		t.Fatalf("Enqueue: %v", err)
	}
	if res != ReplacedCoalesced {
		t.Fatalf("got %v, want ReplacedCoalesced", res)
	}
	_ = stale
}

func TestSweepExpiredRemovesOldEntries(t *testing.T) {
	c := NewChannel(Config{DropPolicy: DropNewest})
	ctx := context.Background()

	p := mustPacket(t, 1, packet.PriorityNormal)
	p.Timestamp -= uint64(time.Hour.Milliseconds())
	c.Enqueue(ctx, Item{Packet: p, ConnID: 1})

	removed := c.SweepExpired(time.Minute)
	if removed != 1 {
		t.Fatalf("got removed=%d, want 1", removed)
	}
	if c.Metrics(int(packet.PriorityNormal)).Depth != 0 {
		t.Fatal("expected lane depth 0 after sweep")
	}
}

func TestFlushDropsAll(t *testing.T) {
	c := NewChannel(Config{DropPolicy: DropNewest})
	ctx := context.Background()
	c.Enqueue(ctx, Item{Packet: mustPacket(t, 1, packet.PriorityHigh), ConnID: 1})
	c.Enqueue(ctx, Item{Packet: mustPacket(t, 2, packet.PriorityLow), ConnID: 1})

	c.Flush(-1)

	if c.Metrics(int(packet.PriorityHigh)).Depth != 0 || c.Metrics(int(packet.PriorityLow)).Depth != 0 {
		t.Fatal("expected all lanes empty after flush")
	}
}

func TestBlockWaitsThenCanceled(t *testing.T) {
	var capArr [packet.NumPriorities]int
	capArr[packet.PriorityNormal] = 1
	c := NewChannel(Config{CapacityPerLane: capArr, DropPolicy: Block})

	c.Enqueue(context.Background(), Item{Packet: mustPacket(t, 1, packet.PriorityNormal), ConnID: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := c.Enqueue(ctx, Item{Packet: mustPacket(t, 2, packet.PriorityNormal), ConnID: 1})
	if err == nil {
		t.Fatal("expected Enqueue to fail once context is canceled while blocked")
	}
}
