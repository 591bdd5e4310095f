package transportmux

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/nalix-systems/nalixcore/packet"
)

func TestSendAndListenRoundTrip(t *testing.T) {
	clientNC, serverNC := net.Pipe()
	defer clientNC.Close()
	defer serverNC.Close()

	serverDone := make(chan *Conn, 1)
	serverErr := make(chan error, 1)
	go func() {
		c, err := Accept(serverNC, nil, 1, []byte("session-key-0123456789abcdef01"), 0)
		if err != nil {
			serverErr <- err
			return
		}
		serverDone <- c
	}()

	client, err := Dial(clientNC, nil, 2, []byte("session-key-0123456789abcdef01"), 0)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer client.Disconnect("test done")

	var server *Conn
	select {
	case server = <-serverDone:
	case err := <-serverErr:
		t.Fatalf("Accept: %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for server accept")
	}
	defer server.Disconnect("test done")

	received := make(chan *packet.Packet, 1)
	listenErr := make(chan error, 1)
	go func() {
		listenErr <- server.Listen(func(p *packet.Packet) {
			received <- p
		})
	}()

	payload := []byte("hello over mux")
	p, err := packet.New(packet.AppMagicFloor+1, 7, 0, packet.PriorityNormal, packet.TransportTCP, payload, nil)
	if err != nil {
		t.Fatalf("packet.New: %v", err)
	}
	if err := client.Send(context.Background(), p); err != nil {
		t.Fatalf("Send: %v", err)
	}

	select {
	case got := <-received:
		if string(got.Payload) != string(payload) {
			t.Fatalf("got payload %q, want %q", got.Payload, payload)
		}
		if got.Opcode != 7 {
			t.Fatalf("got opcode %d, want 7", got.Opcode)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for received packet")
	}
}

func TestDisconnectIsIdempotentAndMarksDisposed(t *testing.T) {
	clientNC, serverNC := net.Pipe()
	defer serverNC.Close()

	serverDone := make(chan *Conn, 1)
	go func() {
		c, err := Accept(serverNC, nil, 0, nil, 0)
		if err == nil {
			serverDone <- c
		}
	}()

	client, err := Dial(clientNC, nil, 0, nil, 0)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}

	if client.IsDisposed() {
		t.Fatal("new Conn should not be disposed")
	}
	client.Disconnect("first")
	client.Disconnect("second")
	if !client.IsDisposed() {
		t.Fatal("Conn should be disposed after Disconnect")
	}
}
