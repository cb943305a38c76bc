package websocket

import (
	"fmt"
	"sync"
	"testing"

	"go.uber.org/zap"
)

func TestSendToUserOffline(t *testing.T) {
	m := NewManager(zap.NewNop())

	if m.SendToUser("nobody", []byte("hi")) {
		t.Error("send to offline user should return false")
	}
	if m.IsOnline("nobody") {
		t.Error("user should not be online")
	}
}

func TestSendToUserBuffersUntilFull(t *testing.T) {
	m := NewManager(zap.NewNop())
	client := NewClient("u1", nil, m)
	m.Register(client)

	for i := 0; i < sendBufferSize; i++ {
		if !m.SendToUser("u1", []byte("msg")) {
			t.Fatalf("send %d rejected before the buffer was full", i)
		}
	}
	if m.SendToUser("u1", []byte("overflow")) {
		t.Error("send into a full buffer should return false")
	}
}

func TestRegisterReplacesExistingConnection(t *testing.T) {
	m := NewManager(zap.NewNop())
	old := NewClient("u1", nil, m)
	m.Register(old)

	replacement := NewClient("u1", nil, m)
	m.Register(replacement)

	select {
	case <-old.done:
	default:
		t.Error("old client should be stopped after replacement")
	}
	if !m.IsOnline("u1") {
		t.Error("user should stay online through the replacement")
	}

	// 旧连接的注销不能把新连接顶下线
	m.Unregister(old)
	if !m.IsOnline("u1") {
		t.Error("unregistering the kicked client must not remove the replacement")
	}
	if m.SendToUser("u1", []byte("hi")) != true {
		t.Error("replacement client should accept messages")
	}
}

func TestReconnectDuringDeliveryDoesNotPanic(t *testing.T) {
	m := NewManager(zap.NewNop())
	m.Register(NewClient("u1", nil, m))

	// 并发推送叠加用户重连，不允许出现向已关闭通道写入的 panic
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				m.SendToUser("u1", []byte(fmt.Sprintf("payload-%d-%d", n, j)))
			}
		}(i)
	}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Register(NewClient("u1", nil, m))
		}()
	}
	wg.Wait()

	if !m.IsOnline("u1") {
		t.Error("user should still be online")
	}
}
