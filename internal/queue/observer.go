package queue

import "github.com/danmuck/clipqueue/internal/protocol"

// Observer receives fire-and-forget session notifications for the UI
// layer. Implementations must not block; delivery is best effort and
// always happens outside the session lock.
type Observer interface {
	NotifyStatus(status Status)
	NotifyMembers(members []protocol.Member)
	NotifyItem(item protocol.ClipboardItem)
}

// NopObserver discards all notifications.
type NopObserver struct{}

func (NopObserver) NotifyStatus(Status)               {}
func (NopObserver) NotifyMembers([]protocol.Member)   {}
func (NopObserver) NotifyItem(protocol.ClipboardItem) {}

// FuncObserver adapts optional callbacks into an Observer.
type FuncObserver struct {
	OnStatus  func(Status)
	OnMembers func([]protocol.Member)
	OnItem    func(protocol.ClipboardItem)
}

func (f FuncObserver) NotifyStatus(status Status) {
	if f.OnStatus != nil {
		f.OnStatus(status)
	}
}

func (f FuncObserver) NotifyMembers(members []protocol.Member) {
	if f.OnMembers != nil {
		f.OnMembers(members)
	}
}

func (f FuncObserver) NotifyItem(item protocol.ClipboardItem) {
	if f.OnItem != nil {
		f.OnItem(item)
	}
}
