package analytics

import (
	"context"

	"leaderboardkit/core"
)

// BridgeHook bridges an event source to multiple hooks.
type BridgeHook struct{ hooks []Hook }

func NewBridge(hooks ...Hook) *BridgeHook { return &BridgeHook{hooks: hooks} }

func (b *BridgeHook) OnEvent(e core.Event) {
	for _, h := range b.hooks {
		h.OnEvent(e)
	}
}

// Publish lets the bridge be used as an engine.Publisher.
func (b *BridgeHook) Publish(_ context.Context, e core.Event) { b.OnEvent(e) }
