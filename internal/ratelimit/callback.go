package ratelimit

import (
	"sync"
	"time"

	"mediabandit/pkg/models"
)

// CallbackThrottle limits chat-originated "Download" button presses. Two
// independent checks: a per-chat cooldown and a global sliding window capping
// presses across all chats. One noisy chat must not exhaust global capacity.
type CallbackThrottle struct {
	mu           sync.Mutex
	chatCooldown time.Duration
	windowSize   time.Duration
	maxCalls     int

	chatLastPress map[int64]time.Time
	events        []time.Time

	now func() time.Time
}

// NewCallbackThrottle creates a throttle for button presses. A non-positive
// maxCalls or window disables the global check; a non-positive cooldown
// disables the per-chat check.
func NewCallbackThrottle(chatCooldown, window time.Duration, maxCalls int) *CallbackThrottle {
	return &CallbackThrottle{
		chatCooldown:  chatCooldown,
		windowSize:    window,
		maxCalls:      maxCalls,
		chatLastPress: make(map[int64]time.Time),
		now:           time.Now,
	}
}

// Admit consumes one press slot for the chat, or denies it. Stale window
// entries are pruned lazily on every call.
func (t *CallbackThrottle) Admit(chatID int64) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()

	if t.chatCooldown > 0 {
		if last, ok := t.chatLastPress[chatID]; ok && now.Sub(last) < t.chatCooldown {
			return models.NewDownloadError(models.KindChatThrottled,
				"this chat is pressing the button too often, try again shortly")
		}
	}

	if t.maxCalls > 0 && t.windowSize > 0 {
		t.prune(now)
		if len(t.events) >= t.maxCalls {
			return models.NewDownloadError(models.KindChatThrottled,
				"too many downloads are being requested right now, try again in a minute")
		}
		t.events = append(t.events, now)
	}

	if t.chatCooldown > 0 {
		t.chatLastPress[chatID] = now
	}
	return nil
}

// prune drops events older than the trailing window. Caller holds the lock.
func (t *CallbackThrottle) prune(now time.Time) {
	cutoff := now.Add(-t.windowSize)
	i := 0
	for i < len(t.events) && !t.events[i].After(cutoff) {
		i++
	}
	if i > 0 {
		t.events = append(t.events[:0], t.events[i:]...)
	}
}

// WindowCount returns the number of presses currently inside the window
func (t *CallbackThrottle) WindowCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.prune(t.now())
	return len(t.events)
}
