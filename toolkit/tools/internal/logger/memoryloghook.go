// Copyright (c) Microsoft Corporation.
// Licensed under the MIT License.

package logger

// Keeps log messages in memory so that unit tests can assert on what was logged.

import (
	"strings"
	"sync"

	"github.com/sirupsen/logrus"
)

type MemoryLogHook struct {
	subHooksLock sync.Mutex
	subHooks     []*MemoryLogSubHook
}

type MemoryLogSubHook struct {
	parent       *MemoryLogHook
	messagesLock sync.Mutex
	messages     []MemoryLogMessage
}

type MemoryLogMessage struct {
	Message string
	Level   logrus.Level
	Fields  logrus.Fields
}

func NewMemoryLogHook() *MemoryLogHook {
	return &MemoryLogHook{}
}

func (h *MemoryLogHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *MemoryLogHook) Fire(entry *logrus.Entry) error {
	h.subHooksLock.Lock()
	subHooks := h.subHooks
	h.subHooksLock.Unlock()

	for _, subHook := range subHooks {
		subHook.addEntry(entry)
	}

	return nil
}

// AddSubHook starts recording messages. Call Close on the result when done.
func (h *MemoryLogHook) AddSubHook() *MemoryLogSubHook {
	subHook := &MemoryLogSubHook{
		parent: h,
	}

	h.subHooksLock.Lock()
	defer h.subHooksLock.Unlock()

	// Copy-on-write so that Fire can iterate without holding the lock.
	newSubHooks := append([]*MemoryLogSubHook(nil), h.subHooks...)
	h.subHooks = append(newSubHooks, subHook)

	return subHook
}

func (h *MemoryLogHook) removeSubHook(subHook *MemoryLogSubHook) {
	h.subHooksLock.Lock()
	defer h.subHooksLock.Unlock()

	newSubHooks := []*MemoryLogSubHook(nil)
	for _, entry := range h.subHooks {
		if entry != subHook {
			newSubHooks = append(newSubHooks, entry)
		}
	}

	h.subHooks = newSubHooks
}

func (h *MemoryLogSubHook) addEntry(entry *logrus.Entry) {
	fields := make(logrus.Fields, len(entry.Data))
	for key, value := range entry.Data {
		fields[key] = value
	}

	h.messagesLock.Lock()
	defer h.messagesLock.Unlock()
	h.messages = append(h.messages, MemoryLogMessage{
		Message: entry.Message,
		Level:   entry.Level,
		Fields:  fields,
	})
}

func (h *MemoryLogSubHook) Close() {
	h.parent.removeSubHook(h)
}

// ConsumeMessages returns the messages recorded so far and clears them.
func (h *MemoryLogSubHook) ConsumeMessages() []MemoryLogMessage {
	h.messagesLock.Lock()
	defer h.messagesLock.Unlock()

	messages := h.messages
	h.messages = nil
	return messages
}

// FindMessages returns the recorded messages at the given level whose text contains substr.
func FindMessages(messages []MemoryLogMessage, level logrus.Level, substr string) []MemoryLogMessage {
	found := []MemoryLogMessage(nil)
	for _, message := range messages {
		if message.Level == level && strings.Contains(message.Message, substr) {
			found = append(found, message)
		}
	}
	return found
}
