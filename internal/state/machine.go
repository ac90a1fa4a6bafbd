package state

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/looplab/fsm"

	"github.com/langchou/speedgazer/internal/models"
)

// 测速事件处理状态
const (
	StateUnprocessed = "unprocessed"
	StateProcessed   = "processed"
)

// 设备状态
const (
	StateActive   = string(models.DeviceStatusActive)
	StateInactive = string(models.DeviceStatusInactive)
)

// 事件常量
const (
	EventProcess    = "process"
	EventActivate   = "activate"
	EventDeactivate = "deactivate"
)

// ErrInvalidTransition 目标状态不可达
var ErrInvalidTransition = errors.New("invalid state transition")

// Machine 对 looplab/fsm 的并发安全封装
type Machine struct {
	mu            sync.RWMutex
	subject       string
	fsm           *fsm.FSM
	events        fsm.Events
	onStateChange func(subject, from, to string)
}

func newMachine(subject, initial string, events fsm.Events, onStateChange func(subject, from, to string)) *Machine {
	m := &Machine{
		subject:       subject,
		events:        events,
		onStateChange: onStateChange,
	}

	m.fsm = fsm.NewFSM(
		initial,
		events,
		fsm.Callbacks{
			"after_event": func(ctx context.Context, e *fsm.Event) {
				if m.onStateChange != nil && e.Src != e.Dst {
					m.onStateChange(m.subject, e.Src, e.Dst)
				}
			},
		},
	)
	return m
}

// NewProcessingMachine 测速事件处理状态机，只允许 unprocessed -> processed
func NewProcessingMachine(eventID int64, processed bool, onStateChange func(subject, from, to string)) *Machine {
	initial := StateUnprocessed
	if processed {
		initial = StateProcessed
	}
	return newMachine(fmt.Sprintf("speed_event:%d", eventID), initial, fsm.Events{
		{Name: EventProcess, Src: []string{StateUnprocessed}, Dst: StateProcessed},
	}, onStateChange)
}

// NewDeviceMachine 设备状态机，active 与 inactive 互相切换
func NewDeviceMachine(deviceID string, status models.DeviceStatus, onStateChange func(subject, from, to string)) (*Machine, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown device status %q", ErrInvalidTransition, status)
	}
	return newMachine("device:"+deviceID, string(status), fsm.Events{
		{Name: EventActivate, Src: []string{StateInactive}, Dst: StateActive},
		{Name: EventDeactivate, Src: []string{StateActive}, Dst: StateInactive},
	}, onStateChange), nil
}

// CurrentState 获取当前状态
func (m *Machine) CurrentState() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Current()
}

// CanTransition 检查是否可以转换
func (m *Machine) CanTransition(event string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.fsm.Can(event)
}

// Trigger 触发事件
func (m *Machine) Trigger(ctx context.Context, event string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.fsm.Event(ctx, event); err != nil {
		return fmt.Errorf("trigger event %s: %w", event, err)
	}
	return nil
}

// TransitionTo 转换到目标状态
// 已处于目标状态时不触发任何事件并返回 false
func (m *Machine) TransitionTo(ctx context.Context, target string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	current := m.fsm.Current()
	if current == target {
		return false, nil
	}

	for _, e := range m.events {
		if e.Dst != target || !m.fsm.Can(e.Name) {
			continue
		}
		if err := m.fsm.Event(ctx, e.Name); err != nil {
			return false, fmt.Errorf("trigger event %s: %w", e.Name, err)
		}
		return true, nil
	}
	return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, current, target)
}
