package events

import (
	"sync"
	"time"
)

// DefaultDebounce — задержка между первым сигналом и запуском цикла.
const DefaultDebounce = 400 * time.Millisecond

// Debouncer сводит серию сигналов в один отложенный вызов.
//
// Первый сигнал планирует таймер. Сигналы до срабатывания поглощаются:
// таймер не сбрасывается и второй не планируется. Сигнал, пришедший
// во время выполнения fire, планирует следующий вызов.
type Debouncer struct {
	delay time.Duration
	fire  func()

	mu      sync.Mutex
	timer   *time.Timer
	pending bool
	stopped bool
}

// NewDebouncer создаёт Debouncer. delay <= 0 означает DefaultDebounce.
func NewDebouncer(delay time.Duration, fire func()) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}
	return &Debouncer{delay: delay, fire: fire}
}

// Signal планирует вызов, если он ещё не запланирован.
// Возвращает true, если этот сигнал запланировал таймер.
func (d *Debouncer) Signal() bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.pending || d.stopped {
		return false
	}

	d.pending = true
	d.timer = time.AfterFunc(d.delay, d.run)
	return true
}

// Pending возвращает true, если таймер запланирован и ещё не сработал.
func (d *Debouncer) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending
}

// Stop отменяет запланированный вызов. Дальнейшие сигналы игнорируются.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true
	if d.timer != nil {
		d.timer.Stop()
	}
	d.pending = false
}

func (d *Debouncer) run() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.pending = false
	d.mu.Unlock()

	d.fire()
}
