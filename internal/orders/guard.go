package orders

import (
	"errors"
	"sync"

	"github.com/shaiso/Liveboard/internal/cancel"
)

// ErrBusy — цикл уже выполняется, триггер отброшен.
var ErrBusy = errors.New("fetch cycle already in progress")

// Phase — фаза цикла заказов.
//
// Переходы:
//
//	IDLE → REFRESHING → HYDRATING → IDLE
//	         ↘ IDLE (ошибка или отмена)
type Phase int32

const (
	PhaseIdle Phase = iota
	PhaseRefreshing
	PhaseHydrating
)

// String возвращает имя фазы для логов и API.
func (p Phase) String() string {
	switch p {
	case PhaseRefreshing:
		return "refreshing"
	case PhaseHydrating:
		return "hydrating"
	default:
		return "idle"
	}
}

// Guard — нереентерабельная критическая секция цикла заказов.
//
// Владелец секции — токен цикла. Переходы выполняются только владельцем:
// цикл, у которого секцию перехватили, больше не может ни сменить фазу,
// ни освободить чужую секцию.
type Guard struct {
	mu    sync.Mutex
	phase Phase
	owner *cancel.Token

	// dirty — пока шёл цикл, пришёл триггер EnterCoalesce.
	dirty bool
}

// EnterMode — что делать с триггером, если цикл уже идёт.
type EnterMode int

const (
	// EnterDrop — отбросить триггер.
	EnterDrop EnterMode = iota

	// EnterCoalesce — отбросить триггер, но после текущего цикла выполнить ещё один.
	// Сколько бы таких триггеров ни пришло, повторный цикл один.
	EnterCoalesce

	// EnterForce — отменить текущий цикл и забрать секцию.
	EnterForce
)

// Enter переводит секцию из IDLE в REFRESHING под токеном tok.
//
// Если цикл уже идёт, поведение задаёт mode: ErrBusy для EnterDrop и
// EnterCoalesce, отмена текущего владельца для EnterForce.
func (g *Guard) Enter(tok *cancel.Token, mode EnterMode) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.phase != PhaseIdle {
		switch mode {
		case EnterForce:
			if g.owner != nil {
				g.owner.Signal()
			}
		case EnterCoalesce:
			g.dirty = true
			return ErrBusy
		default:
			return ErrBusy
		}
	}

	g.phase = PhaseRefreshing
	g.owner = tok
	return nil
}

// Advance переводит секцию REFRESHING → HYDRATING.
// Возвращает false, если tok больше не владелец.
func (g *Guard) Advance(tok *cancel.Token) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.owner != tok || g.phase != PhaseRefreshing {
		return false
	}
	g.phase = PhaseHydrating
	return true
}

// Leave возвращает секцию в IDLE, если tok всё ещё владелец.
// Возвращает true, если за время цикла пришёл отложенный триггер
// и нужен повторный цикл.
func (g *Guard) Leave(tok *cancel.Token) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.owner != tok {
		return false
	}
	g.phase = PhaseIdle
	g.owner = nil

	rerun := g.dirty
	g.dirty = false
	return rerun
}

// Phase возвращает текущую фазу.
func (g *Guard) Phase() Phase {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.phase
}

// Abort отменяет текущий цикл (при остановке сервиса).
func (g *Guard) Abort() {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.owner != nil {
		g.owner.Signal()
	}
}
