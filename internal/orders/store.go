package orders

import (
	"sync"
	"time"

	"github.com/shaiso/Liveboard/internal/domain"
	"github.com/shaiso/Liveboard/internal/telemetry"
)

// Snapshot — опубликованное состояние доски заказов.
//
// Snapshot неизменяем: Orders нельзя модифицировать, каждая публикация
// создаёт новый срез.
type Snapshot struct {
	Orders []domain.Order

	// Err — последняя ошибка цикла. Данные при ошибке не очищаются.
	Err error

	// UpdatedAt — время последней публикации.
	UpdatedAt time.Time

	// Stale — коллекция восстановлена из сохранённого снимка
	// и ещё не подтверждена свежим циклом.
	Stale bool
}

// Store хранит опубликованную коллекцию заказов.
//
// Все изменения собирают новую коллекцию целиком и подменяют указатель
// под мьютексом, поэтому читатели никогда не видят промежуточного состояния.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
	now  func() time.Time

	// rev растёт с каждым локальным изменением (патч, удаление).
	// local — последняя ревизия изменения по id заказа.
	rev   uint64
	local map[int64]localChange
}

type localChange struct {
	rev     uint64
	removed bool
}

// LocalChanges — заказы, изменённые локально после начала цикла.
// Данные цикла для них старше локального состояния.
type LocalChanges struct {
	Patched map[int64]struct{}
	Removed map[int64]struct{}
}

// NewStore создаёт пустое хранилище.
func NewStore() *Store {
	return &Store{
		now:   time.Now,
		local: make(map[int64]localChange),
	}
}

// Snapshot возвращает текущее опубликованное состояние.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Get возвращает заказ по id.
func (s *Store) Get(id int64) (domain.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, o := range s.snap.Orders {
		if o.ID == id {
			return o.Clone(), true
		}
	}
	return domain.Order{}, false
}

// Update публикует результат fn(текущая коллекция) и очищает ошибку.
func (s *Store) Update(fn func(prev []domain.Order) []domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.publishLocked(fn(s.snap.Orders))
	s.snap.Err = nil
	s.snap.Stale = false
}

// Revision возвращает номер последнего локального изменения.
// Цикл запоминает его до запроса заголовков.
func (s *Store) Revision() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rev
}

// Reconcile публикует промежуточный результат цикла, начатого на ревизии since.
// fn получает заказы, изменённые локально после since. Ошибка цикла
// не очищается: цикл ещё не завершён.
func (s *Store) Reconcile(since uint64, fn func(prev []domain.Order, local LocalChanges) []domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.publishLocked(fn(s.snap.Orders, s.changesSinceLocked(since)))
	s.snap.Stale = false
}

// Settle публикует итог цикла, начатого на ревизии since, и очищает ошибку.
func (s *Store) Settle(since uint64, fn func(prev []domain.Order, local LocalChanges) []domain.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.publishLocked(fn(s.snap.Orders, s.changesSinceLocked(since)))
	s.snap.Err = nil
	s.snap.Stale = false
}

// changesSinceLocked собирает изменения новее since и забывает более старые:
// следующий цикл начнётся не раньше текущей ревизии.
func (s *Store) changesSinceLocked(since uint64) LocalChanges {
	changes := LocalChanges{
		Patched: make(map[int64]struct{}),
		Removed: make(map[int64]struct{}),
	}
	for id, c := range s.local {
		switch {
		case c.rev <= since:
			delete(s.local, id)
		case c.removed:
			changes.Removed[id] = struct{}{}
		default:
			changes.Patched[id] = struct{}{}
		}
	}
	return changes
}

// Remove удаляет заказ из коллекции. Возвращает false, если заказа не было.
//
// Удаление запоминается, даже если заказа нет: идущий цикл мог получить его
// в заголовках и не должен вернуть на доску.
func (s *Store) Remove(id int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.rev++
	s.local[id] = localChange{rev: s.rev, removed: true}

	drop := map[int64]struct{}{id: {}}
	next := Without(s.snap.Orders, drop)
	if len(next) == len(s.snap.Orders) {
		return false
	}
	s.publishLocked(next)
	return true
}

// Patch применяет локальный патч к заказу. Возвращает обновлённый заказ
// и false, если заказа нет в коллекции.
func (s *Store) Patch(id int64, fn func(o *domain.Order)) (domain.Order, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.snap.Orders {
		if s.snap.Orders[i].ID != id {
			continue
		}

		next := make([]domain.Order, len(s.snap.Orders))
		copy(next, s.snap.Orders)

		patched := next[i].Clone()
		fn(&patched)
		next[i] = patched

		s.rev++
		s.local[id] = localChange{rev: s.rev}

		s.publishLocked(next)
		return patched.Clone(), true
	}
	return domain.Order{}, false
}

// Seed публикует сохранённый снимок, если коллекция ещё пуста.
// Коллекция помечается как устаревшая до первого успешного цикла.
func (s *Store) Seed(orders []domain.Order, at time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snap.Orders != nil {
		return false
	}
	s.publishLocked(orders)
	s.snap.UpdatedAt = at
	s.snap.Stale = true
	return true
}

// SetError записывает ошибку цикла, не трогая коллекцию.
func (s *Store) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Err = err
}

func (s *Store) publishLocked(orders []domain.Order) {
	if orders == nil {
		orders = []domain.Order{}
	}
	s.snap.Orders = orders
	s.snap.UpdatedAt = s.now()
	telemetry.PublishedOrders.Set(float64(len(orders)))
}
