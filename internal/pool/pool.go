package pool

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/Liveboard/internal/cancel"
)

// Task — описание независимой единицы работы для RunTasks.
//
// Токен отмены не хранится в Task: он передаётся через ctx,
// поэтому один токен управляет всеми задачами пачки.
// OnSuccess и OnFailure вызываются из разных полос одновременно.
type Task[R any] struct {
	// Work выполняет задачу.
	Work func(ctx context.Context) (R, error)

	// OnSuccess вызывается после успешного Work (опционально).
	OnSuccess func(R)

	// OnFailure вызывается при ошибке, кроме отмены (опционально).
	OnFailure func(error)
}

// Run вызывает worker для каждого элемента items, не более limit вызовов одновременно.
//
// Возвращает успешные результаты в порядке items. Ошибки отдельных элементов
// отбрасываются, кроме отмены: она останавливает весь прогон и возвращается.
func Run[T, R any](ctx context.Context, items []T, limit int, worker func(ctx context.Context, item T) (R, error)) ([]R, error) {
	tasks := make([]Task[R], len(items))
	for i := range items {
		item := items[i]
		tasks[i] = Task[R]{
			Work: func(ctx context.Context) (R, error) { return worker(ctx, item) },
		}
	}
	return RunTasks(ctx, tasks, limit)
}

// RunTasks выполняет tasks через фиксированный набор из min(limit, len(tasks)) полос.
//
// Каждая полоса в цикле забирает следующий незанятый индекс из общего курсора,
// пока индексы не закончатся. Ни один индекс не берётся дважды.
func RunTasks[R any](ctx context.Context, tasks []Task[R], limit int) ([]R, error) {
	if len(tasks) == 0 {
		if ctx.Err() != nil {
			return nil, cancel.ErrCancelled
		}
		return nil, nil
	}
	if limit < 1 {
		limit = 1
	}
	lanes := min(limit, len(tasks))

	results := make([]R, len(tasks))
	succeeded := make([]bool, len(tasks))

	var cursor atomic.Int64
	g, gctx := errgroup.WithContext(ctx)

	for range lanes {
		g.Go(func() error {
			for {
				i := int(cursor.Add(1) - 1)
				if i >= len(tasks) {
					return nil
				}
				if gctx.Err() != nil {
					return cancel.ErrCancelled
				}

				task := tasks[i]
				r, err := task.Work(gctx)
				if err != nil {
					if cancel.IsCancellation(err) {
						return err
					}
					if task.OnFailure != nil {
						task.OnFailure(err)
					}
					continue
				}

				results[i] = r
				succeeded[i] = true
				if task.OnSuccess != nil {
					task.OnSuccess(r)
				}
			}
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, cancel.ErrCancelled
	}

	out := make([]R, 0, len(tasks))
	for i, ok := range succeeded {
		if ok {
			out = append(out, results[i])
		}
	}
	return out, nil
}
