package kitchen

import "github.com/shaiso/Liveboard/internal/domain"

// Rollup сворачивает статусы позиций в один статус заказа.
//
// Учитываются только неисключённые позиции:
//   - все delivered (и хотя бы одна есть) → delivered
//   - хотя бы одна ready → ready
//   - хотя бы одна preparing → preparing
//   - иначе → new
//
// Заказ без релевантных позиций (например, только напитки) даёт new, а не delivered.
// Кому нужно «всё исключено ⇒ можно отдавать», проверяет RelevantCount отдельно.
func (r *Rules) Rollup(items []domain.OrderItem) domain.KitchenStatus {
	relevant := 0
	delivered := 0
	var anyReady, anyPreparing bool

	for _, item := range items {
		if r.IsExcluded(item) {
			continue
		}
		relevant++

		switch item.KitchenStatus {
		case domain.KitchenStatusDelivered:
			delivered++
		case domain.KitchenStatusReady:
			anyReady = true
		case domain.KitchenStatusPreparing:
			anyPreparing = true
		}
	}

	switch {
	case relevant > 0 && delivered == relevant:
		return domain.KitchenStatusDelivered
	case anyReady:
		return domain.KitchenStatusReady
	case anyPreparing:
		return domain.KitchenStatusPreparing
	default:
		return domain.KitchenStatusNew
	}
}

// RelevantCount возвращает число позиций, участвующих в кухонном процессе.
func (r *Rules) RelevantCount(items []domain.OrderItem) int {
	n := 0
	for _, item := range items {
		if !r.IsExcluded(item) {
			n++
		}
	}
	return n
}

// Annotate помечает исключённые позиции и вычисляет статус кухни заказа.
// Заказ без загруженных позиций не трогается.
func (r *Rules) Annotate(o *domain.Order) {
	if o.Items == nil {
		return
	}

	items := make([]domain.OrderItem, len(o.Items))
	for i, item := range o.Items {
		item.KitchenExcluded = r.IsExcluded(item)
		items[i] = item
	}
	o.Items = items
	o.KitchenStatus = r.Rollup(items)
}
