package orders

import "github.com/shaiso/Liveboard/internal/domain"

// Fields — набор полей, которые несёт входящая запись.
//
// Поля из набора переносятся как есть, включая нулевые значения:
// сброшенный статус доставки или снятый водитель — тоже данные сервера.
// Поля вне набора не трогаются, поэтому их локальный патч сохраняется.
type Fields uint8

const (
	// FieldsHeader — поля заголовка из списка открытых заказов.
	FieldsHeader Fields = 1 << iota

	// FieldsItems — позиции и производный статус кухни.
	FieldsItems

	FieldsAll = FieldsHeader | FieldsItems
)

// Merge накладывает incoming на prev по идентификатору заказа.
//
// Для существующих заказов переносятся только поля из fields; заголовок без
// позиций (Items == nil) не стирает уже загруженные позиции.
// Заказы с новыми id добавляются целиком.
//
// prev не изменяется. Порядок результата не гарантирован, вызывающие
// сортируют сами.
func Merge(prev, incoming []domain.Order, fields Fields) []domain.Order {
	if len(incoming) == 0 {
		return prev
	}

	out := make([]domain.Order, len(prev), len(prev)+len(incoming))
	copy(out, prev)

	index := make(map[int64]int, len(prev)+len(incoming))
	for i := range out {
		index[out[i].ID] = i
	}

	for _, in := range incoming {
		if i, ok := index[in.ID]; ok {
			overlay(&out[i], &in, fields)
			continue
		}
		index[in.ID] = len(out)
		out = append(out, in)
	}

	return out
}

// Retain оставляет только заказы с id из keep.
func Retain(prev []domain.Order, keep map[int64]struct{}) []domain.Order {
	out := make([]domain.Order, 0, len(prev))
	for _, o := range prev {
		if _, ok := keep[o.ID]; ok {
			out = append(out, o)
		}
	}
	return out
}

// Without удаляет заказы с указанными id.
func Without(prev []domain.Order, drop map[int64]struct{}) []domain.Order {
	if len(drop) == 0 {
		return prev
	}
	out := make([]domain.Order, 0, len(prev))
	for _, o := range prev {
		if _, ok := drop[o.ID]; !ok {
			out = append(out, o)
		}
	}
	return out
}

func overlay(dst, src *domain.Order, fields Fields) {
	if fields&FieldsHeader != 0 {
		items, kitchen := dst.Items, dst.KitchenStatus
		*dst = *src
		dst.Items, dst.KitchenStatus = items, kitchen
	}
	if fields&FieldsItems != 0 && src.Items != nil {
		dst.Items = src.Items
		dst.KitchenStatus = src.KitchenStatus
	}
}
