// Package orders синхронизирует коллекцию открытых заказов с POS.
//
// Цикл заказов (Refresh) проходит фазы IDLE → REFRESHING → HYDRATING → IDLE:
// запрашивает заголовки, сразу публикует их, загружает позиции с ограниченной
// параллельностью и публикует результат. Одновременно активен только один цикл.
// Принудительный цикл (ручной, после действия) отменяет текущий, и результат
// старого не публикуется; push-триггеры не отменяют его, а откладываются
// в один повторный цикл.
//
// Опубликованная коллекция (Store) меняется только целиком, читатели видят
// согласованные снимки.
package orders
