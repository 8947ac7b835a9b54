// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением с RabbitMQ (reconnect, graceful shutdown)
//   - topology.go   — объявление exchange событий и очереди экземпляра
//   - publisher.go  — публикация событий (order_closed для соседних досок)
//   - consumer.go   — потребление событий, реализует events.Source
//
// Типы сообщений:
//   - orders_updated — коллекция заказов изменилась
//   - order_closed   — заказ закрыт, payload {orderId}
//
// Exchanges:
//   - liveboard.events — fanout, по эксклюзивной очереди на каждую доску
package mq
