// Package events обрабатывает push-события POS.
//
// Источники (RabbitMQ, NATS) реализуют Source и передают события в Router.
// Router сводит всплески orders_updated в один цикл через Debouncer,
// сразу убирает закрытые заказы и пересинхронизирует доску после переподключения.
package events
