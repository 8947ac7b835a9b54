// Package api содержит HTTP API доски.
//
// Структура:
//   - handler.go        — Handler с DI (orders.Engine, отчёты, архив, logger)
//   - routes.go         — регистрация маршрутов
//   - middleware.go     — middleware (recovery, request id, metrics, logging, CORS)
//   - response.go       — унифицированные JSON-ответы и обработка ошибок
//   - dto.go            — Data Transfer Objects (request/response)
//   - order_handler.go  — обработчики для /orders
//   - report_handler.go — обработчики для /reports и /healthz
//
// Действия над заказом применяются к доске оптимистично и затем отправляются в POS;
// при ошибке POS запускается цикл реконсиляции, а клиент получает ошибку.
package api
