// Package repo — хранилище Postgres (pgx/v5).
//
// Таблицы:
//   - order_snapshots — последний опубликованный снимок заказов каждой доски (тёплый старт)
//   - driver_reports  — архив собранных отчётов по водителям
//
// Схема создаётся EnsureSchema при старте сервиса.
package repo
