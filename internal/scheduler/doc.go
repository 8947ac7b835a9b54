// Package scheduler запускает фоновые задачи по cron-расписанию (robfig/cron/v3).
//
// Задачи:
//   - отчёт по водителям за текущий день, архивируется в Postgres
//   - полная сверка заказов с POS (Force + Retry)
//
// Структура:
//   - scheduler.go — Scheduler (Start, Stop, RunReport, RunRefresh)
//   - cron.go      — парсинг cron-выражений, часовой пояс, адаптер логгера
//
// Leader Election:
//
// Отчёт по расписанию собирает только лидер. Лидерство берётся через
// pg_try_advisory_lock (repo.AdvisoryLock) и удерживается на выделенном соединении.
package scheduler
