// Package report строит отчёт по водителям за период.
//
// Сборка:
//  1. Справочник водителей (GET /staff/drivers, с повторами)
//  2. Сетка задач водитель × дата, выполняется через pool.RunTasks (6 полос)
//  3. Свёртка успешных срезов: пакеты, выручка, выручка по способам оплаты, заказы
//
// Упавшие задачи отбрасываются и считаются в FailedTasks. Отчёт помечается
// ошибкой, если водителей нет, период некорректен или упали все задачи.
package report
