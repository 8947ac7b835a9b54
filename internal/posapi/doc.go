// Package posapi — HTTP-клиент POS API.
//
// Client реализует все интерфейсы, через которые сервис ходит в POS:
//   - orders.Source и orders.ActionClient — заказы, позиции и действия
//   - kitchen.SettingsSource — настройки исключений кухни
//   - report.Source — справочник водителей и срезы отчёта
//
// Ответы принимаются как «голый» JSON, так и в конверте {"data": ...}.
// Не-2xx ответ превращается в *StatusError, сетевой сбой — в *TransportError;
// оба классифицируются пакетом retry.
package posapi
