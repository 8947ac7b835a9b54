// Package cli реализует инструмент командной строки Liveboard.
//
// # Обзор
//
// CLI — клиентская утилита для оператора доски доставки.
// Работает через HTTP API сервиса liveboard, не импортирует внутренние пакеты.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Liveboard API. Инкапсулирует HTTP-запросы,
// разбор конвертов {data}, {data,total} и {error} и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8090")
//	orders, err := client.ListOrders(cli.ListOrdersOpts{KitchenStatus: "ready"})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Warn/Error) — в stderr:
// liveboard-cli order list --json | jq .
//
// ## Commands
//
//   - order: list, show, refresh, driver-status, assign, update, close, cancel
//   - report: show, build, archive, archive-show
//
// Каждая группа создаётся фабричной функцией (NewOrderCmd, NewReportCmd),
// принимающей clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
