// Package cli реализует инструмент командной строки Nodeflow.
//
// # Обзор
//
// Удалённые команды работают с Nodeflow API через HTTP и не импортируют
// internal/api. Локальные команды (graph, connection) работают с файлами
// графов и каталогом типов в текущем процессе.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Nodeflow API. Инкапсулирует HTTP-запросы,
// парсинг конвертов {data} / {error} и ошибки API (*APIError).
//
//	client := cli.NewClient("http://localhost:8080")
//	run, err := client.CreateRun("42", cli.CreateRunRequest{...})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: nodeflow node-types list --json | jq .
//
// ## Commands
//
//   - run: start
//   - status: flow, node
//   - node-types: list, show
//   - graph: order, exec (локально)
//   - connection: validate (локально)
//
// Каждая группа создаётся через фабричную функцию (NewRunCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
