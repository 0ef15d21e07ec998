// Package executor содержит исполнителей узлов flow.
//
// # Шаблон выполнения
//
// Base.Execute выполняет узел в три шага:
//  1. ValidateInputs варианта: проверка обязательных настроек и входов,
//     приведение входов к каноническим ключам
//  2. compute.Service.ExecuteNode(flowId, nodeId, typeId, inputs, settings)
//  3. PostProcess варианта: нормализация ответа в domain.ExecutionResult
//
// Настройки узла — значения по умолчанию из схемы типа, поверх которых
// наложены настройки экземпляра (MergeSettings).
//
// # Варианты
//
//   - InputCapture    — chat_input, voice_input
//   - AIChat          — ai-chat, simple-openai-chat, simple-deepseek-chat
//   - Transcription   — transcription
//   - TelegramMessage — send_telegram_message
//   - Generic         — любой незарегистрированный тип
//
// # Registry
//
//	registry := executor.DefaultRegistry(service, logger)
//	exec, ok := registry.Create(nodeID, node, nodeType, update)
//	if !ok {
//	    exec = registry.Generic(nodeID, node, nodeType, update)
//	}
//
// Исполнители сообщают о прогрессе только через UpdateFunc и не повторяют
// неудачные вызовы.
package executor
