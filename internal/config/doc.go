// Package config загружает настройки процессов nodeflow из окружения
// и собирает из них сервис вычислений и Orchestrator.
package config
