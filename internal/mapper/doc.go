// Package mapper переносит данные по рёбрам графа: из результатов
// вышестоящих узлов собирает map входов очередного узла.
//
// Порты рёбер задаются именами или handle вида "<side>__<portName>"
// ("in__message_data" → "message_data"). Пустой handle и "default"
// означают, что порт не указан.
package mapper
