package config

import "errors"

// ErrInvalidConfig — некорректное значение переменной окружения.
var ErrInvalidConfig = errors.New("invalid config")
