// Package config загружает конфигурацию сервиса из YAML-файла
// и переменных окружения.
//
// Порядок: значения по умолчанию → файл → окружение → Validate.
package config
