package main

import "errors"

var (
	// ErrConfig - фатальная ошибка конфигурации, работа не начинается
	ErrConfig = errors.New("configuration error")
	// ErrTaskResolution - данные задачи битые; задача пропускается, остальные продолжают
	ErrTaskResolution = errors.New("task resolution error")

	errCacheSizeInvalid  = errors.New("cache size must be positive")
	errWorkersInvalid    = errors.New("workers must be positive")
	errMaxExtentInvalid  = errors.New("max extent must be in (0, 2147483647]")
	errPositionTooLarge  = errors.New("position exceeds max extent")
	errInputFileMissing  = errors.New("input file not found")
	errConfigFileInvalid = errors.New("invalid config file")
	errNegativePosition  = errors.New("position must be non-negative")
	errBadWriteLine      = errors.New("write line must be \"<position> <value>\"")
)
