package main

import (
	"context"       // отмена/тайм-ауты для Kafka
	"encoding/json" // перенос сообщений в задачу записи
	"errors"
	"fmt"
	"time" // тайм-ауты

	"github.com/rs/zerolog/log"     // структуриованное ведение журнала
	"github.com/segmentio/kafka-go" // клиент Kafka
)

// WriteTaskMessage - задача записи, пришедшая через Kafka
type WriteTaskMessage struct {
	Task   string  `json:"task"`
	Writes []Write `json:"writes"`
}

// decodeWriteTask разбирает сообщение; битое сообщение - ErrTaskResolution
func decodeWriteTask(m kafka.Message) (WriteTaskMessage, error) {
	var t WriteTaskMessage
	if err := json.Unmarshal(m.Value, &t); err != nil {
		return t, fmt.Errorf("%w: invalid JSON: %w", ErrTaskResolution, err)
	}
	if len(t.Writes) == 0 {
		return t, fmt.Errorf("%w: message has no writes", ErrTaskResolution)
	}
	if t.Task == "" {
		t.Task = fmt.Sprintf("%s/%d/%d", m.Topic, m.Partition, m.Offset)
	}
	return t, nil
}

// handleMessage применяет одно сообщение. Возвращает true, если смещение можно фиксировать:
// успех или битые данные (повтор не поможет). Ошибка сохранения - не фиксируем (at-least-once).
func handleMessage(ctx context.Context, svc *Service, m kafka.Message) bool {
	t, err := decodeWriteTask(m)
	if err != nil {
		log.Error().Err(err).Str("topic", m.Topic).Int64("offset", m.Offset).Msg("bad write task, skipping message")
		return true
	}
	if err := svc.ApplyWrites(ctx, t.Task, t.Writes); err != nil {
		if errors.Is(err, ErrTaskResolution) {
			log.Error().Err(err).Str("task", t.Task).Msg("bad write task, skipping message")
			return true
		}
		log.Error().Err(err).Str("task", t.Task).Msg("failed to apply write task")
		return false
	}
	return true
}

// Точка входа для запуска потребителя Kafka
func StartConsumer(ctx context.Context, cfg *Config, svc *Service) {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        []string{cfg.KafkaBroker}, // адреса брокеров Kafka
		Topic:          cfg.KafkaTopic,            // топик/тема Kafka
		GroupID:        "positions-service-group", // идентификатор группы потребителей
		MinBytes:       1,
		MaxBytes:       10e6,
		CommitInterval: 0, // отключить автоматическую фиксацию; фиксации выполняются вручную.
	})

	//Запускает цикл потребления в горутине, чтобы вызывающий объект не блокировался.
	go func() {
		defer r.Close()
		for {
			m, err := r.FetchMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					log.Info().Msg("consumer context done")
					return
				}
				log.Error().Err(err).Msg("fetch message error")
				time.Sleep(time.Second)
				continue
			}

			// FetchMessage не вернёт то же сообщение повторно, поэтому повторяем здесь;
			// повторное применение тех же пар безопасно
			for !handleMessage(ctx, svc, m) {
				select {
				case <-ctx.Done():
					log.Info().Msg("consumer context done")
					return
				case <-time.After(time.Second):
				}
			}

			if err := r.CommitMessages(ctx, m); err != nil {
				log.Error().Err(err).Msg("commit message failed")
			} else {
				log.Info().Int64("offset", m.Offset).Msg("message processed and committed")
			}
		}
	}()
}
