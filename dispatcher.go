package main

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// TaskResult - итог одной задачи. Ошибка задачи остаётся здесь и не прерывает остальные.
type TaskResult struct {
	Kind  TaskKind
	Task  string
	Count int // прочитано позиций или применено пар
	Err   error
}

// Dispatcher раздаёт задачи чтения и записи фиксированному пулу воркеров
type Dispatcher struct {
	svc     *Service
	workers int
	metrics *Metrics
}

func NewDispatcher(svc *Service, workers int, metrics *Metrics) *Dispatcher {
	return &Dispatcher{svc: svc, workers: workers, metrics: metrics}
}

// Run выполняет все задачи и возвращает результаты в порядке: сначала читатели, потом писатели.
// Отмена ctx останавливает постановку новых задач; начатые задачи доводятся до конца.
func (d *Dispatcher) Run(ctx context.Context, readers, writers []string) []TaskResult {
	results := make([]TaskResult, len(readers)+len(writers))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.workers)

	schedule := func(slot int, kind TaskKind, task string) {
		results[slot] = TaskResult{Kind: kind, Task: task, Err: context.Canceled}
		if gctx.Err() != nil {
			return
		}
		g.Go(func() error {
			var res TaskResult
			if kind == TaskRead {
				res = d.runRead(task)
			} else {
				res = d.runWrite(ctx, task)
			}
			results[slot] = res
			d.metrics.observeTask(kind, res.Err)
			if res.Err != nil {
				log.Error().Err(res.Err).Str("task", task).Str("kind", string(kind)).Msg("task failed")
			} else {
				log.Info().Str("task", task).Str("kind", string(kind)).Int("count", res.Count).Msg("task done")
			}
			return nil
		})
	}

	for i, task := range readers {
		schedule(i, TaskRead, task)
	}
	for i, task := range writers {
		schedule(len(readers)+i, TaskWrite, task)
	}
	_ = g.Wait()

	return results
}

func (d *Dispatcher) runRead(task string) TaskResult {
	res := TaskResult{Kind: TaskRead, Task: task}

	data, err := os.ReadFile(task)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrTaskResolution, err)
		return res
	}
	positions, err := ParseReadTask(data)
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", task, err)
		return res
	}

	sink, err := openSink(task)
	if err != nil {
		res.Err = err
		return res
	}
	defer sink.Close()

	// Позиции внутри задачи разрешаются строго по порядку
	for _, p := range positions {
		o := d.svc.Read(p)
		if err := writeOutcome(sink, o); err != nil {
			res.Err = fmt.Errorf("write outcome to %s: %w", sink.Name(), err)
			return res
		}
		res.Count++
	}
	return res
}

func (d *Dispatcher) runWrite(ctx context.Context, task string) TaskResult {
	res := TaskResult{Kind: TaskWrite, Task: task}

	data, err := os.ReadFile(task)
	if err != nil {
		res.Err = fmt.Errorf("%w: %w", ErrTaskResolution, err)
		return res
	}
	writes, err := ParseWriteTask(data, d.svc.MaxExtent())
	if err != nil {
		res.Err = fmt.Errorf("%s: %w", task, err)
		return res
	}
	if err := d.svc.ApplyWrites(ctx, task, writes); err != nil {
		res.Err = err
		return res
	}
	res.Count = len(writes)
	return res
}

// Failed - число задач с ошибкой
func Failed(results []TaskResult) int {
	n := 0
	for _, r := range results {
		if r.Err != nil {
			n++
		}
	}
	return n
}
