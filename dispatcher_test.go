package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestDispatcher_ReadTaskOutcomes(t *testing.T) {
	dir := t.TempDir()
	r1 := writeFile(t, dir, "r1.txt", "1\n1\n5\n")
	svc, _ := newTestService(4, []Item{Some(10), Some(20), Empty})

	results := NewDispatcher(svc, 2, NewMetrics()).Run(context.Background(), []string{r1}, nil)

	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, 3, results[0].Count)
	assert.Equal(t, []string{"20 Disk", "20 Cache", "None Disk"}, readLines(t, OutputPath(r1)))
}

func TestDispatcher_BadTaskIsIsolated(t *testing.T) {
	dir := t.TempDir()
	good := writeFile(t, dir, "good.txt", "0\n")
	bad := writeFile(t, dir, "bad.txt", "0\nnope\n")
	badWrite := writeFile(t, dir, "badw.txt", "1 2 3\n")
	missing := filepath.Join(dir, "missing.txt")
	svc, p := newTestService(2, []Item{Some(1)})

	results := NewDispatcher(svc, 4, NewMetrics()).Run(context.Background(),
		[]string{good, bad, missing}, []string{badWrite})

	require.Len(t, results, 4)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, ErrTaskResolution)
	assert.ErrorIs(t, results[2].Err, ErrTaskResolution)
	assert.ErrorIs(t, results[3].Err, ErrTaskResolution)
	assert.Equal(t, 3, Failed(results))

	assert.Equal(t, []string{"1 Disk"}, readLines(t, OutputPath(good)))
	assert.NoFileExists(t, OutputPath(bad), "a rejected task writes no outcomes")
	assert.Equal(t, []Item{Some(1)}, svc.Snapshot())
	assert.Zero(t, p.saves)
}

func TestDispatcher_HugeWritePositionFailsAlone(t *testing.T) {
	dir := t.TempDir()
	r1 := writeFile(t, dir, "r1.txt", "0\n")
	huge := writeFile(t, dir, "huge.txt", "1000000000000000000 5\n")
	w1 := writeFile(t, dir, "w1.txt", "1 6\n")
	svc, _ := newTestService(2, []Item{Some(1)})

	results := NewDispatcher(svc, 3, NewMetrics()).Run(context.Background(), []string{r1}, []string{huge, w1})

	require.Len(t, results, 3)
	assert.NoError(t, results[0].Err)
	assert.ErrorIs(t, results[1].Err, ErrTaskResolution)
	assert.ErrorIs(t, results[1].Err, errPositionTooLarge)
	assert.NoError(t, results[2].Err)
	assert.Equal(t, []string{"1 Disk"}, readLines(t, OutputPath(r1)))
	assert.Equal(t, []Item{Some(1), Some(6)}, svc.Snapshot())
}

func TestDispatcher_WriteTask(t *testing.T) {
	dir := t.TempDir()
	w1 := writeFile(t, dir, "w1.txt", "3 99\n0 7\n")
	svc, p := newTestService(2, []Item{Some(10), Some(20)})

	results := NewDispatcher(svc, 1, NewMetrics()).Run(context.Background(), nil, []string{w1})

	require.NoError(t, results[0].Err)
	assert.Equal(t, TaskWrite, results[0].Kind)
	assert.Equal(t, 2, results[0].Count)
	want := []Item{Some(7), Some(20), Empty, Some(99)}
	assert.Equal(t, want, svc.Snapshot())
	assert.Equal(t, want, p.items)
}

func TestDispatcher_MixedConcurrentTasks(t *testing.T) {
	dir := t.TempDir()
	var readers, writers []string
	for i := 0; i < 10; i++ {
		readers = append(readers, writeFile(t, dir, fmt.Sprintf("r%d.txt", i), "0\n1\n2\n3\n4\n5\n6\n7\n"))
	}
	// Писатели трогают разные позиции, поэтому итог не зависит от порядка
	for i := 0; i < 5; i++ {
		writers = append(writers, writeFile(t, dir, fmt.Sprintf("w%d.txt", i), fmt.Sprintf("%d %d\n", i, 100+i)))
	}
	svc, _ := newTestService(3, []Item{Some(0), Some(1)})

	results := NewDispatcher(svc, 4, NewMetrics()).Run(context.Background(), readers, writers)

	require.Zero(t, Failed(results))
	for _, r := range readers {
		assert.Len(t, readLines(t, OutputPath(r)), 8)
	}
	assert.Equal(t, []Item{Some(100), Some(101), Some(102), Some(103), Some(104)}, svc.Snapshot())
	for p := 0; p < 5; p++ {
		assert.Equal(t, Some(int64(100+p)), svc.Read(p).Value)
	}
}

func TestDispatcher_CancelledContext(t *testing.T) {
	dir := t.TempDir()
	r1 := writeFile(t, dir, "r1.txt", "0\n")
	svc, _ := newTestService(2, []Item{Some(1)})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results := NewDispatcher(svc, 2, NewMetrics()).Run(ctx, []string{r1}, nil)

	assert.ErrorIs(t, results[0].Err, context.Canceled)
	assert.NoFileExists(t, OutputPath(r1))
}
