package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/natefinch/atomic"
)

// FilePersister хранит содержимое хранилища в текстовом файле:
// одна строка на позицию, пустая строка - пустое значение.
type FilePersister struct {
	Path string
}

func (p *FilePersister) Load(_ context.Context) ([]Item, error) {
	data, err := os.ReadFile(p.Path)
	if err != nil {
		return nil, err
	}
	items, err := ParseItems(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", p.Path, err)
	}
	return items, nil
}

// Save переписывает файл целиком через временный файл и rename,
// чтобы параллельный читатель файла не увидел половину содержимого.
func (p *FilePersister) Save(_ context.Context, items []Item) error {
	if err := atomic.WriteFile(p.Path, bytes.NewReader(FormatItems(items))); err != nil {
		return fmt.Errorf("write items file %s: %w", p.Path, err)
	}
	return nil
}

// ParseItems разбирает содержимое файла значений
func ParseItems(data []byte) ([]Item, error) {
	var items []Item
	sc := bufio.NewScanner(bytes.NewReader(data))
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			items = append(items, Empty)
			continue
		}
		v, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		items = append(items, Some(v))
	}
	return items, sc.Err()
}

// FormatItems - обратное к ParseItems; каждая строка завершается \n
func FormatItems(items []Item) []byte {
	var b bytes.Buffer
	for _, it := range items {
		if it.Valid {
			b.WriteString(strconv.FormatInt(it.Value, 10))
		}
		b.WriteByte('\n')
	}
	return b.Bytes()
}
