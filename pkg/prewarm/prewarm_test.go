package prewarm

import (
	"errors"
	"sync/atomic"
	"testing"
)

func TestRunExecutesEveryTask(t *testing.T) {
	var count int64
	tasks := make([]Task, 50)
	for i := range tasks {
		tasks[i] = Task{Run: func() error {
			atomic.AddInt64(&count, 1)
			return nil
		}}
	}

	if err := Run(tasks, 4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != int64(len(tasks)) {
		t.Errorf("got %d completed tasks, want %d", count, len(tasks))
	}
}

func TestRunReturnsFirstError(t *testing.T) {
	want := errors.New("boom")
	tasks := []Task{
		{Run: func() error { return nil }},
		{Run: func() error { return want }},
		{Run: func() error { return nil }},
	}

	if err := Run(tasks, 2); !errors.Is(err, want) {
		t.Errorf("got %v, want %v", err, want)
	}
}

func TestRunEmpty(t *testing.T) {
	if err := Run(nil, 4); err != nil {
		t.Errorf("unexpected error on empty task list: %v", err)
	}
}

func TestRunDefaultsWorkerCount(t *testing.T) {
	var count int64
	tasks := make([]Task, 8)
	for i := range tasks {
		tasks[i] = Task{Run: func() error {
			atomic.AddInt64(&count, 1)
			return nil
		}}
	}
	if err := Run(tasks, 0); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if count != int64(len(tasks)) {
		t.Errorf("got %d, want %d", count, len(tasks))
	}
}
