package scheduler

import (
	"context"
	"fmt"
	"sync"
)

type queue[T any] []T

func (q *queue[T]) Len() int { return len(*q) }

func (q *queue[T]) Pop() T {
	old := *q
	x := old[0]
	*q = old[1:]
	return x
}

func (q *queue[T]) Push(t T) {
	*q = append(*q, t)
}

type job[T any] struct {
	fn  Work[T]
	c   chan Result[T]
	ctx context.Context
}

type worker[T any] struct {
	done chan struct{}
	wg   *sync.WaitGroup
}

func newWorker[T any](done chan struct{}, wg *sync.WaitGroup) worker[T] {
	return worker[T]{done: done, wg: wg}
}

func (w worker[T]) run(j job[T]) {
	defer func() {
		if rec := recover(); rec != nil {
			j.c <- Result[T]{Err: fmt.Errorf("worker panicked: %v", rec)}
		}
		w.done <- struct{}{}
		w.wg.Done()
	}()

	v, err := j.fn(j.ctx)
	j.c <- Result[T]{Data: v, Err: err}
}

// Scheduler is a fixed-size worker pool. Submitted work queues until a
// worker is free; every submission gets a Future delivering exactly one
// Result.
type Scheduler[T any] struct {
	idle       *queue[worker[T]]
	backlog    *queue[job[T]]
	close      chan struct{}
	done       chan struct{}
	work       chan job[T]
	mainCtx    context.Context
	mainCancel context.CancelFunc
	wg         sync.WaitGroup
	once       sync.Once
}

func NewScheduler[T any](nbWorkers int) *Scheduler[T] {
	done := make(chan struct{}, nbWorkers)
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler[T]{
		idle:       &queue[worker[T]]{},
		backlog:    &queue[job[T]]{},
		close:      make(chan struct{}),
		done:       done,
		work:       make(chan job[T]),
		mainCtx:    ctx,
		mainCancel: cancel,
	}
	for range nbWorkers {
		s.idle.Push(newWorker[T](done, &s.wg))
	}
	go s.run()
	return s
}

// AddWork submits w to the pool. After Close the returned future delivers
// context.Canceled instead of running the work.
func (s *Scheduler[T]) AddWork(w Work[T]) *Future[Result[T]] {
	c := make(chan Result[T], 1)
	ctx, cancel := context.WithCancel(s.mainCtx)

	select {
	case <-s.mainCtx.Done():
		// the run loop is gone, deliver the refusal directly
		c <- Result[T]{Err: context.Canceled}
	case s.work <- job[T]{w, c, ctx}:
	}

	return NewFuture(c, cancel)
}

// Close cancels queued and running work contexts, waits for in-flight work
// to finish, and stops the run loop. Safe to call more than once.
func (s *Scheduler[T]) Close() {
	s.once.Do(func() {
		s.mainCancel()
		s.close <- struct{}{}
		<-s.done
	})
}

func (s *Scheduler[T]) run() {
	defer close(s.done)
	for {
		select {
		case j := <-s.work:
			s.backlog.Push(j)
			s.dispatch()
		case <-s.done:
			s.idle.Push(newWorker[T](s.done, &s.wg))
			s.dispatch()
		case <-s.close:
			s.wg.Wait()
			return
		}
	}
}

// dispatch drains the backlog as far as idle workers allow.
func (s *Scheduler[T]) dispatch() {
	for s.idle.Len() > 0 && s.backlog.Len() > 0 {
		j := s.backlog.Pop()
		w := s.idle.Pop()
		s.wg.Add(1)
		go w.run(j)
	}
}
